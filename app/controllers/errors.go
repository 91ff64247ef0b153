package controllers

import (
	"errors"
	"net/http"

	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/internal/gate"
	"github.com/invictusops/invictus/pkg/ctx"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/logger"
)

// Fail writes the response matching err. Unknown errors are logged and
// answered with a 500 that does not leak their text.
func Fail(c *ctx.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.ValidationError(verr.Fields)
	case errors.Is(err, gate.ErrWrongPassword):
		c.Unauthorized(err.Error())
	case errors.Is(err, services.ErrNotAuthenticated):
		c.Unauthorized()
	case errors.Is(err, docstore.ErrNotFound):
		c.NotFound()
	case errors.Is(err, gate.ErrInvalidTransition):
		c.Conflict(err.Error())
	case errors.Is(err, services.ErrConfirmationRequired):
		c.Conflict("Completing a task needs confirmation")
	case errors.Is(err, docstore.ErrUnavailable), errors.Is(err, docstore.ErrClosed):
		c.Error(http.StatusServiceUnavailable, "Data store is unavailable, try again shortly")
	default:
		logger.WithCtx(c.Context()).Error("request failed", "path", c.R.URL.Path, "error", err)
		c.Error(http.StatusInternalServerError, "Internal Server Error")
	}
}
