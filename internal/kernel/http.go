// Package kernel assembles the HTTP handler: the global middleware stack,
// the operational endpoints and the application routes.
package kernel

import (
	"net/http"
	"time"

	"github.com/invictusops/invictus/pkg/metrics"
	"github.com/invictusops/invictus/pkg/middleware"
	"github.com/invictusops/invictus/pkg/reqid"
	"github.com/invictusops/invictus/pkg/response"
	"github.com/invictusops/invictus/pkg/router"
	"github.com/invictusops/invictus/pkg/session"
)

// Options configures NewHTTPKernel.
type Options struct {
	Sessions *session.Manager
	Limiter  *middleware.Limiter
	CORS     middleware.CORSOptions
	// Ready backs GET /healthz. Nil means always ready.
	Ready func() bool
}

// HTTPKernel owns the router.
type HTTPKernel struct {
	router *router.Router
}

// NewHTTPKernel installs the global middleware, outermost first:
//
//	metrics, recovery, request id, logger, session, CORS, rate limit
//
// then /metrics, /healthz and every routes callback.
func NewHTTPKernel(opts Options, routes ...func(*router.Router)) *HTTPKernel {
	if opts.Limiter == nil {
		opts.Limiter = middleware.NewLimiter(300, time.Minute)
	}

	r := router.New()
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(opts.Sessions.Middleware)
	r.Use(middleware.CORS(opts.CORS))
	r.Use(opts.Limiter.Middleware)

	r.Handle("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			response.Unavailable(w, "starting")
			return
		}
		response.Success(w, map[string]string{"status": "ok"})
	})

	for _, fn := range routes {
		fn(r)
	}
	return &HTTPKernel{router: r}
}

func (k *HTTPKernel) Handler() http.Handler { return k.router.Handler() }

// Router exposes the route table, e.g. for route:list.
func (k *HTTPKernel) Router() *router.Router { return k.router }
