package controllers

import (
	"errors"

	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/internal/gate"
	"github.com/invictusops/invictus/pkg/ctx"
)

// SessionController exposes the login flow. Every transition saves the
// session, so the cookie always names the current session id.
type SessionController struct {
	auth  *services.AuthService
	users *services.UserService
}

func NewSessionController(auth *services.AuthService, users *services.UserService) *SessionController {
	return &SessionController{auth: auth, users: users}
}

type selectInput struct {
	UserID string `json:"userId" validate:"required"`
}

type passwordInput struct {
	Password string `json:"password" validate:"required"`
}

type setupInput struct {
	Password string `json:"password" validate:"required"`
	Confirm  string `json:"confirm"  validate:"required"`
}

type changePasswordInput struct {
	Current  string `json:"current"  validate:"required"`
	Password string `json:"password" validate:"required"`
	Confirm  string `json:"confirm"  validate:"required"`
}

// Profiles lists the selectable staff profiles.
func (s *SessionController) Profiles(c *ctx.Context) {
	profiles, err := s.users.Profiles(c.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.Success(profiles)
}

func (s *SessionController) Status(c *ctx.Context) {
	c.Success(s.auth.Status(c.Context(), c.Session()))
}

func (s *SessionController) Select(c *ctx.Context) {
	var in selectInput
	if !c.BindJSON(&in) {
		return
	}
	s.reply(c, func() (any, error) {
		return s.auth.Select(c.Context(), c.Session(), in.UserID)
	})
}

func (s *SessionController) SubmitPassword(c *ctx.Context) {
	var in passwordInput
	if !c.BindJSON(&in) {
		return
	}
	s.reply(c, func() (any, error) {
		return s.auth.SubmitPassword(c.Context(), c.Session(), in.Password)
	})
}

func (s *SessionController) CompleteSetup(c *ctx.Context) {
	var in setupInput
	if !c.BindJSON(&in) {
		return
	}
	s.reply(c, func() (any, error) {
		return s.auth.CompleteSetup(c.Context(), c.Session(), in.Password, in.Confirm)
	})
}

func (s *SessionController) Cancel(c *ctx.Context) {
	s.reply(c, func() (any, error) {
		return s.auth.Cancel(c.Context(), c.Session())
	})
}

func (s *SessionController) Logout(c *ctx.Context) {
	s.reply(c, func() (any, error) {
		return s.auth.Logout(c.Context(), c.Session())
	})
}

func (s *SessionController) ChangePassword(c *ctx.Context) {
	var in changePasswordInput
	if !c.BindJSON(&in) {
		return
	}
	err := s.auth.ChangePassword(c.Context(), c.Session(), in.Current, in.Password, in.Confirm)
	if errors.Is(err, gate.ErrWrongPassword) {
		c.ValidationError(map[string]string{"current": err.Error()})
		return
	}
	if err != nil {
		Fail(c, err)
		return
	}
	c.NoContent()
}

func (s *SessionController) DismissReminder(c *ctx.Context) {
	s.reply(c, func() (any, error) {
		return s.auth.DismissReminder(c.Context(), c.Session())
	})
}

// reply runs a transition, saves the session and writes the result.
func (s *SessionController) reply(c *ctx.Context, run func() (any, error)) {
	out, err := run()
	if saveErr := c.SaveSession(); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		Fail(c, err)
		return
	}
	c.Success(out)
}
