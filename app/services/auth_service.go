package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/internal/gate"
	"github.com/invictusops/invictus/internal/views"
	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/metrics"
	"github.com/invictusops/invictus/pkg/session"
)

// ReminderMessage is the daily banner shown until dismissed for the day.
const ReminderMessage = "Daily Reminder: Don't forget to import today's Excel file into your accounting system!"

// Status is what a client needs to render the login flow or the shell.
type Status struct {
	State        gate.State      `json:"state"`
	Selected     *models.Profile `json:"selected,omitempty"`
	User         *models.Profile `json:"user,omitempty"`
	View         string          `json:"view,omitempty"`
	ShowReminder bool            `json:"showReminder"`
	Reminder     string          `json:"reminder,omitempty"`
}

// Login is returned by the transitions that may authenticate. Token and
// Messages are set only when the session became Authenticated.
type Login struct {
	Status
	Token    string   `json:"token,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

// AuthService drives the login state machine stored in the session.
// Callers save the session after every call.
type AuthService struct {
	users  *UserService
	mail   *NotificationService
	engine *views.Engine
	issue  func(userID, sessionID string) (string, error)
}

func NewAuthService(users *UserService, mail *NotificationService, engine *views.Engine) *AuthService {
	return &AuthService{users: users, mail: mail, engine: engine, issue: auth.GenerateToken}
}

func machine(sess *session.Session) *gate.Machine {
	raw, _ := sess.GetString(session.KeyGate)
	return gate.Restore(raw)
}

func keep(sess *session.Session, m *gate.Machine) error {
	raw, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("auth: encode gate: %w", err)
	}
	sess.Set(session.KeyGate, raw)
	return nil
}

func (s *AuthService) verifier(ctx context.Context) gate.Verifier {
	return func(id, password string) bool {
		return s.users.VerifyPassword(ctx, id, password)
	}
}

func (s *AuthService) persister(ctx context.Context) func(id, password string) error {
	return func(id, password string) error {
		return s.users.SetPassword(ctx, id, password)
	}
}

// Status describes the session as it stands.
func (s *AuthService) Status(ctx context.Context, sess *session.Session) Status {
	m := machine(sess)
	st := Status{State: m.State, View: m.View}

	if m.SelectedID != "" {
		if u, err := s.users.Find(ctx, m.SelectedID); err == nil {
			p := u.Profile()
			st.Selected = &p
		}
	}
	if m.IsAuthenticated() {
		if u, err := s.users.Find(ctx, m.UserID); err == nil {
			p := u.Profile()
			st.User = &p
		}
		last, _ := sess.GetString(session.KeyLastReminderDate)
		if last != s.engine.Today() {
			st.ShowReminder = true
			st.Reminder = ReminderMessage
		}
	}
	return st
}

// Select picks the profile to log in as.
func (s *AuthService) Select(ctx context.Context, sess *session.Session, userID string) (Status, error) {
	if _, err := s.users.Find(ctx, userID); err != nil {
		return Status{}, err
	}
	m := machine(sess)
	if err := m.Select(userID); err != nil {
		return Status{}, err
	}
	if err := keep(sess, m); err != nil {
		return Status{}, err
	}
	return s.Status(ctx, sess), nil
}

// SubmitPassword checks the password of the selected profile.
func (s *AuthService) SubmitPassword(ctx context.Context, sess *session.Session, password string) (Login, error) {
	m := machine(sess)

	acct := gate.Account{ID: m.SelectedID}
	if m.State == gate.PasswordEntry {
		u, err := s.users.Find(ctx, m.SelectedID)
		if err != nil {
			return Login{}, err
		}
		acct.HasSetPassword = u.HasSetPassword
	}

	err := m.SubmitPassword(acct, password, s.verifier(ctx))
	if errors.Is(err, gate.ErrWrongPassword) {
		metrics.LoginAttempts.WithLabelValues("wrong_password").Inc()
		logger.WithCtx(ctx).Info("auth: wrong password", "user_id", acct.ID)
	}
	if err != nil {
		return Login{}, err
	}

	if m.State == gate.FirstTimeSetup {
		metrics.LoginAttempts.WithLabelValues("setup").Inc()
		if err := keep(sess, m); err != nil {
			return Login{}, err
		}
		return Login{Status: s.Status(ctx, sess)}, nil
	}

	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	return s.attach(ctx, sess, m)
}

// CompleteSetup stores the first chosen password and logs the user in.
func (s *AuthService) CompleteSetup(ctx context.Context, sess *session.Session, password, confirm string) (Login, error) {
	m := machine(sess)
	if err := m.CompleteSetup(password, confirm, s.persister(ctx)); err != nil {
		return Login{}, passwordError(err)
	}
	return s.attach(ctx, sess, m)
}

// attach runs once when the session becomes Authenticated: a fresh session
// id, the authenticated user key, a token, and the mailbox drain.
func (s *AuthService) attach(ctx context.Context, sess *session.Session, m *gate.Machine) (Login, error) {
	if err := sess.Regenerate(ctx); err != nil {
		logger.WithCtx(ctx).Warn("auth: dropping old session failed", "error", err)
	}
	if err := keep(sess, m); err != nil {
		return Login{}, err
	}
	sess.Set(session.KeyAuthenticatedUser, m.UserID)

	token, err := s.issue(m.UserID, sess.ID())
	if err != nil {
		return Login{}, fmt.Errorf("auth: issue token: %w", err)
	}

	// Messages stay queued if the drain fails; the next attach retries.
	msgs, err := s.mail.Drain(ctx, m.UserID)
	if err != nil {
		logger.WithCtx(ctx).Error("auth: mailbox drain failed", "user_id", m.UserID, "error", err)
	}

	logger.WithCtx(ctx).Info("auth: logged in", "user_id", m.UserID)
	return Login{Status: s.Status(ctx, sess), Token: token, Messages: msgs}, nil
}

// Cancel closes the login dialog.
func (s *AuthService) Cancel(ctx context.Context, sess *session.Session) (Status, error) {
	m := machine(sess)
	if err := m.Cancel(); err != nil {
		return Status{}, err
	}
	if err := keep(sess, m); err != nil {
		return Status{}, err
	}
	return s.Status(ctx, sess), nil
}

// Logout returns to profile selection. The reminder date survives logout.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) (Status, error) {
	m := machine(sess)
	userID := m.UserID
	if err := m.Logout(); err != nil {
		return Status{}, err
	}
	if err := keep(sess, m); err != nil {
		return Status{}, err
	}
	sess.Delete(session.KeyAuthenticatedUser)
	logger.WithCtx(ctx).Info("auth: logged out", "user_id", userID)
	return s.Status(ctx, sess), nil
}

// ChangePassword replaces the logged-in user's password.
func (s *AuthService) ChangePassword(ctx context.Context, sess *session.Session, current, password, confirm string) error {
	m := machine(sess)
	return passwordError(m.ChangePassword(current, password, confirm, s.verifier(ctx), s.persister(ctx)))
}

// DismissReminder hides the daily banner until tomorrow.
func (s *AuthService) DismissReminder(ctx context.Context, sess *session.Session) (Status, error) {
	if _, ok := s.CurrentUser(sess); !ok {
		return Status{}, ErrNotAuthenticated
	}
	sess.Set(session.KeyLastReminderDate, s.engine.Today())
	return s.Status(ctx, sess), nil
}

// CurrentUser returns the authenticated user id of sess.
func (s *AuthService) CurrentUser(sess *session.Session) (string, bool) {
	if sess == nil {
		return "", false
	}
	m := machine(sess)
	if !m.IsAuthenticated() {
		return "", false
	}
	id, _ := sess.GetString(session.KeyAuthenticatedUser)
	return id, id == m.UserID
}

// passwordError turns the gate's input errors into field errors.
func passwordError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gate.ErrPasswordTooShort):
		return invalid("password", err.Error())
	case errors.Is(err, gate.ErrPasswordMismatch):
		return invalid("confirm", err.Error())
	default:
		return err
	}
}
