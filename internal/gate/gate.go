// Package gate is the login state machine that guards every view.
//
//	NoSelection ──select──▶ PasswordEntry ──ok, first login──▶ FirstTimeSetup ──set──▶ Authenticated
//	                              │                                                      ▲
//	                              └──────────────ok, password already set────────────────┘
//	Authenticated ──logout──▶ NoSelection
//
// Machine is a plain value: it holds no store handle. Credential checks are
// passed in as a Verifier so the state logic stays pure.
package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

type State string

const (
	NoSelection    State = "NoSelection"
	PasswordEntry  State = "PasswordEntry"
	FirstTimeSetup State = "FirstTimePasswordSetup"
	Authenticated  State = "Authenticated"
)

// MinPasswordLength applies to first-time setup and password changes.
const MinPasswordLength = 6

// DefaultView is the view shown right after login.
const DefaultView = "dashboard"

var (
	ErrWrongPassword     = errors.New("incorrect password")
	ErrPasswordTooShort  = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrInvalidTransition = errors.New("action not allowed in the current state")
)

// Account is what the gate needs to know about a profile.
type Account struct {
	ID             string
	HasSetPassword bool
}

// Verifier reports whether password is the account's current credential.
type Verifier func(accountID, password string) bool

// Machine is the state of one browser session.
type Machine struct {
	State      State  `json:"state"`
	SelectedID string `json:"selectedId,omitempty"`
	UserID     string `json:"userId,omitempty"`
	View       string `json:"view,omitempty"`
}

// New returns a machine in NoSelection.
func New() *Machine {
	return &Machine{State: NoSelection}
}

// Select picks a profile to log in as. Allowed from NoSelection and
// PasswordEntry (switching profiles).
func (m *Machine) Select(accountID string) error {
	if m.State != NoSelection && m.State != PasswordEntry {
		return m.invalid("select")
	}
	if accountID == "" {
		return fmt.Errorf("%w: no profile given", ErrInvalidTransition)
	}
	m.State = PasswordEntry
	m.SelectedID = accountID
	return nil
}

// SubmitPassword checks password for the selected account. A wrong password
// keeps the state and the selection.
func (m *Machine) SubmitPassword(acct Account, password string, verify Verifier) error {
	if m.State != PasswordEntry {
		return m.invalid("submit password")
	}
	if acct.ID != m.SelectedID {
		return fmt.Errorf("%w: account is not the selected profile", ErrInvalidTransition)
	}
	if !verify(acct.ID, password) {
		return ErrWrongPassword
	}
	if !acct.HasSetPassword {
		m.State = FirstTimeSetup
		return nil
	}
	m.authenticate()
	return nil
}

// CompleteSetup finishes first-time setup. persist stores the new password
// and is only called once the password passes validation.
func (m *Machine) CompleteSetup(newPassword, confirm string, persist func(accountID, password string) error) error {
	if m.State != FirstTimeSetup {
		return m.invalid("set first password")
	}
	if err := ValidateNewPassword(newPassword, confirm); err != nil {
		return err
	}
	if err := persist(m.SelectedID, newPassword); err != nil {
		return err
	}
	m.authenticate()
	return nil
}

// ChangePassword replaces the password of the logged-in user. The state is
// unchanged.
func (m *Machine) ChangePassword(current, newPassword, confirm string, verify Verifier, persist func(accountID, password string) error) error {
	if m.State != Authenticated {
		return m.invalid("change password")
	}
	if !verify(m.UserID, current) {
		return ErrWrongPassword
	}
	if err := ValidateNewPassword(newPassword, confirm); err != nil {
		return err
	}
	return persist(m.UserID, newPassword)
}

// Cancel closes the login dialog and drops the selection.
func (m *Machine) Cancel() error {
	if m.State != PasswordEntry && m.State != FirstTimeSetup {
		return m.invalid("cancel")
	}
	m.reset()
	return nil
}

// Logout ends an authenticated session.
func (m *Machine) Logout() error {
	if m.State != Authenticated {
		return m.invalid("logout")
	}
	m.reset()
	return nil
}

// IsAuthenticated reports whether views may be served.
func (m *Machine) IsAuthenticated() bool {
	return m.State == Authenticated && m.UserID != ""
}

// ValidateNewPassword applies the length and confirmation rules. Length is
// counted in characters, not bytes.
func ValidateNewPassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

func (m *Machine) authenticate() {
	m.State = Authenticated
	m.UserID = m.SelectedID
	m.View = DefaultView
}

func (m *Machine) reset() {
	*m = Machine{State: NoSelection}
}

func (m *Machine) invalid(action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, m.State)
}

// Marshal encodes the machine for session storage.
func (m *Machine) Marshal() (string, error) {
	raw, err := json.Marshal(m)
	return string(raw), err
}

// Restore decodes a machine stored by Marshal. Empty or invalid input yields
// a fresh machine.
func Restore(raw string) *Machine {
	m := New()
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), m); err != nil {
		return New()
	}
	switch m.State {
	case NoSelection, PasswordEntry, FirstTimeSetup, Authenticated:
		return m
	default:
		return New()
	}
}
