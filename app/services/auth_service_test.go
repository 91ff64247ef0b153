package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/internal/gate"
	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/session"
)

func TestAuth_FirstLoginGoesThroughSetup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "Mohammad")
	sess := f.session.New()

	st, err := f.auth.Select(ctx, sess, u.ID)
	require.NoError(t, err)
	assert.Equal(t, gate.PasswordEntry, st.State)
	require.NotNil(t, st.Selected)
	assert.Equal(t, "Mohammad", st.Selected.Name)

	login, err := f.auth.SubmitPassword(ctx, sess, "password123")
	require.NoError(t, err)
	assert.Equal(t, gate.FirstTimeSetup, login.State)
	assert.Empty(t, login.Token)

	_, err = f.auth.CompleteSetup(ctx, sess, "abc", "abc")
	assert.ErrorIs(t, err, services.ErrValidation)

	login, err = f.auth.CompleteSetup(ctx, sess, "s3cret!", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, gate.Authenticated, login.State)
	assert.Equal(t, gate.DefaultView, login.View)
	assert.NotEmpty(t, login.Token)

	claims, err := auth.ValidateToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, sess.ID(), claims.SessionID)

	id, ok := f.auth.CurrentUser(sess)
	assert.True(t, ok)
	assert.Equal(t, u.ID, id)

	stored, err := f.users.Find(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasSetPassword)
	assert.True(t, f.users.VerifyPassword(ctx, u.ID, "s3cret!"))
	assert.False(t, f.users.VerifyPassword(ctx, u.ID, "password123"))
}

func TestAuth_WrongPasswordKeepsSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "Osama")
	sess := f.session.New()

	_, err := f.auth.Select(ctx, sess, u.ID)
	require.NoError(t, err)

	_, err = f.auth.SubmitPassword(ctx, sess, "nope")
	assert.ErrorIs(t, err, gate.ErrWrongPassword)

	st := f.auth.Status(ctx, sess)
	assert.Equal(t, gate.PasswordEntry, st.State)
	require.NotNil(t, st.Selected)
	assert.Equal(t, u.ID, st.Selected.ID)
}

func TestAuth_SelectUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.Select(context.Background(), f.session.New(), "ghost")
	assert.Error(t, err)
}

func TestAuth_LoginDrainsMailboxOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "Shadi")
	require.NoError(t, f.users.SetPassword(ctx, u.ID, "secret1"))
	require.NoError(t, f.mail.Notify(ctx, u.ID, "first"))
	require.NoError(t, f.mail.Notify(ctx, u.ID, "second"))

	sess := f.session.New()
	_, err := f.auth.Select(ctx, sess, u.ID)
	require.NoError(t, err)
	login, err := f.auth.SubmitPassword(ctx, sess, "secret1")
	require.NoError(t, err)
	assert.Equal(t, gate.Authenticated, login.State)
	assert.Equal(t, []string{"first", "second"}, login.Messages)

	again, err := f.mail.Drain(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAuth_LogoutKeepsReminderDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "Anas")
	require.NoError(t, f.users.SetPassword(ctx, u.ID, "secret1"))

	sess := f.session.New()
	_, err := f.auth.Select(ctx, sess, u.ID)
	require.NoError(t, err)
	login, err := f.auth.SubmitPassword(ctx, sess, "secret1")
	require.NoError(t, err)
	assert.True(t, login.ShowReminder)

	st, err := f.auth.DismissReminder(ctx, sess)
	require.NoError(t, err)
	assert.False(t, st.ShowReminder)

	st, err = f.auth.Logout(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, gate.NoSelection, st.State)
	_, ok := sess.Get(session.KeyAuthenticatedUser)
	assert.False(t, ok)
	day, _ := sess.GetString(session.KeyLastReminderDate)
	assert.Equal(t, "2024-03-10", day)

	_, ok = f.auth.CurrentUser(sess)
	assert.False(t, ok)
	_, err = f.auth.DismissReminder(ctx, sess)
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)
}

func TestAuth_ChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "Abdulselam")
	require.NoError(t, f.users.SetPassword(ctx, u.ID, "secret1"))

	sess := f.session.New()
	assert.ErrorIs(t, f.auth.ChangePassword(ctx, sess, "secret1", "secret2", "secret2"), gate.ErrInvalidTransition)

	_, err := f.auth.Select(ctx, sess, u.ID)
	require.NoError(t, err)
	_, err = f.auth.SubmitPassword(ctx, sess, "secret1")
	require.NoError(t, err)

	assert.ErrorIs(t, f.auth.ChangePassword(ctx, sess, "wrong", "secret2", "secret2"), gate.ErrWrongPassword)
	assert.ErrorIs(t, f.auth.ChangePassword(ctx, sess, "secret1", "secret2", "secret3"), services.ErrValidation)
	require.NoError(t, f.auth.ChangePassword(ctx, sess, "secret1", "secret2", "secret2"))
	assert.True(t, f.users.VerifyPassword(ctx, u.ID, "secret2"))

	st := f.auth.Status(ctx, sess)
	assert.Equal(t, gate.Authenticated, st.State)
}

func TestAuth_CancelReturnsToSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "Abdulkarim")
	sess := f.session.New()

	_, err := f.auth.Select(ctx, sess, u.ID)
	require.NoError(t, err)
	st, err := f.auth.Cancel(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, gate.NoSelection, st.State)
	assert.Nil(t, st.Selected)
}
