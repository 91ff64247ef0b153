package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/app/services"
)

func TestTasks_AssigningSomeoneElseNotifiesThem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "Mohammad")
	b := f.user(t, "Osama")

	desc := strings.Repeat("x", 60)
	task, err := f.tasks.Create(ctx, a, services.CreateTaskInput{Description: desc, AssignedTo: b.ID, DueDate: "2024-03-12"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskToDo, task.Status)
	assert.Equal(t, a.ID, task.CreatedBy)

	msgs, err := f.mail.Drain(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, `Mohammad assigned you a new task: "`+strings.Repeat("x", 50)+`..."`, msgs[0])

	msgs, err = f.mail.Drain(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTasks_SelfAssignmentIsSilent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "Mohammad")

	_, err := f.tasks.Create(ctx, a, services.CreateTaskInput{Description: "count stock", AssignedTo: a.ID})
	require.NoError(t, err)

	msgs, err := f.mail.Drain(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTasks_CreateValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "Mohammad")

	_, err := f.tasks.Create(ctx, a, services.CreateTaskInput{Description: "  ", AssignedTo: a.ID})
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = f.tasks.Create(ctx, a, services.CreateTaskInput{Description: "x", AssignedTo: "ghost"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestTasks_CompletingNeedsConfirmationAndStampsTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "Mohammad")
	task, err := f.tasks.Create(ctx, a, services.CreateTaskInput{Description: "count stock", AssignedTo: a.ID})
	require.NoError(t, err)

	_, err = f.tasks.SetStatus(ctx, task.ID, models.TaskCompleted, false)
	assert.ErrorIs(t, err, services.ErrConfirmationRequired)

	done, err := f.tasks.SetStatus(ctx, task.ID, models.TaskCompleted, true)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, fixedNow, *done.CompletedAt)

	stored, err := f.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, fixedNow.Equal(*stored.CompletedAt))

	back, err := f.tasks.SetStatus(ctx, task.ID, models.TaskInProgress, false)
	require.NoError(t, err)
	assert.Nil(t, back.CompletedAt)

	stored, err = f.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CompletedAt)
	assert.Equal(t, models.TaskInProgress, stored.Status)

	_, err = f.tasks.SetStatus(ctx, task.ID, "Blocked", true)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestTasks_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "Mohammad")
	task, err := f.tasks.Create(ctx, a, services.CreateTaskInput{Description: "count stock", AssignedTo: a.ID})
	require.NoError(t, err)

	require.NoError(t, f.tasks.Delete(ctx, task.ID))
	tasks, err := f.tasks.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskAssigned_ShortDescriptionStillGetsEllipsis(t *testing.T) {
	n := services.TaskAssigned{
		Task:     models.Task{Description: "Call the supplier"},
		Assigner: models.User{Name: "Shadi"},
	}
	assert.Equal(t, `Shadi assigned you a new task: "Call the supplier..."`, n.Message())
}
