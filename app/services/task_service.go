package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/metrics"
	"github.com/invictusops/invictus/pkg/notification"
)

// assignmentPreview is how much of the description goes into the message.
const assignmentPreview = 50

// TaskAssigned tells a user someone else gave them a task.
type TaskAssigned struct {
	Task     models.Task
	Assigner models.User
}

func (n TaskAssigned) Via() []string {
	return []string{notification.ChannelMailbox, notification.ChannelWebhook}
}

// Message is the mailbox text, e.g.
// `Mohammad assigned you a new task: "Count the stock in aisle 3..."`.
func (n TaskAssigned) Message() string {
	desc := []rune(n.Task.Description)
	if len(desc) > assignmentPreview {
		desc = desc[:assignmentPreview]
	}
	return fmt.Sprintf("%s assigned you a new task: \"%s...\"", n.Assigner.Name, string(desc))
}

func (n TaskAssigned) ToMailbox() notification.MailboxData {
	return notification.MailboxData{Recipient: n.Task.AssignedTo, Message: n.Message()}
}

func (n TaskAssigned) ToWebhook() notification.WebhookData {
	return notification.WebhookData{Payload: map[string]string{
		"event":      "task.assigned",
		"taskId":     n.Task.ID,
		"assignedTo": n.Task.AssignedTo,
		"createdBy":  n.Task.CreatedBy,
		"message":    n.Message(),
	}}
}

// CreateTaskInput is the new-task form.
type CreateTaskInput struct {
	Description string `json:"description" validate:"required,max=2000"`
	AssignedTo  string `json:"assignedTo"  validate:"required"`
	DueDate     string `json:"dueDate"     validate:"nullable,date"`
}

type TaskService struct {
	tasks    docstore.Collection
	users    *UserService
	notifier *notification.Dispatcher
	now      func() time.Time
}

func NewTaskService(store docstore.Store, users *UserService, notifier *notification.Dispatcher, now func() time.Time) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		tasks:    store.Collection(models.CollectionTasks),
		users:    users,
		notifier: notifier,
		now:      now,
	}
}

func (s *TaskService) List(ctx context.Context) ([]models.Task, error) {
	docs, err := s.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	tasks, errs := docstore.DecodeAll[models.Task](docs)
	for _, e := range errs {
		logger.WithCtx(ctx).Warn("tasks: skipping malformed document", "error", e)
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (models.Task, error) {
	doc, err := s.tasks.Get(ctx, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("tasks: get %s: %w", id, err)
	}
	var t models.Task
	if err := docstore.Decode(doc, &t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// Create stores a To Do task. When the assignee is someone other than the
// creator a message is queued in the assignee's mailbox. A failed
// notification is logged and does not undo the task.
func (s *TaskService) Create(ctx context.Context, actor models.User, in CreateTaskInput) (models.Task, error) {
	defer metrics.ObserveStoreOp(models.CollectionTasks, "add", time.Now())

	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return models.Task{}, invalid("description", "The description field is required.")
	}
	if _, err := s.users.Find(ctx, in.AssignedTo); err != nil {
		return models.Task{}, invalid("assignedTo", "Unknown user.")
	}

	t := models.Task{
		Description: desc,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   actor.ID,
		DueDate:     in.DueDate,
		Status:      models.TaskToDo,
		CreatedAt:   s.now().UTC(),
	}
	f, err := docstore.Encode(t)
	if err != nil {
		return models.Task{}, err
	}
	id, err := s.tasks.Add(ctx, f)
	if err != nil {
		return models.Task{}, fmt.Errorf("tasks: create: %w", err)
	}
	t.ID = id

	if t.AssignedTo != actor.ID {
		if errs := s.notifier.Send(ctx, TaskAssigned{Task: t, Assigner: actor}); len(errs) > 0 {
			logger.WithCtx(ctx).Warn("tasks: assignment notification incomplete", "task_id", id, "errors", len(errs))
		}
	}
	return t, nil
}

// SetStatus moves a task to status. Any status can follow any other, but
// entering Completed needs confirm. completedAt is stamped on entering
// Completed and cleared on leaving it.
func (s *TaskService) SetStatus(ctx context.Context, id string, status models.TaskStatus, confirm bool) (models.Task, error) {
	defer metrics.ObserveStoreOp(models.CollectionTasks, "update", time.Now())

	if !status.Valid() {
		return models.Task{}, invalid("status", "Status must be one of To Do, In Progress, Completed.")
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if t.Status == status {
		return t, nil
	}
	if status == models.TaskCompleted && !confirm {
		return models.Task{}, ErrConfirmationRequired
	}

	fields := docstore.Fields{"status": string(status)}
	if status == models.TaskCompleted {
		at := s.now().UTC()
		fields["completedAt"] = at.Format(time.RFC3339Nano)
		t.CompletedAt = &at
	} else {
		fields["completedAt"] = nil
		t.CompletedAt = nil
	}
	if err := s.tasks.Update(ctx, id, fields); err != nil {
		return models.Task{}, fmt.Errorf("tasks: set status %s: %w", id, err)
	}
	t.Status = status
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return fmt.Errorf("tasks: delete %s: %w", id, err)
	}
	return nil
}
