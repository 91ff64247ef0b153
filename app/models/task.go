package models

import "time"

type TaskStatus string

const (
	TaskToDo       TaskStatus = "To Do"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskToDo, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Task is a unit of work assigned to a user. CompletedAt is set when the
// task enters Completed and cleared when it leaves.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	AssignedTo  string     `json:"assignedTo"`
	CreatedBy   string     `json:"createdBy"`
	DueDate     string     `json:"dueDate,omitempty"`
	Status      TaskStatus `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Mailbox holds undelivered messages for one user. Its id is the user id.
type Mailbox struct {
	ID       string   `json:"id"`
	Messages []string `json:"messages"`
}
