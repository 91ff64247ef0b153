package controllers

import (
	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/pkg/ctx"
)

type TaskController struct {
	tasks *services.TaskService
	users *services.UserService
}

func NewTaskController(tasks *services.TaskService, users *services.UserService) *TaskController {
	return &TaskController{tasks: tasks, users: users}
}

type statusInput struct {
	Status  models.TaskStatus `json:"status"  validate:"required,in=To Do|In Progress|Completed"`
	Confirm bool              `json:"confirm"`
}

func (tc *TaskController) Create(c *ctx.Context) {
	var in services.CreateTaskInput
	if !c.BindJSON(&in) {
		return
	}
	actor, err := tc.users.Find(c.Context(), c.UserID())
	if err != nil {
		Fail(c, err)
		return
	}
	task, err := tc.tasks.Create(c.Context(), actor, in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Created(task)
}

// SetStatus answers 409 when a task would be completed without confirm.
func (tc *TaskController) SetStatus(c *ctx.Context) {
	var in statusInput
	if !c.BindJSON(&in) {
		return
	}
	task, err := tc.tasks.SetStatus(c.Context(), c.Param("id"), in.Status, in.Confirm)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Success(task)
}

func (tc *TaskController) Delete(c *ctx.Context) {
	if err := tc.tasks.Delete(c.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.NoContent()
}
