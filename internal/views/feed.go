package views

import (
	"fmt"
	"time"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/pkg/collection"
)

type ActivityType string

const (
	ActivityInventoryAdd ActivityType = "INVENTORY_ADD"
	ActivityTaskAdd      ActivityType = "TASK_ADD"
	ActivityTaskComplete ActivityType = "TASK_COMPLETE"
	ActivityOrderLog     ActivityType = "ORDER_LOG"
	ActivityRequestAdd   ActivityType = "REQUEST_ADD"
)

// Activity is one line of the activity feed.
type Activity struct {
	Type      ActivityType    `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Actor     *models.Profile `json:"actor,omitempty"`
	Target    *models.Profile `json:"target,omitempty"`
	Text      string          `json:"text"`
}

// BuildActivityFeed merges creation and completion events from inventory,
// tasks, daily orders and order requests, newest first, capped at FeedLimit.
// Events with equal timestamps keep source order. Completed tasks without a
// completion time produce no completion event.
func BuildActivityFeed(inventory []models.InventoryItem, tasks []models.Task, daily []models.DailyOrder, requests []models.OrderRequest, users []models.User, current *models.User) []Activity {
	byID := collection.KeyBy(users, func(u models.User) string { return u.ID })
	lookup := func(id string) *models.Profile {
		u, ok := byID[id]
		if id == "" || !ok {
			return nil
		}
		p := u.Profile()
		return &p
	}

	var currentProfile *models.Profile
	if current != nil {
		p := current.Profile()
		currentProfile = &p
	}

	feed := make([]Activity, 0, len(inventory)+2*len(tasks)+len(daily)+len(requests))

	for _, it := range inventory {
		feed = append(feed, Activity{
			Type:      ActivityInventoryAdd,
			Timestamp: it.CreatedAt,
			Actor:     lookup(it.ManagedBy),
			Text:      fmt.Sprintf("added %q to stock.", it.Name),
		})
	}

	for _, t := range tasks {
		feed = append(feed, Activity{
			Type:      ActivityTaskAdd,
			Timestamp: t.CreatedAt,
			Actor:     lookup(t.CreatedBy),
			Target:    lookup(t.AssignedTo),
			Text:      "assigned a task to",
		})
		if t.Status == models.TaskCompleted && t.CompletedAt != nil {
			feed = append(feed, Activity{
				Type:      ActivityTaskComplete,
				Timestamp: *t.CompletedAt,
				Actor:     lookup(t.AssignedTo),
				Text:      fmt.Sprintf("completed task: %q", t.Description),
			})
		}
	}

	for _, o := range daily {
		actor := lookup(o.LoggedBy)
		if actor == nil {
			actor = currentProfile
		}
		feed = append(feed, Activity{
			Type:      ActivityOrderLog,
			Timestamp: o.CreatedAt,
			Actor:     actor,
			Text:      fmt.Sprintf("logged an order for %q.", o.CustomerName),
		})
	}

	for _, r := range requests {
		feed = append(feed, Activity{
			Type:      ActivityRequestAdd,
			Timestamp: r.CreatedAt,
			Actor:     lookup(r.RequestedBy),
			Text:      fmt.Sprintf("logged a new request for %q.", r.CustomerName),
		})
	}

	feed = collection.SortBy(feed, func(a, b Activity) bool { return a.Timestamp.After(b.Timestamp) })
	return collection.Take(feed, FeedLimit)
}
