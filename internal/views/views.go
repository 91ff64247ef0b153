// Package views computes everything the dashboard shows from the latest
// collection snapshots. All functions are pure: same input, same output, no
// store access.
package views

import (
	"strings"
	"time"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/pkg/collection"
)

const (
	// ReorderThreshold is the quantity below which an item needs reordering.
	ReorderThreshold = 3
	// FeedLimit caps the activity feed.
	FeedLimit = 10
	// DashboardTaskLimit caps the "my tasks" list on the dashboard.
	DashboardTaskLimit = 5
	// DateLayout is the local date format used by dateSent and "today".
	DateLayout = "2006-01-02"
)

// Engine carries the clock used for "today". Everything else is a plain
// function of its arguments.
type Engine struct {
	now func() time.Time
	loc *time.Location
}

// NewEngine returns an Engine. A nil now uses time.Now, a nil loc uses
// time.Local.
func NewEngine(now func() time.Time, loc *time.Location) *Engine {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{now: now, loc: loc}
}

// Today is the current local date as YYYY-MM-DD.
func (e *Engine) Today() string {
	return e.now().In(e.loc).Format(DateLayout)
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time { return e.now() }

// PartitionInventory splits items into in-stock and reorder lists in one
// pass. Input order is kept in both outputs.
func PartitionInventory(items []models.InventoryItem) (inStock, reorder []models.InventoryItem) {
	reorder, inStock = collection.Partition(items, NeedsReorder)
	return inStock, reorder
}

func NeedsReorder(it models.InventoryItem) bool {
	return it.Quantity < ReorderThreshold
}

// DashboardCounts are the three headline numbers of the dashboard.
type DashboardCounts struct {
	ReorderCount int `json:"reorderCount"`
	PendingTasks int `json:"pendingTasks"`
	TodaysOrders int `json:"todaysOrders"`
}

// DashboardCounts counts reorder items, the current user's unfinished tasks
// and the daily orders whose dateSent is today.
func (e *Engine) DashboardCounts(currentUserID string, inventory []models.InventoryItem, tasks []models.Task, daily []models.DailyOrder) DashboardCounts {
	today := e.Today()
	return DashboardCounts{
		ReorderCount: collection.Count(inventory, NeedsReorder),
		PendingTasks: collection.Count(tasks, pendingFor(currentUserID)),
		TodaysOrders: collection.Count(daily, func(o models.DailyOrder) bool { return o.DateSent == today }),
	}
}

func pendingFor(userID string) func(models.Task) bool {
	return func(t models.Task) bool {
		return t.AssignedTo == userID && t.Status != models.TaskCompleted
	}
}

// MyPendingTasks returns up to limit unfinished tasks assigned to userID in
// input order.
func MyPendingTasks(userID string, tasks []models.Task, limit int) []models.Task {
	return collection.Take(collection.Filter(tasks, pendingFor(userID)), limit)
}

// IsFulfillable reports whether every line can be served from inventory:
// some item with the same name (case-insensitive) holds at least the
// requested quantity. An order without lines is not fulfillable.
func IsFulfillable(lines []models.LineItem, inventory []models.InventoryItem) bool {
	if len(lines) == 0 {
		return false
	}
	for _, line := range lines {
		if !hasStock(line, inventory) {
			return false
		}
	}
	return true
}

func hasStock(line models.LineItem, inventory []models.InventoryItem) bool {
	name := strings.TrimSpace(line.Name)
	return collection.Contains(inventory, func(it models.InventoryItem) bool {
		return strings.EqualFold(strings.TrimSpace(it.Name), name) && it.Quantity >= line.Quantity
	})
}

// RequestView is an order request annotated with its fulfillability.
type RequestView struct {
	models.OrderRequest
	Summary     string `json:"summary"`
	Fulfillable bool   `json:"fulfillable"`
}

// OrderRequests annotates every request.
func OrderRequests(requests []models.OrderRequest, inventory []models.InventoryItem) []RequestView {
	return collection.Map(requests, func(r models.OrderRequest) RequestView {
		return RequestView{
			OrderRequest: r,
			Summary:      r.OrderDetails.Summary(),
			Fulfillable:  IsFulfillable(r.OrderDetails.LineItemList(), inventory),
		}
	})
}

// Backorders are the requests that cannot be served from current stock.
func Backorders(requests []models.OrderRequest, inventory []models.InventoryItem) []RequestView {
	return collection.Filter(OrderRequests(requests, inventory), func(v RequestView) bool { return !v.Fulfillable })
}

// SortKey names a sortable inventory column.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortByType     SortKey = "type"
	SortBySupplier SortKey = "supplier"
	SortByQuantity SortKey = "quantity"
)

// FilterInventory keeps items whose name, type or supplier contains search,
// ignoring case. An empty search keeps everything.
func FilterInventory(items []models.InventoryItem, search string) []models.InventoryItem {
	q := strings.ToLower(strings.TrimSpace(search))
	return collection.Filter(items, func(it models.InventoryItem) bool {
		return q == "" ||
			strings.Contains(strings.ToLower(it.Name), q) ||
			strings.Contains(strings.ToLower(it.Type), q) ||
			strings.Contains(strings.ToLower(it.Supplier), q)
	})
}

// SortInventory returns a sorted copy. Unknown keys keep input order.
func SortInventory(items []models.InventoryItem, key SortKey, desc bool) []models.InventoryItem {
	var less func(a, b models.InventoryItem) bool
	switch key {
	case SortByName:
		less = func(a, b models.InventoryItem) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortByType:
		less = func(a, b models.InventoryItem) bool { return strings.ToLower(a.Type) < strings.ToLower(b.Type) }
	case SortBySupplier:
		less = func(a, b models.InventoryItem) bool { return strings.ToLower(a.Supplier) < strings.ToLower(b.Supplier) }
	case SortByQuantity:
		less = func(a, b models.InventoryItem) bool { return a.Quantity < b.Quantity }
	default:
		return append(make([]models.InventoryItem, 0, len(items)), items...)
	}

	if desc {
		asc := less
		less = func(a, b models.InventoryItem) bool { return asc(b, a) }
	}
	return collection.SortBy(items, less)
}

// SidebarCounts are the badge numbers next to each tab.
type SidebarCounts struct {
	Inventory     int `json:"inventory"`
	Reorder       int `json:"reorder"`
	OrderRequests int `json:"orderRequests"`
	Backorders    int `json:"backorders"`
	Tasks         int `json:"tasks"`
	DailyOrders   int `json:"dailyOrders"`
	Customers     int `json:"customers"`
}

func Sidebar(s State) SidebarCounts {
	inStock, reorder := PartitionInventory(s.Inventory)
	return SidebarCounts{
		Inventory:     len(inStock),
		Reorder:       len(reorder),
		OrderRequests: len(s.OrderRequests),
		Backorders:    len(Backorders(s.OrderRequests, s.Inventory)),
		Tasks:         len(s.Tasks),
		DailyOrders:   len(s.DailyOrders),
		Customers:     len(s.Customers),
	}
}
