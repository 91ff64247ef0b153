package views_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/internal/views"
)

var base = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func item(id string, qty int) models.InventoryItem {
	return models.InventoryItem{ID: id, Name: "item-" + id, Type: "Parts", Quantity: qty}
}

func TestPartitionInventory_DisjointAndExhaustive(t *testing.T) {
	items := []models.InventoryItem{item("a", 0), item("b", 3), item("c", 2), item("d", 15), item("e", 1)}

	inStock, reorder := views.PartitionInventory(items)

	assert.Len(t, append(inStock, reorder...), len(items))
	for _, it := range reorder {
		assert.Less(t, it.Quantity, views.ReorderThreshold)
	}
	for _, it := range inStock {
		assert.GreaterOrEqual(t, it.Quantity, views.ReorderThreshold)
	}

	ids := func(xs []models.InventoryItem) []string {
		out := []string{}
		for _, x := range xs {
			out = append(out, x.ID)
		}
		return out
	}
	assert.Equal(t, []string{"b", "d"}, ids(inStock))
	assert.Equal(t, []string{"a", "c", "e"}, ids(reorder))
}

func TestPartitionInventory_Empty(t *testing.T) {
	inStock, reorder := views.PartitionInventory(nil)
	assert.Empty(t, inStock)
	assert.Empty(t, reorder)
}

func TestIsFulfillable(t *testing.T) {
	inventory := []models.InventoryItem{{Name: "X", Quantity: 2}, {Name: "Bolt", Quantity: 10}}

	cases := []struct {
		name  string
		lines []models.LineItem
		want  bool
	}{
		{"exact quantity", []models.LineItem{{Name: "x", Quantity: 2}}, true},
		{"too many", []models.LineItem{{Name: "x", Quantity: 3}}, false},
		{"unknown item", []models.LineItem{{Name: "nut", Quantity: 1}}, false},
		{"all lines must match", []models.LineItem{{Name: "BOLT", Quantity: 5}, {Name: "x", Quantity: 5}}, false},
		{"several lines", []models.LineItem{{Name: "BOLT", Quantity: 5}, {Name: "X", Quantity: 1}}, true},
		{"no lines", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, views.IsFulfillable(tc.lines, inventory))
		})
	}
}

func TestBackorders_NonStructuredDetailsAreBackordered(t *testing.T) {
	inventory := []models.InventoryItem{{Name: "Widget", Quantity: 5}}
	requests := []models.OrderRequest{
		{ID: "ok", OrderDetails: models.LineItems(models.LineItem{Name: "widget", Quantity: 5})},
		{ID: "short", OrderDetails: models.LineItems(models.LineItem{Name: "widget", Quantity: 6})},
		{ID: "text", OrderDetails: models.FreeText("two widgets please")},
	}

	got := views.Backorders(requests, inventory)
	require.Len(t, got, 2)
	assert.Equal(t, "short", got[0].ID)
	assert.Equal(t, "text", got[1].ID)
}

func TestDashboardCounts(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	engine := views.NewEngine(func() time.Time { return now }, time.UTC)

	inventory := []models.InventoryItem{item("a", 1), item("b", 2), item("c", 9)}
	tasks := []models.Task{
		{AssignedTo: "u1", Status: models.TaskToDo},
		{AssignedTo: "u1", Status: models.TaskInProgress},
		{AssignedTo: "u1", Status: models.TaskCompleted},
		{AssignedTo: "u2", Status: models.TaskToDo},
	}
	daily := []models.DailyOrder{{DateSent: "2024-03-10"}, {DateSent: "2024-03-09"}, {DateSent: "2024-03-10"}}

	got := engine.DashboardCounts("u1", inventory, tasks, daily)
	assert.Equal(t, views.DashboardCounts{ReorderCount: 2, PendingTasks: 2, TodaysOrders: 2}, got)
}

func TestEngineToday_UsesLocation(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	plus2 := time.FixedZone("plus2", 2*3600)

	assert.Equal(t, "2024-03-11", views.NewEngine(func() time.Time { return now }, plus2).Today())
	assert.Equal(t, "2024-03-10", views.NewEngine(func() time.Time { return now }, time.UTC).Today())
}

func TestBuildActivityFeed_OrderedNewestFirst(t *testing.T) {
	users := []models.User{{ID: "u1", Name: "Mohammad"}, {ID: "u2", Name: "Osama"}}
	inventory := []models.InventoryItem{{Name: "Mouse", ManagedBy: "u1", CreatedAt: base}}
	tasks := []models.Task{{Description: "count", CreatedBy: "u1", AssignedTo: "u2", Status: models.TaskToDo, CreatedAt: base.Add(time.Minute)}}
	daily := []models.DailyOrder{{CustomerName: "ACME", LoggedBy: "u2", CreatedAt: base.Add(2 * time.Minute)}}

	feed := views.BuildActivityFeed(inventory, tasks, daily, nil, users, &users[0])

	require.Len(t, feed, 3)
	assert.Equal(t, views.ActivityOrderLog, feed[0].Type)
	assert.Equal(t, views.ActivityTaskAdd, feed[1].Type)
	assert.Equal(t, views.ActivityInventoryAdd, feed[2].Type)

	assert.Equal(t, `logged an order for "ACME".`, feed[0].Text)
	assert.Equal(t, "Osama", feed[0].Actor.Name)
	assert.Equal(t, "Mohammad", feed[1].Actor.Name)
	assert.Equal(t, "Osama", feed[1].Target.Name)
	assert.Equal(t, `added "Mouse" to stock.`, feed[2].Text)
}

func TestBuildActivityFeed_TruncatesToLimit(t *testing.T) {
	var inventory []models.InventoryItem
	for i := 0; i < 25; i++ {
		inventory = append(inventory, models.InventoryItem{Name: fmt.Sprintf("n%d", i), CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	feed := views.BuildActivityFeed(inventory, nil, nil, nil, nil, nil)

	require.Len(t, feed, views.FeedLimit)
	assert.Equal(t, `added "n24" to stock.`, feed[0].Text)
	assert.Equal(t, `added "n15" to stock.`, feed[9].Text)
}

func TestBuildActivityFeed_CompletionUsesCompletedAt(t *testing.T) {
	done := base.Add(time.Hour)
	tasks := []models.Task{
		{Description: "ship", AssignedTo: "u2", CreatedBy: "u2", Status: models.TaskCompleted, DueDate: "2030-01-01", CompletedAt: &done, CreatedAt: base},
		{Description: "legacy", AssignedTo: "u2", CreatedBy: "u2", Status: models.TaskCompleted, CreatedAt: base.Add(-time.Hour)},
	}

	feed := views.BuildActivityFeed(nil, tasks, nil, nil, nil, nil)

	require.Len(t, feed, 3)
	assert.Equal(t, views.ActivityTaskComplete, feed[0].Type)
	assert.Equal(t, done, feed[0].Timestamp)
	assert.Equal(t, `completed task: "ship"`, feed[0].Text)
	for _, a := range feed[1:] {
		assert.Equal(t, views.ActivityTaskAdd, a.Type)
	}
}

func TestBuildActivityFeed_OrderLogFallsBackToCurrentUser(t *testing.T) {
	me := models.User{ID: "me", Name: "Shadi"}
	daily := []models.DailyOrder{{CustomerName: "Bob", CreatedAt: base}}

	feed := views.BuildActivityFeed(nil, nil, daily, nil, []models.User{me}, &me)

	require.Len(t, feed, 1)
	require.NotNil(t, feed[0].Actor)
	assert.Equal(t, "Shadi", feed[0].Actor.Name)
}

func TestMyPendingTasks_Limit(t *testing.T) {
	var tasks []models.Task
	for i := 0; i < 8; i++ {
		tasks = append(tasks, models.Task{ID: fmt.Sprint(i), AssignedTo: "u1", Status: models.TaskToDo})
	}
	tasks = append([]models.Task{{ID: "done", AssignedTo: "u1", Status: models.TaskCompleted}}, tasks...)

	got := views.MyPendingTasks("u1", tasks, views.DashboardTaskLimit)
	require.Len(t, got, 5)
	assert.Equal(t, "0", got[0].ID)
}

func TestFilterAndSortInventory(t *testing.T) {
	items := []models.InventoryItem{
		{Name: "Keyboard", Type: "Electronics", Supplier: "OfficeGoods", Quantity: 2},
		{Name: "mouse", Type: "Electronics", Supplier: "TechSupply", Quantity: 15},
		{Name: "Chair", Type: "Furniture", Supplier: "OfficeGoods", Quantity: 4},
	}

	assert.Len(t, views.FilterInventory(items, "officegoods"), 2)
	assert.Len(t, views.FilterInventory(items, "ELECTR"), 2)
	assert.Len(t, views.FilterInventory(items, ""), 3)

	byName := views.SortInventory(items, views.SortByName, false)
	assert.Equal(t, "Chair", byName[0].Name)
	assert.Equal(t, "mouse", byName[2].Name)

	byQty := views.SortInventory(items, views.SortByQuantity, true)
	assert.Equal(t, 15, byQty[0].Quantity)
	assert.Equal(t, 2, byQty[2].Quantity)

	assert.Equal(t, items, views.SortInventory(items, "colour", false))
}

func TestDashboard_Composes(t *testing.T) {
	engine := views.NewEngine(func() time.Time { return base }, time.UTC)
	state := views.State{
		Users:     []models.User{{ID: "u1", Name: "Anas"}},
		Inventory: []models.InventoryItem{{Name: "Mouse", Quantity: 1, ManagedBy: "u1", CreatedAt: base}},
		Tasks:     []models.Task{{ID: "t", AssignedTo: "u1", CreatedBy: "u1", Status: models.TaskToDo, CreatedAt: base}},
	}

	d := engine.Dashboard(state, "u1")
	assert.Equal(t, 1, d.Counts.ReorderCount)
	assert.Equal(t, 1, d.Counts.PendingTasks)
	assert.Len(t, d.MyTasks, 1)
	assert.Len(t, d.Activity, 2)
	assert.Equal(t, 1, d.Sidebar.Reorder)
	require.NotNil(t, d.User)
	assert.Equal(t, "Anas", d.User.Name)
}
