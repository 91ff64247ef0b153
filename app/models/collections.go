// Package models holds the documents stored in each collection. Field names
// in the json tags are the stored wire format.
package models

// Collection names as stored in the document store.
const (
	CollectionUsers         = "users"
	CollectionInventory     = "inventory"
	CollectionOrderRequests = "orderRequests"
	CollectionTasks         = "tasks"
	CollectionDailyOrders   = "dailyOrders"
	CollectionNotifications = "notifications"
	CollectionCustomers     = "customers"
)

// Collections lists every collection the live cache follows.
var Collections = []string{
	CollectionUsers,
	CollectionInventory,
	CollectionOrderRequests,
	CollectionTasks,
	CollectionDailyOrders,
	CollectionNotifications,
	CollectionCustomers,
}
