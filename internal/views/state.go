package views

import "github.com/invictusops/invictus/app/models"

// State is the latest decoded snapshot of every collection.
type State struct {
	Users         []models.User
	Inventory     []models.InventoryItem
	OrderRequests []models.OrderRequest
	Tasks         []models.Task
	DailyOrders   []models.DailyOrder
	Customers     []models.Customer
}

// User finds a user by id.
func (s State) User(id string) (models.User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// Dashboard is the landing view of an authenticated user.
type Dashboard struct {
	Counts   DashboardCounts `json:"counts"`
	MyTasks  []models.Task   `json:"myTasks"`
	Activity []Activity      `json:"activity"`
	Sidebar  SidebarCounts   `json:"sidebar"`
	User     *models.Profile `json:"user,omitempty"`
}

// Dashboard assembles the dashboard for currentUserID.
func (e *Engine) Dashboard(s State, currentUserID string) Dashboard {
	var current *models.User
	var profile *models.Profile
	if u, ok := s.User(currentUserID); ok {
		current = &u
		p := u.Profile()
		profile = &p
	}

	return Dashboard{
		Counts:   e.DashboardCounts(currentUserID, s.Inventory, s.Tasks, s.DailyOrders),
		MyTasks:  MyPendingTasks(currentUserID, s.Tasks, DashboardTaskLimit),
		Activity: BuildActivityFeed(s.Inventory, s.Tasks, s.DailyOrders, s.OrderRequests, s.Users, current),
		Sidebar:  Sidebar(s),
		User:     profile,
	}
}
