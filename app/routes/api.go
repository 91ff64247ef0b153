package routes

import (
	"net/http"

	"github.com/invictusops/invictus/app/controllers"
	"github.com/invictusops/invictus/pkg/ctx"
	"github.com/invictusops/invictus/pkg/middleware"
	"github.com/invictusops/invictus/pkg/router"
	"github.com/invictusops/invictus/pkg/ws"
)

// Handlers is everything the API routes dispatch to.
type Handlers struct {
	Auth      middleware.Authenticator
	Session   *controllers.SessionController
	Views     *controllers.ViewController
	Inventory *controllers.InventoryController
	Tasks     *controllers.TaskController
	Orders    *controllers.OrderController
	Live      *controllers.LiveController
	Hub       *ws.Hub
	GraphQL   http.HandlerFunc
}

func RegisterAPI(r *router.Router, h Handlers) {
	w := ctx.Wrap
	api := r.Group("/api")

	// Login flow: open to anonymous sessions.
	sess := api.Group("/session")
	sess.Get("/", "session.status", w(h.Session.Status))
	sess.Get("/profiles", "session.profiles", w(h.Session.Profiles))
	sess.Post("/select", "session.select", w(h.Session.Select))
	sess.Post("/password", "session.password", w(h.Session.SubmitPassword))
	sess.Post("/setup", "session.setup", w(h.Session.CompleteSetup))
	sess.Post("/cancel", "session.cancel", w(h.Session.Cancel))

	authed := api.Group("", middleware.RequireAuth(h.Auth))
	authed.Post("/session/logout", "session.logout", w(h.Session.Logout))
	authed.Post("/session/password/change", "session.password.change", w(h.Session.ChangePassword))
	authed.Post("/session/reminder/dismiss", "session.reminder.dismiss", w(h.Session.DismissReminder))

	v := authed.Group("/views")
	v.Get("/dashboard", "views.dashboard", w(h.Views.Dashboard))
	v.Get("/inventory", "views.inventory", w(h.Views.Inventory))
	v.Get("/reorder", "views.reorder", w(h.Views.Reorder))
	v.Get("/order-requests", "views.order-requests", w(h.Views.OrderRequests))
	v.Get("/backorders", "views.backorders", w(h.Views.Backorders))
	v.Get("/tasks", "views.tasks", w(h.Views.Tasks))
	v.Get("/daily-orders", "views.daily-orders", w(h.Views.DailyOrders))
	v.Get("/customers", "views.customers", w(h.Views.Customers))
	v.Get("/sidebar", "views.sidebar", w(h.Views.Sidebar))

	inv := authed.Group("/inventory")
	inv.Post("/", "inventory.store", w(h.Inventory.Add))
	inv.Post("/import", "inventory.import", w(h.Inventory.Import))
	inv.Get("/export", "inventory.export", w(h.Inventory.Export))
	inv.Post("/export/archive", "inventory.archive", w(h.Inventory.Archive))
	inv.Put("/{id}", "inventory.update", w(h.Inventory.Update))
	inv.Post("/{id}/adjust", "inventory.adjust", w(h.Inventory.Adjust))
	inv.Post("/{id}/restock", "inventory.restock", w(h.Inventory.Restock))
	inv.Delete("/{id}", "inventory.destroy", w(h.Inventory.Delete))

	tasks := authed.Group("/tasks")
	tasks.Post("/", "tasks.store", w(h.Tasks.Create))
	tasks.Patch("/{id}/status", "tasks.status", w(h.Tasks.SetStatus))
	tasks.Delete("/{id}", "tasks.destroy", w(h.Tasks.Delete))

	reqs := authed.Group("/order-requests")
	reqs.Post("/", "order-requests.store", w(h.Orders.CreateRequest))
	reqs.Get("/export", "order-requests.export", w(h.Orders.ExportRequests))
	reqs.Delete("/{id}", "order-requests.destroy", w(h.Orders.DeleteRequest))

	daily := authed.Group("/daily-orders")
	daily.Post("/", "daily-orders.store", w(h.Orders.LogDaily))
	daily.Delete("/{id}", "daily-orders.destroy", w(h.Orders.DeleteDaily))

	cust := authed.Group("/customers")
	cust.Post("/", "customers.store", w(h.Orders.CreateCustomer))
	cust.Delete("/{id}", "customers.destroy", w(h.Orders.DeleteCustomer))

	authed.Get("/live", "live.stream", w(h.Live.Stream))
	authed.Get("/ws", "live.ws", h.Hub.Serve)

	if h.GraphQL != nil {
		r.Group("/", middleware.RequireAuth(h.Auth)).Post("/graphql", "graphql", h.GraphQL)
	}
}
