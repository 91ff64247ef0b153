package controllers

import (
	"bytes"

	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/pkg/ctx"
)

// OrderController covers order requests, the daily order log and customers.
type OrderController struct {
	requests  *services.OrderRequestService
	daily     *services.DailyOrderService
	customers *services.CustomerService
	users     *services.UserService
}

func NewOrderController(requests *services.OrderRequestService, daily *services.DailyOrderService, customers *services.CustomerService, users *services.UserService) *OrderController {
	return &OrderController{requests: requests, daily: daily, customers: customers, users: users}
}

func (oc *OrderController) CreateRequest(c *ctx.Context) {
	var in services.OrderRequestInput
	if !c.BindJSON(&in) {
		return
	}
	req, err := oc.requests.Create(c.Context(), c.UserID(), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Created(req)
}

func (oc *OrderController) DeleteRequest(c *ctx.Context) {
	if err := oc.requests.Delete(c.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.NoContent()
}

// ExportRequests downloads every order request as CSV.
func (oc *OrderController) ExportRequests(c *ctx.Context) {
	users, err := oc.users.List(c.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := oc.requests.Export(c.Context(), &buf, users); err != nil {
		Fail(c, err)
		return
	}
	c.Attachment("order-requests.csv", "text/csv; charset=utf-8")
	c.W.Write(buf.Bytes()) //nolint:errcheck
}

func (oc *OrderController) LogDaily(c *ctx.Context) {
	var in services.DailyOrderInput
	if !c.BindJSON(&in) {
		return
	}
	o, err := oc.daily.Log(c.Context(), c.UserID(), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Created(o)
}

func (oc *OrderController) DeleteDaily(c *ctx.Context) {
	if err := oc.daily.Delete(c.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.NoContent()
}

func (oc *OrderController) CreateCustomer(c *ctx.Context) {
	var in services.CustomerInput
	if !c.BindJSON(&in) {
		return
	}
	cust, err := oc.customers.Create(c.Context(), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Created(cust)
}

func (oc *OrderController) DeleteCustomer(c *ctx.Context) {
	if err := oc.customers.Delete(c.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.NoContent()
}
