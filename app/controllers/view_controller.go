package controllers

import (
	"net/http"

	"github.com/invictusops/invictus/internal/live"
	"github.com/invictusops/invictus/internal/views"
	"github.com/invictusops/invictus/pkg/ctx"
)

// ViewController answers the tab views from the live cache. No handler
// touches the store.
type ViewController struct {
	cache *live.Cache
}

func NewViewController(cache *live.Cache) *ViewController {
	return &ViewController{cache: cache}
}

// ready writes 503 until every collection has delivered its first snapshot.
func (vc *ViewController) ready(c *ctx.Context) bool {
	if vc.cache.Ready() {
		return true
	}
	c.SetHeader("Retry-After", "1")
	c.Error(http.StatusServiceUnavailable, "Loading data, try again shortly")
	return false
}

func (vc *ViewController) Dashboard(c *ctx.Context) {
	if vc.ready(c) {
		c.Success(vc.cache.Dashboard(c.UserID()))
	}
}

// Inventory lists in-stock items, filtered by ?search= and ordered by
// ?sort=name|type|supplier|quantity&dir=asc|desc.
func (vc *ViewController) Inventory(c *ctx.Context) {
	if !vc.ready(c) {
		return
	}
	inStock, _ := vc.cache.Partition()
	items := views.FilterInventory(inStock, c.Query("search"))
	items = views.SortInventory(items, views.SortKey(c.Query("sort")), c.Query("dir") == "desc")
	c.Success(items)
}

func (vc *ViewController) Reorder(c *ctx.Context) {
	if vc.ready(c) {
		_, reorder := vc.cache.Partition()
		c.Success(reorder)
	}
}

func (vc *ViewController) OrderRequests(c *ctx.Context) {
	if vc.ready(c) {
		s := vc.cache.State()
		c.Success(views.OrderRequests(s.OrderRequests, s.Inventory))
	}
}

func (vc *ViewController) Backorders(c *ctx.Context) {
	if vc.ready(c) {
		s := vc.cache.State()
		c.Success(views.Backorders(s.OrderRequests, s.Inventory))
	}
}

func (vc *ViewController) Tasks(c *ctx.Context) {
	if vc.ready(c) {
		c.Success(nonNil(vc.cache.State().Tasks))
	}
}

func (vc *ViewController) DailyOrders(c *ctx.Context) {
	if vc.ready(c) {
		c.Success(nonNil(vc.cache.State().DailyOrders))
	}
}

func (vc *ViewController) Customers(c *ctx.Context) {
	if vc.ready(c) {
		c.Success(nonNil(vc.cache.State().Customers))
	}
}

func (vc *ViewController) Sidebar(c *ctx.Context) {
	if vc.ready(c) {
		c.Success(views.Sidebar(vc.cache.State()))
	}
}

// nonNil keeps empty lists encoding as [] rather than being dropped.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
