// Package live keeps the latest snapshot of every collection in memory and
// announces changes on the event bus. Views are computed from it.
//
// Each snapshot replaces the previous state of its collection wholesale.
// Listeners receive "snapshot.<collection>" with the docstore.Snapshot as
// payload.
package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/internal/views"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/event"
	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/metrics"
)

// Topic is the bus event fired after a collection snapshot is applied.
func Topic(collection string) string { return "snapshot." + collection }

type Cache struct {
	store  docstore.Store
	bus    *event.Bus
	engine *views.Engine

	mu        sync.RWMutex
	state     views.State
	mailboxes docstore.Snapshot
	versions  map[string]uint64

	// partition memo, keyed by inventory snapshot version
	partVersion uint64
	inStock     []models.InventoryItem
	reorder     []models.InventoryItem

	stops []func()
}

func New(store docstore.Store, bus *event.Bus, engine *views.Engine) *Cache {
	return &Cache{
		store:    store,
		bus:      bus,
		engine:   engine,
		versions: map[string]uint64{},
	}
}

// Start subscribes to every collection. The first snapshot of each arrives
// asynchronously; Ready reports when all have landed.
func (c *Cache) Start(ctx context.Context) error {
	for _, name := range models.Collections {
		stop, err := c.store.Collection(name).Subscribe(ctx, c.apply)
		if err != nil {
			c.Stop()
			return fmt.Errorf("live: subscribe %s: %w", name, err)
		}
		c.mu.Lock()
		c.stops = append(c.stops, stop)
		c.mu.Unlock()
	}
	logger.Component("live").Info("subscribed", "collections", len(models.Collections))
	return nil
}

// Stop unsubscribes from every collection.
func (c *Cache) Stop() {
	c.mu.Lock()
	stops := c.stops
	c.stops = nil
	c.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

// Ready reports whether every collection has delivered a snapshot.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, name := range models.Collections {
		if _, ok := c.versions[name]; !ok {
			return false
		}
	}
	return true
}

func (c *Cache) apply(snap docstore.Snapshot) {
	log := logger.Component("live")

	c.mu.Lock()
	if v, seen := c.versions[snap.Collection]; seen && snap.Version <= v {
		c.mu.Unlock()
		return
	}
	c.versions[snap.Collection] = snap.Version

	switch snap.Collection {
	case models.CollectionUsers:
		c.state.Users = decode[models.User](log, snap)
	case models.CollectionInventory:
		c.state.Inventory = decode[models.InventoryItem](log, snap)
	case models.CollectionOrderRequests:
		c.state.OrderRequests = decode[models.OrderRequest](log, snap)
	case models.CollectionTasks:
		c.state.Tasks = decode[models.Task](log, snap)
	case models.CollectionDailyOrders:
		c.state.DailyOrders = decode[models.DailyOrder](log, snap)
	case models.CollectionCustomers:
		c.state.Customers = decode[models.Customer](log, snap)
	case models.CollectionNotifications:
		c.mailboxes = snap
	}
	c.mu.Unlock()

	metrics.SnapshotsApplied.WithLabelValues(snap.Collection).Inc()
	if snap.Collection == models.CollectionInventory {
		_, reorder := c.Partition()
		metrics.ReorderItems.Set(float64(len(reorder)))
	}
	c.bus.Fire(Topic(snap.Collection), snap)
}

type warner interface {
	Warn(msg string, args ...any)
}

func decode[T any](log warner, snap docstore.Snapshot) []T {
	out, errs := docstore.DecodeAll[T](snap.Docs)
	for _, err := range errs {
		log.Warn("skipping malformed document", "collection", snap.Collection, "error", err)
	}
	return out
}

// State returns the current snapshot set. Slices are replaced, never
// mutated, so the result may be read without locking.
func (c *Cache) State() views.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Version returns the last applied version of collection.
func (c *Cache) Version(collection string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[collection]
}

// Partition returns the in-stock and reorder lists, recomputed only when the
// inventory snapshot changed.
func (c *Cache) Partition() (inStock, reorder []models.InventoryItem) {
	c.mu.RLock()
	v := c.versions[models.CollectionInventory]
	if c.inStock != nil && c.partVersion == v {
		inStock, reorder = c.inStock, c.reorder
		c.mu.RUnlock()
		return inStock, reorder
	}
	items := c.state.Inventory
	c.mu.RUnlock()

	inStock, reorder = views.PartitionInventory(items)

	c.mu.Lock()
	if c.versions[models.CollectionInventory] == v {
		c.partVersion, c.inStock, c.reorder = v, inStock, reorder
	}
	c.mu.Unlock()
	return inStock, reorder
}

// Mailboxes is the latest notifications snapshot.
func (c *Cache) Mailboxes() docstore.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mailboxes
}

// Dashboard builds the landing view for userID.
func (c *Cache) Dashboard(userID string) views.Dashboard {
	return c.engine.Dashboard(c.State(), userID)
}

// Engine exposes the clock used by the views.
func (c *Cache) Engine() *views.Engine { return c.engine }

// Change summarises an applied snapshot for push clients.
type Change struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
	Version    uint64 `json:"version"`
}

// Watch calls fn after every applied snapshot of any collection until the
// returned stop func is called. fn runs on the subscription goroutine and
// must not block.
func (c *Cache) Watch(fn func(Change)) (stop func()) {
	stops := make([]func(), 0, len(models.Collections))
	for _, name := range models.Collections {
		stops = append(stops, c.bus.Listen(Topic(name), func(p interface{}) {
			if snap, ok := p.(docstore.Snapshot); ok {
				fn(Change{Collection: snap.Collection, Count: len(snap.Docs), Version: snap.Version})
			}
		}))
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}
