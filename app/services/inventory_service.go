package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/internal/csvio"
	"github.com/invictusops/invictus/internal/views"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/metrics"
	"github.com/invictusops/invictus/pkg/storage"
)

const (
	// MinStockQuantity is the smallest quantity accepted when adding an item
	// straight to stock. Anything lower belongs on the reorder list.
	MinStockQuantity = views.ReorderThreshold
	// DefaultRestock is used when a restock names no amount.
	DefaultRestock = 10
)

// Export partitions.
const (
	PartitionAll     = "all"
	PartitionStock   = "stock"
	PartitionReorder = "reorder"
)

// AddItemInput is the add-item form. Reorder adds the item with zero
// quantity straight onto the reorder list.
type AddItemInput struct {
	Name     string `json:"name"     validate:"required,max=120"`
	Type     string `json:"type"     validate:"required,max=80"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Supplier string `json:"supplier" validate:"nullable,max=120"`
	Reorder  bool   `json:"reorder"`
}

// UpdateItemInput replaces the editable fields of an item.
type UpdateItemInput struct {
	Name     string `json:"name"     validate:"required,max=120"`
	Type     string `json:"type"     validate:"required,max=80"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Supplier string `json:"supplier" validate:"nullable,max=120"`
}

// ImportResult reports a CSV import.
type ImportResult struct {
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Skipped []csvio.RowError `json:"skipped,omitempty"`
}

// Imported is the number of rows written.
func (r ImportResult) Imported() int { return r.Created + r.Updated }

type InventoryService struct {
	items docstore.Collection
	now   func() time.Time
}

func NewInventoryService(store docstore.Store, now func() time.Time) *InventoryService {
	if now == nil {
		now = time.Now
	}
	return &InventoryService{items: store.Collection(models.CollectionInventory), now: now}
}

func (s *InventoryService) List(ctx context.Context) ([]models.InventoryItem, error) {
	docs, err := s.items.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	items, errs := docstore.DecodeAll[models.InventoryItem](docs)
	for _, e := range errs {
		logger.WithCtx(ctx).Warn("inventory: skipping malformed document", "error", e)
	}
	return items, nil
}

// Add creates an item managed by actorID.
func (s *InventoryService) Add(ctx context.Context, actorID string, in AddItemInput) (models.InventoryItem, error) {
	defer metrics.ObserveStoreOp(models.CollectionInventory, "add", time.Now())

	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "The name field is required."
	}
	if strings.TrimSpace(in.Type) == "" {
		fields["type"] = "The type field is required."
	}
	if in.Reorder {
		in.Quantity = 0
	} else if in.Quantity < MinStockQuantity {
		fields["quantity"] = fmt.Sprintf("Quantity must be at least %d for stock. Add it from the reorder list instead.", MinStockQuantity)
	}
	if err := collect(fields); err != nil {
		return models.InventoryItem{}, err
	}

	item := models.InventoryItem{
		Name:      strings.TrimSpace(in.Name),
		Type:      strings.TrimSpace(in.Type),
		Quantity:  in.Quantity,
		ManagedBy: actorID,
		Supplier:  strings.TrimSpace(in.Supplier),
		CreatedAt: s.now().UTC(),
	}
	return s.insert(ctx, item)
}

func (s *InventoryService) insert(ctx context.Context, item models.InventoryItem) (models.InventoryItem, error) {
	f, err := docstore.Encode(item)
	if err != nil {
		return models.InventoryItem{}, err
	}
	id, err := s.items.Add(ctx, f)
	if err != nil {
		return models.InventoryItem{}, fmt.Errorf("inventory: add: %w", err)
	}
	item.ID = id
	return item, nil
}

// Update overwrites name, type, quantity and supplier. Concurrent edits are
// last writer wins.
func (s *InventoryService) Update(ctx context.Context, id string, in UpdateItemInput) error {
	defer metrics.ObserveStoreOp(models.CollectionInventory, "update", time.Now())

	if in.Quantity < 0 {
		return invalid("quantity", "Quantity cannot be negative.")
	}
	err := s.items.Update(ctx, id, docstore.Fields{
		"name":     strings.TrimSpace(in.Name),
		"type":     strings.TrimSpace(in.Type),
		"quantity": in.Quantity,
		"supplier": strings.TrimSpace(in.Supplier),
	})
	if err != nil {
		return fmt.Errorf("inventory: update %s: %w", id, err)
	}
	return nil
}

// Adjust moves the quantity one step up or down. At zero a decrement is a
// no-op.
func (s *InventoryService) Adjust(ctx context.Context, id string, delta int) (int64, error) {
	if delta != 1 && delta != -1 {
		return 0, invalid("delta", "Delta must be 1 or -1.")
	}
	return s.increment(ctx, id, int64(delta))
}

// Restock adds amount to the item atomically, so concurrent restocks are
// never lost.
func (s *InventoryService) Restock(ctx context.Context, id string, amount int) (int64, error) {
	if amount <= 0 {
		return 0, invalid("amount", "Restock amount must be greater than zero.")
	}
	return s.increment(ctx, id, int64(amount))
}

func (s *InventoryService) increment(ctx context.Context, id string, delta int64) (int64, error) {
	defer metrics.ObserveStoreOp(models.CollectionInventory, "increment", time.Now())

	q, err := s.items.Increment(ctx, id, "quantity", delta)
	if err != nil {
		return 0, fmt.Errorf("inventory: increment %s: %w", id, err)
	}
	return q, nil
}

func (s *InventoryService) Delete(ctx context.Context, id string) error {
	if err := s.items.Delete(ctx, id); err != nil {
		return fmt.Errorf("inventory: delete %s: %w", id, err)
	}
	return nil
}

// Import merges a CSV file into inventory. Rows whose (name, type) matches
// an existing item add to its quantity; the rest become new items managed
// by actorID.
func (s *InventoryService) Import(ctx context.Context, actorID string, r io.Reader) (ImportResult, error) {
	log := logger.WithCtx(ctx)

	rows, skipped, err := csvio.Parse(r)
	for _, sk := range skipped {
		log.Warn("inventory import: row skipped", "line", sk.Line, "reason", sk.Reason)
	}
	if err != nil {
		// A bad header or a file with no usable rows is a user error.
		return ImportResult{Skipped: skipped}, invalid("file", err.Error())
	}

	existing, err := s.List(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	byKey := make(map[string]string, len(existing))
	for _, it := range existing {
		k := csvio.MergeKey(it.Name, it.Type)
		if _, dup := byKey[k]; !dup {
			byKey[k] = it.ID
		}
	}

	res := ImportResult{Skipped: skipped}
	for _, row := range rows {
		if id, ok := byKey[row.Key()]; ok {
			if _, err := s.increment(ctx, id, int64(row.Quantity)); err == nil {
				res.Updated++
				continue
			} else if !errors.Is(err, docstore.ErrNotFound) {
				return res, err
			}
			// Deleted since the listing; fall through and recreate.
		}
		item, err := s.insert(ctx, models.InventoryItem{
			Name:      row.Name,
			Type:      row.Type,
			Quantity:  row.Quantity,
			ManagedBy: actorID,
			Supplier:  row.Supplier,
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return res, err
		}
		byKey[row.Key()] = item.ID
		res.Created++
	}

	log.Info("inventory import finished", "created", res.Created, "updated", res.Updated, "skipped", len(res.Skipped))
	return res, nil
}

// Export writes the chosen partition as CSV.
func (s *InventoryService) Export(ctx context.Context, w io.Writer, partition string) error {
	items, err := s.List(ctx)
	if err != nil {
		return err
	}
	inStock, reorder := views.PartitionInventory(items)
	switch partition {
	case "", PartitionAll:
	case PartitionStock:
		items = inStock
	case PartitionReorder:
		items = reorder
	default:
		return invalid("partition", "Partition must be one of all, stock, reorder.")
	}
	return csvio.WriteInventory(w, items, true)
}

// Archive writes an export to disk under exports/ and returns its path and
// public URL.
func (s *InventoryService) Archive(ctx context.Context, disk storage.Disk, partition string) (path, url string, err error) {
	var buf bytes.Buffer
	if err := s.Export(ctx, &buf, partition); err != nil {
		return "", "", err
	}
	if partition == "" {
		partition = PartitionAll
	}
	path = fmt.Sprintf("exports/inventory-%s-%s.csv", partition, s.now().UTC().Format("20060102T150405Z"))
	if err := disk.Put(ctx, path, buf.Bytes()); err != nil {
		return "", "", fmt.Errorf("inventory: archive: %w", err)
	}
	return path, disk.URL(path), nil
}
