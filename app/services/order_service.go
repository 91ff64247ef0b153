package services

import (
	"context"
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
)

// records is the list/add/delete plumbing shared by the append-only
// collections.
type records[T any] struct {
	col docstore.Collection
}

func (r records[T]) list(ctx context.Context) ([]T, error) {
	docs, err := r.col.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", r.col.Name(), err)
	}
	out, errs := docstore.DecodeAll[T](docs)
	for _, e := range errs {
		logger.WithCtx(ctx).Warn("skipping malformed document", "collection", r.col.Name(), "error", e)
	}
	return out, nil
}

func (r records[T]) add(ctx context.Context, v T) (string, error) {
	defer metrics.ObserveStoreOp(r.col.Name(), "add", time.Now())

	f, err := docstore.Encode(v)
	if err != nil {
		return "", err
	}
	id, err := r.col.Add(ctx, f)
	if err != nil {
		return "", fmt.Errorf("%s: add: %w", r.col.Name(), err)
	}
	return id, nil
}

func (r records[T]) remove(ctx context.Context, id string) error {
	if err := r.col.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: delete %s: %w", r.col.Name(), id, err)
	}
	return nil
}

// ─── Order requests ──────────────────────────────────────────────────────────

type OrderRequestInput struct {
	CustomerName string              `json:"customerName" validate:"required,max=120"`
	OrderDetails models.OrderDetails `json:"orderDetails"`
	Notes        string              `json:"notes"        validate:"nullable,max=2000"`
}

type OrderRequestService struct {
	records[models.OrderRequest]
	now func() time.Time
}

func NewOrderRequestService(store docstore.Store, now func() time.Time) *OrderRequestService {
	if now == nil {
		now = time.Now
	}
	return &OrderRequestService{records: records[models.OrderRequest]{col: store.Collection(models.CollectionOrderRequests)}, now: now}
}

func (s *OrderRequestService) List(ctx context.Context) ([]models.OrderRequest, error) {
	return s.list(ctx)
}

func (s *OrderRequestService) Create(ctx context.Context, actorID string, in OrderRequestInput) (models.OrderRequest, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.CustomerName) == "" {
		fields["customerName"] = "The customerName field is required."
	}
	if err := in.OrderDetails.Validate(); err != nil {
		fields["orderDetails"] = err.Error()
	}
	if err := collect(fields); err != nil {
		return models.OrderRequest{}, err
	}

	req := models.OrderRequest{
		CustomerName: strings.TrimSpace(in.CustomerName),
		OrderDetails: in.OrderDetails,
		RequestedBy:  actorID,
		Notes:        strings.TrimSpace(in.Notes),
		CreatedAt:    s.now().UTC(),
	}
	id, err := s.add(ctx, req)
	if err != nil {
		return models.OrderRequest{}, err
	}
	req.ID = id
	return req, nil
}

func (s *OrderRequestService) Delete(ctx context.Context, id string) error {
	return s.remove(ctx, id)
}

// Export writes every request as CSV, resolving requester ids to names.
func (s *OrderRequestService) Export(ctx context.Context, w io.Writer, users []models.User) error {
	reqs, err := s.List(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return csvio.WriteOrderRequests(w, reqs, func(id string) string { return names[id] })
}

// ─── Daily orders ────────────────────────────────────────────────────────────

type DailyOrderInput struct {
	CustomerName string              `json:"customerName" validate:"required,max=120"`
	OrderDetails models.OrderDetails `json:"orderDetails"`
	DateSent     string              `json:"dateSent"`
}

type DailyOrderService struct {
	records[models.DailyOrder]
	engine *views.Engine
}

func NewDailyOrderService(store docstore.Store, engine *views.Engine) *DailyOrderService {
	return &DailyOrderService{records: records[models.DailyOrder]{col: store.Collection(models.CollectionDailyOrders)}, engine: engine}
}

func (s *DailyOrderService) List(ctx context.Context) ([]models.DailyOrder, error) {
	return s.list(ctx)
}

// Log appends an entry. DateSent defaults to today.
func (s *DailyOrderService) Log(ctx context.Context, actorID string, in DailyOrderInput) (models.DailyOrder, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.CustomerName) == "" {
		fields["customerName"] = "The customerName field is required."
	}
	if err := in.OrderDetails.Validate(); err != nil {
		fields["orderDetails"] = err.Error()
	}
	if in.DateSent == "" {
		in.DateSent = s.engine.Today()
	} else if _, err := time.Parse(views.DateLayout, in.DateSent); err != nil {
		fields["dateSent"] = "The dateSent must be a date in YYYY-MM-DD form."
	}
	if err := collect(fields); err != nil {
		return models.DailyOrder{}, err
	}

	o := models.DailyOrder{
		CustomerName: strings.TrimSpace(in.CustomerName),
		OrderDetails: in.OrderDetails,
		DateSent:     in.DateSent,
		LoggedBy:     actorID,
		CreatedAt:    s.engine.Now().UTC(),
	}
	id, err := s.add(ctx, o)
	if err != nil {
		return models.DailyOrder{}, err
	}
	o.ID = id
	return o, nil
}

func (s *DailyOrderService) Delete(ctx context.Context, id string) error {
	return s.remove(ctx, id)
}

// ─── Customers ───────────────────────────────────────────────────────────────

type CustomerInput struct {
	Name           string `json:"name"           validate:"required,max=120"`
	PhoneNumber    string `json:"phoneNumber"    validate:"nullable,max=40"`
	GoogleMapsLink string `json:"googleMapsLink" validate:"nullable,url"`
}

type CustomerService struct {
	records[models.Customer]
	now func() time.Time
}

func NewCustomerService(store docstore.Store, now func() time.Time) *CustomerService {
	if now == nil {
		now = time.Now
	}
	return &CustomerService{records: records[models.Customer]{col: store.Collection(models.CollectionCustomers)}, now: now}
}

func (s *CustomerService) List(ctx context.Context) ([]models.Customer, error) {
	return s.list(ctx)
}

func (s *CustomerService) Create(ctx context.Context, in CustomerInput) (models.Customer, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Customer{}, invalid("name", "The name field is required.")
	}
	c := models.Customer{
		Name:           strings.TrimSpace(in.Name),
		PhoneNumber:    strings.TrimSpace(in.PhoneNumber),
		GoogleMapsLink: strings.TrimSpace(in.GoogleMapsLink),
		CreatedAt:      s.now().UTC(),
	}
	id, err := s.add(ctx, c)
	if err != nil {
		return models.Customer{}, err
	}
	c.ID = id
	return c, nil
}

func (s *CustomerService) Delete(ctx context.Context, id string) error {
	return s.remove(ctx, id)
}
