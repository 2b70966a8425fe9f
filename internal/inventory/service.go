package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stockpulse/stockpulse/internal/event"
	"github.com/stockpulse/stockpulse/internal/platform/cache"
)

const dashboardCacheKey = "stockpulse:dashboard"

// ReorderEnqueuer submits reorder-draft jobs for products that dipped
// below their reorder level. Enqueue failures are logged, never
// propagated: the event log is the source of truth, the job a
// convenience.
type ReorderEnqueuer interface {
	EnqueueReorderDraft(ctx context.Context, product Product) error
}

// Dashboard aggregates the KPI view served at /api/dashboard.
type Dashboard struct {
	TotalItems              int64         `json:"totalItems"`
	LowStockCount           int           `json:"lowStockCount"`
	PendingOrdersCount      int           `json:"pendingOrdersCount"`
	MonthlyRevenue          int64         `json:"monthlyRevenue"`
	MonthlyRevenueFormatted string        `json:"monthlyRevenueFormatted"`
	RecentActivities        []event.Event `json:"recentActivities"`
}

// ServiceConfig groups optional service dependencies.
type ServiceConfig struct {
	Reorder   ReorderEnqueuer
	ViewCache *cache.View
}

// Service validates mutation inputs, delegates to the store and reacts
// to derived events.
type Service struct {
	logger    *slog.Logger
	store     *Store
	log       *event.Log
	validate  *validator.Validate
	reorder   ReorderEnqueuer
	viewCache *cache.View
	printer   *message.Printer
	dashGroup singleflight.Group
	now       func() time.Time
}

// NewService builds a Service.
func NewService(logger *slog.Logger, store *Store, log *event.Log, cfg ServiceConfig) *Service {
	return &Service{
		logger:    logger,
		store:     store,
		log:       log,
		validate:  validator.New(),
		reorder:   cfg.Reorder,
		viewCache: cfg.ViewCache,
		printer:   message.NewPrinter(language.English),
		now:       time.Now,
	}
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return Product{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	return s.store.CreateProduct(in)
}

// UpdateProduct validates and applies a partial product update. When the
// mutation derives a LowStock event a reorder draft is enqueued
// best-effort.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (Product, error) {
	if err := s.validate.StructCtx(ctx, patch); err != nil {
		return Product{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	p, appended, err := s.store.UpdateProduct(id, patch)
	if err != nil {
		return Product{}, err
	}
	for _, ev := range appended {
		if ev.Kind != event.KindLowStock || s.reorder == nil {
			continue
		}
		if err := s.reorder.EnqueueReorderDraft(ctx, p); err != nil {
			s.logger.Warn("enqueue reorder draft",
				slog.Int64("product", p.ID), slog.Any("error", err))
		}
	}
	return p, nil
}

// PlaceOrder validates and stores a new order.
func (s *Service) PlaceOrder(ctx context.Context, in OrderInput) (Order, error) {
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return Order{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	return s.store.PlaceOrder(in)
}

// UpdateOrderStatus validates the status value and applies it.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status string) (Order, error) {
	switch OrderStatus(status) {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
	default:
		return Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.UpdateOrderStatus(id, OrderStatus(status))
}

// RecordNotice validates and appends a manual activity event.
func (s *Service) RecordNotice(ctx context.Context, in NoticeInput) (event.Event, error) {
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return event.Event{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	return s.store.RecordNotice(in)
}

// Activities returns the most recent events, newest first.
func (s *Service) Activities(limit int) []event.Event {
	return s.log.ReadLatest(limit)
}

// EventsSince serves the polling channel: all events past cursor in
// ascending order.
func (s *Service) EventsSince(cursor uint64) []event.Event {
	return s.log.ReadSince(cursor)
}

// Dashboard serves the KPI view, preferring the short-lived cache and
// collapsing concurrent recomputations through singleflight. Cache
// failures degrade to direct computation.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var cached Dashboard
	hit, err := s.viewCache.Get(ctx, dashboardCacheKey, &cached)
	if err != nil {
		s.logger.Warn("dashboard cache read", slog.Any("error", err))
	}
	if hit {
		return cached, nil
	}

	v, err, _ := s.dashGroup.Do(dashboardCacheKey, func() (any, error) {
		d := s.computeDashboard()
		if err := s.viewCache.Set(ctx, dashboardCacheKey, d); err != nil {
			s.logger.Warn("dashboard cache write", slog.Any("error", err))
		}
		return d, nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	return v.(Dashboard), nil
}

func (s *Service) computeDashboard() Dashboard {
	var total int64
	for _, p := range s.store.Products() {
		total += p.Quantity
	}
	year, month, _ := s.now().UTC().Date()
	var revenue int64
	for _, o := range s.store.Orders() {
		if o.Status == OrderStatusCancelled {
			continue
		}
		oy, om, _ := o.PlacedAt.UTC().Date()
		if oy == year && om == month {
			revenue += o.Total
		}
	}
	return Dashboard{
		TotalItems:              total,
		LowStockCount:           len(s.store.LowStockProducts()),
		PendingOrdersCount:      s.store.PendingOrdersCount(),
		MonthlyRevenue:          revenue,
		MonthlyRevenueFormatted: s.printer.Sprintf("$%.2f", float64(revenue)/100),
		RecentActivities:        s.log.ReadLatest(5),
	}
}
