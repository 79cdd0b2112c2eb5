package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/engine"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/metrics"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// OrderService defines the order fulfillment operations
type OrderService interface {
	// PlaceOrder reserves stock for every line and creates an order
	PlaceOrder(ctx context.Context, venueID, userID string, lines map[string]int) (*domain.Order, error)

	// AdvanceOrder moves an order to paying or completed
	AdvanceOrder(ctx context.Context, venueID, orderID string, to domain.OrderStatus) (*domain.Order, error)

	// CancelOrder cancels an active order and restores its stock
	CancelOrder(ctx context.Context, venueID, orderID string, forced bool) (*domain.Order, error)

	// GetOrder returns one order with its overdue flag
	GetOrder(ctx context.Context, venueID, orderID string) (*domain.OrderView, error)

	// ActiveOrders lists ordered and paying orders
	ActiveOrders(ctx context.Context, venueID string) ([]domain.OrderView, error)

	// OverdueOrders lists active orders older than the expiry window
	OverdueOrders(ctx context.Context, venueID string) ([]domain.OrderView, error)

	// UserOrders lists one user's orders
	UserOrders(ctx context.Context, venueID, userID string) ([]domain.OrderView, error)
}

type orderService struct {
	coord  *engine.Coordinator
	events *eventEmitter
	expiry time.Duration
}

// NewOrderService creates a new order service
func NewOrderService(coord *engine.Coordinator, cfg *Config) OrderService {
	return &orderService{
		coord:  coord,
		events: cfg.emitter("order"),
		expiry: cfg.orderExpiry(),
	}
}

func (s *orderService) PlaceOrder(ctx context.Context, venueID, userID string, lines map[string]int) (o *domain.Order, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.order.place")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.String("user_id", userID),
		attribute.Int("lines", len(lines)),
	)

	if err := requireID(venueID, domain.ErrInvalidVenueID); err != nil {
		return nil, err
	}
	if err := requireID(userID, domain.ErrInvalidUserID); err != nil {
		return nil, err
	}
	if err := domain.ValidateOrderLines(lines); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	o, err = engine.Apply(ctx, s.coord, "place_order", venueID, func(v *domain.Venue, now time.Time) (*domain.Order, error) {
		return v.PlaceOrder(id, userID, lines, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOrderPlaced(ctx, venueID)
	s.events.emit(ctx, domain.EventOrderPlaced, venueID, userID, o.CreatedAt, o)
	return o, nil
}

func (s *orderService) AdvanceOrder(ctx context.Context, venueID, orderID string, to domain.OrderStatus) (o *domain.Order, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.order.advance")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.String("order_id", orderID),
		attribute.String("to", string(to)),
	)

	if err := requireID(orderID, domain.ErrInvalidOrderID); err != nil {
		return nil, err
	}
	if to != domain.OrderPaying && to != domain.OrderCompleted {
		return nil, fmt.Errorf("%w: got %q", domain.ErrInvalidOrderTarget, to)
	}

	o, err = engine.Apply(ctx, s.coord, "advance_order", venueID, func(v *domain.Venue, now time.Time) (*domain.Order, error) {
		return v.AdvanceOrder(orderID, to, now)
	})
	if err != nil {
		return nil, err
	}

	if o.Status == domain.OrderCompleted {
		metrics.RecordOrderResolved(ctx, venueID, string(o.Status))
	}
	s.events.emit(ctx, domain.EventOrderAdvanced, venueID, o.UserID, s.coord.Now(), o)
	return o, nil
}

func (s *orderService) CancelOrder(ctx context.Context, venueID, orderID string, forced bool) (o *domain.Order, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.order.cancel")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.String("order_id", orderID),
		attribute.Bool("forced", forced),
	)

	if err := requireID(orderID, domain.ErrInvalidOrderID); err != nil {
		return nil, err
	}

	o, err = engine.Apply(ctx, s.coord, "cancel_order", venueID, func(v *domain.Venue, now time.Time) (*domain.Order, error) {
		return v.CancelOrder(orderID, forced, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOrderResolved(ctx, venueID, string(o.Status))
	s.events.emit(ctx, domain.EventOrderCancelled, venueID, o.UserID, *o.ResolvedAt, o)
	return o, nil
}

func (s *orderService) GetOrder(ctx context.Context, venueID, orderID string) (*domain.OrderView, error) {
	if err := requireID(orderID, domain.ErrInvalidOrderID); err != nil {
		return nil, err
	}
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, now time.Time) (*domain.OrderView, error) {
		o, ok := v.Orders[orderID]
		if !ok {
			return nil, domain.ErrOrderNotFound
		}
		return &domain.OrderView{Order: o, Overdue: o.IsOverdue(now, s.expiry)}, nil
	})
}

func (s *orderService) ActiveOrders(ctx context.Context, venueID string) ([]domain.OrderView, error) {
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, now time.Time) ([]domain.OrderView, error) {
		return v.ActiveOrders(now, s.expiry), nil
	})
}

func (s *orderService) OverdueOrders(ctx context.Context, venueID string) ([]domain.OrderView, error) {
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, now time.Time) ([]domain.OrderView, error) {
		return v.OverdueOrders(now, s.expiry), nil
	})
}

func (s *orderService) UserOrders(ctx context.Context, venueID, userID string) ([]domain.OrderView, error) {
	if err := requireID(userID, domain.ErrInvalidUserID); err != nil {
		return nil, err
	}
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, now time.Time) ([]domain.OrderView, error) {
		return v.UserOrders(userID, now, s.expiry), nil
	})
}
