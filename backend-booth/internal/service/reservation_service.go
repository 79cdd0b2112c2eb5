package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/engine"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/metrics"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ReservationService defines the capacity ledger operations of time-slot venues
type ReservationService interface {
	// BookSlot reserves one place in a slot for the user
	BookSlot(ctx context.Context, venueID, userID, slot string) (*domain.Reservation, error)

	// CancelReservation releases the user's reserved place in a slot
	CancelReservation(ctx context.Context, venueID, userID, slot string) (*domain.Reservation, error)

	// MarkUsed flags a reservation as redeemed at the booth
	MarkUsed(ctx context.Context, venueID, reservationID string) (*domain.Reservation, error)

	// MarkUnused reverts a redeemed reservation
	MarkUnused(ctx context.Context, venueID, reservationID string) (*domain.Reservation, error)

	// SlotAvailability returns per-slot occupancy
	SlotAvailability(ctx context.Context, venueID string) ([]domain.SlotAvailability, error)

	// UserReservations returns one user's reservations at a venue
	UserReservations(ctx context.Context, venueID, userID string) ([]*domain.Reservation, error)

	// ListReservations returns every reservation at a venue
	ListReservations(ctx context.Context, venueID string) ([]*domain.Reservation, error)
}

type reservationService struct {
	coord  *engine.Coordinator
	events *eventEmitter
}

// NewReservationService creates a new reservation service
func NewReservationService(coord *engine.Coordinator, cfg *Config) ReservationService {
	return &reservationService{
		coord:  coord,
		events: cfg.emitter("reservation"),
	}
}

func (s *reservationService) BookSlot(ctx context.Context, venueID, userID, slot string) (res *domain.Reservation, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.book")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.String("user_id", userID),
		attribute.String("slot", slot),
	)

	if err := requireID(venueID, domain.ErrInvalidVenueID); err != nil {
		return nil, err
	}
	if err := requireID(userID, domain.ErrInvalidUserID); err != nil {
		return nil, err
	}
	if err := requireID(slot, domain.ErrInvalidSlotLabel); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	res, err = engine.Apply(ctx, s.coord, "book_slot", venueID, func(v *domain.Venue, now time.Time) (*domain.Reservation, error) {
		return v.BookSlot(id, userID, slot, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordReservation(ctx, venueID, true)
	s.events.emit(ctx, domain.EventReservationBooked, venueID, userID, res.CreatedAt, res)
	return res, nil
}

func (s *reservationService) CancelReservation(ctx context.Context, venueID, userID, slot string) (res *domain.Reservation, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.cancel")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.String("user_id", userID),
		attribute.String("slot", slot),
	)

	if err := requireID(venueID, domain.ErrInvalidVenueID); err != nil {
		return nil, err
	}
	if err := requireID(userID, domain.ErrInvalidUserID); err != nil {
		return nil, err
	}
	if err := requireID(slot, domain.ErrInvalidSlotLabel); err != nil {
		return nil, err
	}

	res, err = engine.Apply(ctx, s.coord, "cancel_reservation", venueID, func(v *domain.Venue, _ time.Time) (*domain.Reservation, error) {
		return v.CancelReservation(userID, slot)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordReservation(ctx, venueID, false)
	s.events.emit(ctx, domain.EventReservationCanceled, venueID, userID, s.coord.Now(), res)
	return res, nil
}

func (s *reservationService) MarkUsed(ctx context.Context, venueID, reservationID string) (*domain.Reservation, error) {
	return s.mark(ctx, "mark_used", venueID, reservationID, domain.ReservationUsed)
}

func (s *reservationService) MarkUnused(ctx context.Context, venueID, reservationID string) (*domain.Reservation, error) {
	return s.mark(ctx, "mark_unused", venueID, reservationID, domain.ReservationReserved)
}

func (s *reservationService) mark(ctx context.Context, op, venueID, reservationID string, to domain.ReservationStatus) (res *domain.Reservation, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation."+op)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.String("reservation_id", reservationID),
	)

	if err := requireID(venueID, domain.ErrInvalidVenueID); err != nil {
		return nil, err
	}
	if err := requireID(reservationID, domain.ErrInvalidReservationID); err != nil {
		return nil, err
	}

	return engine.Apply(ctx, s.coord, op, venueID, func(v *domain.Venue, _ time.Time) (*domain.Reservation, error) {
		return v.MarkReservation(reservationID, to)
	})
}

func (s *reservationService) SlotAvailability(ctx context.Context, venueID string) ([]domain.SlotAvailability, error) {
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, _ time.Time) ([]domain.SlotAvailability, error) {
		return v.SlotAvailability(), nil
	})
}

func (s *reservationService) UserReservations(ctx context.Context, venueID, userID string) ([]*domain.Reservation, error) {
	if err := requireID(userID, domain.ErrInvalidUserID); err != nil {
		return nil, err
	}
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, _ time.Time) ([]*domain.Reservation, error) {
		return v.UserReservations(userID), nil
	})
}

func (s *reservationService) ListReservations(ctx context.Context, venueID string) ([]*domain.Reservation, error) {
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, _ time.Time) ([]*domain.Reservation, error) {
		return v.ReservationList(), nil
	})
}
