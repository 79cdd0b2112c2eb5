package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/engine"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/metrics"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// TicketPosition is a user's own ticket and the number of waiting tickets ahead of it
type TicketPosition struct {
	Ticket *domain.QueueTicket `json:"ticket"`
	Ahead  int                 `json:"ahead"`
}

// QueueService defines the queue ticketing operations of queue venues
type QueueService interface {
	// JoinQueue issues the next ticket to the user
	JoinQueue(ctx context.Context, venueID, userID string, partySize int) (*domain.QueueTicket, error)

	// CallTicket moves a waiting ticket to ready
	CallTicket(ctx context.Context, venueID string, number int) (*domain.QueueTicket, error)

	// CallNext calls the lowest-numbered waiting ticket
	CallNext(ctx context.Context, venueID string) (*domain.QueueTicket, error)

	// ResolveTicket completes or cancels an active ticket
	ResolveTicket(ctx context.Context, venueID string, number int, outcome domain.TicketStatus) (*domain.QueueTicket, error)

	// QueueBoard lists active tickets in display order
	QueueBoard(ctx context.Context, venueID string) ([]*domain.QueueTicket, error)

	// TicketPosition returns the user's ticket and how many are ahead
	TicketPosition(ctx context.Context, venueID, userID string) (*TicketPosition, error)

	// TicketHistory returns recently resolved tickets, oldest first
	TicketHistory(ctx context.Context, venueID string) ([]*domain.QueueTicket, error)
}

type queueService struct {
	coord      *engine.Coordinator
	events     *eventEmitter
	historyCap int
}

// NewQueueService creates a new queue service
func NewQueueService(coord *engine.Coordinator, cfg *Config) QueueService {
	return &queueService{
		coord:      coord,
		events:     cfg.emitter("queue"),
		historyCap: cfg.historySize(),
	}
}

func (s *queueService) JoinQueue(ctx context.Context, venueID, userID string, partySize int) (t *domain.QueueTicket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.join")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.String("user_id", userID),
		attribute.Int("party_size", partySize),
	)

	if err := requireID(venueID, domain.ErrInvalidVenueID); err != nil {
		return nil, err
	}
	if err := requireID(userID, domain.ErrInvalidUserID); err != nil {
		return nil, err
	}
	if err := domain.ValidatePartySize(partySize); err != nil {
		return nil, err
	}

	t, err = engine.Apply(ctx, s.coord, "join_queue", venueID, func(v *domain.Venue, now time.Time) (*domain.QueueTicket, error) {
		return v.JoinQueue(userID, partySize, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTicketIssued(ctx, venueID)
	s.events.emit(ctx, domain.EventQueueJoined, venueID, userID, t.CreatedAt, t)
	return t, nil
}

func (s *queueService) CallTicket(ctx context.Context, venueID string, number int) (t *domain.QueueTicket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.call")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.Int("number", number),
	)

	if number <= 0 {
		return nil, domain.ErrInvalidTicketNumber
	}

	var changed bool
	t, err = engine.Apply(ctx, s.coord, "call_ticket", venueID, func(v *domain.Venue, now time.Time) (*domain.QueueTicket, error) {
		ticket, ok, err := v.CallTicket(number, now)
		changed = ok
		if err == nil && !ok {
			return ticket, engine.ErrSkipCommit
		}
		return ticket, err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.events.emit(ctx, domain.EventQueueCalled, venueID, t.UserID, *t.CalledAt, t)
	}
	return t, nil
}

func (s *queueService) CallNext(ctx context.Context, venueID string) (t *domain.QueueTicket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.call_next")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("venue_id", venueID))

	t, err = engine.Apply(ctx, s.coord, "call_next", venueID, func(v *domain.Venue, now time.Time) (*domain.QueueTicket, error) {
		return v.CallNext(now)
	})
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, domain.EventQueueCalled, venueID, t.UserID, *t.CalledAt, t)
	return t, nil
}

func (s *queueService) ResolveTicket(ctx context.Context, venueID string, number int, outcome domain.TicketStatus) (t *domain.QueueTicket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.resolve")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.Int("number", number),
		attribute.String("outcome", string(outcome)),
	)

	if number <= 0 {
		return nil, domain.ErrInvalidTicketNumber
	}
	if !outcome.Resolved() {
		return nil, fmt.Errorf("%w: got %q", domain.ErrInvalidOutcome, outcome)
	}

	t, err = engine.Apply(ctx, s.coord, "resolve_ticket", venueID, func(v *domain.Venue, now time.Time) (*domain.QueueTicket, error) {
		return v.ResolveTicket(number, outcome, now, s.historyCap)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTicketResolved(ctx, venueID, string(outcome))
	s.events.emit(ctx, domain.EventQueueResolved, venueID, t.UserID, *t.ResolvedAt, t)
	return t, nil
}

func (s *queueService) QueueBoard(ctx context.Context, venueID string) ([]*domain.QueueTicket, error) {
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, _ time.Time) ([]*domain.QueueTicket, error) {
		return v.QueueBoard(), nil
	})
}

func (s *queueService) TicketPosition(ctx context.Context, venueID, userID string) (*TicketPosition, error) {
	if err := requireID(userID, domain.ErrInvalidUserID); err != nil {
		return nil, err
	}
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, _ time.Time) (*TicketPosition, error) {
		t, ahead, err := v.TicketPosition(userID)
		if err != nil {
			return nil, err
		}
		return &TicketPosition{Ticket: t, Ahead: ahead}, nil
	})
}

func (s *queueService) TicketHistory(ctx context.Context, venueID string) ([]*domain.QueueTicket, error) {
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, _ time.Time) ([]*domain.QueueTicket, error) {
		return v.TicketHistory, nil
	})
}
