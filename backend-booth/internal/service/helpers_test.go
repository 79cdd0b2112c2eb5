package service

import (
	"context"
	"testing"
	"time"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/engine"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/repository"
	"github.com/prohmpiriya/booth-rush/pkg/retry"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event *domain.VenueEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	return nil
}

func (m *MockEventPublisher) eventsOfType(t domain.EventType) []*domain.VenueEvent {
	var out []*domain.VenueEvent
	for _, c := range m.Calls {
		if e := c.Arguments.Get(1).(*domain.VenueEvent); e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store        *repository.MemoryVenueStore
	clock        *domain.ManualClock
	publisher    *MockEventPublisher
	coord        *engine.Coordinator
	venues       VenueService
	reservations ReservationService
	queue        QueueService
	orders       OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     repository.NewMemoryVenueStore(),
		clock:     domain.NewManualClock(t0),
		publisher: &MockEventPublisher{},
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	f.coord = engine.NewCoordinator(&engine.Config{
		Store:     f.store,
		Clock:     f.clock,
		Publisher: f.publisher,
		Retry: &retry.Config{
			MaxRetries:      1000,
			InitialInterval: 50 * time.Microsecond,
			MaxInterval:     2 * time.Millisecond,
			Multiplier:      2,
			JitterFactor:    0.5,
		},
	})

	cfg := &Config{Publisher: f.publisher, BulkParallelism: 4}
	f.venues = NewVenueService(f.coord, cfg)
	f.reservations = NewReservationService(f.coord, cfg)
	f.queue = NewQueueService(f.coord, cfg)
	f.orders = NewOrderService(f.coord, cfg)
	return f
}

func (f *fixture) venue(t *testing.T, in CreateVenueInput) *domain.Venue {
	t.Helper()
	if in.Accepting == "" {
		in.Accepting = domain.AcceptingOpen
	}
	v, err := f.venues.CreateVenue(context.Background(), in)
	require.NoError(t, err)
	return v
}

func (f *fixture) snapshot(t *testing.T, venueID string) *domain.Venue {
	t.Helper()
	v, _, err := f.store.Get(context.Background(), venueID)
	require.NoError(t, err)
	return v
}
