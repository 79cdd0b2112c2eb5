package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/engine"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/metrics"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/repository"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CreateVenueInput describes a new venue. An empty ID is generated.
type CreateVenueInput struct {
	ID              string
	Name            string
	Mode            domain.Mode
	CapacityPerSlot int
	TimeSlots       []string
	Accepting       domain.AcceptingState
}

// BulkResult is the outcome of a bulk operation for one venue
type BulkResult struct {
	VenueID  string `json:"venue_id"`
	Affected int    `json:"affected"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// VenueService defines venue administration
type VenueService interface {
	CreateVenue(ctx context.Context, in CreateVenueInput) (*domain.Venue, error)
	GetVenue(ctx context.Context, venueID string) (*domain.Venue, error)
	ListVenues(ctx context.Context) ([]*domain.Venue, error)
	DeleteVenue(ctx context.Context, venueID string) error

	// UpdateSettings applies a partial settings change
	UpdateSettings(ctx context.Context, venueID string, settings domain.Settings) (*domain.Venue, error)
	SetAccepting(ctx context.Context, venueID string, state domain.AcceptingState) (*domain.Venue, error)

	// Catalog
	UpsertMenuItem(ctx context.Context, venueID string, item domain.MenuItem) (*domain.MenuItem, bool, error)
	CorrectStock(ctx context.Context, venueID, itemID string, stock int) (*domain.MenuItem, error)
	RemoveMenuItem(ctx context.Context, venueID, itemID string) error
	Menu(ctx context.Context, venueID string) ([]*domain.MenuItem, error)

	// ResetReservations drops every reservation and slot counter
	ResetReservations(ctx context.Context, venueID string) (int, error)
	// ResetQueue cancels every active ticket; numbering continues
	ResetQueue(ctx context.Context, venueID string) (int, error)

	// Bulk operations run per venue; the error joins every venue failure
	SetAcceptingAll(ctx context.Context, state domain.AcceptingState) ([]BulkResult, error)
	ResetAllReservations(ctx context.Context) ([]BulkResult, error)
	ResetAllQueues(ctx context.Context) ([]BulkResult, error)

	// Subscribe streams committed changes of one venue until ctx is done
	Subscribe(ctx context.Context, venueID string) (<-chan repository.VenueChange, error)
}

type venueService struct {
	coord       *engine.Coordinator
	store       repository.VenueStore
	log         *logger.Logger
	historyCap  int
	parallelism int
}

// NewVenueService creates a new venue service
func NewVenueService(coord *engine.Coordinator, cfg *Config) VenueService {
	log := logger.Nop()
	if cfg != nil && cfg.Logger != nil {
		log = cfg.Logger
	}
	return &venueService{
		coord:       coord,
		store:       coord.Store(),
		log:         log.Named("venue"),
		historyCap:  cfg.historySize(),
		parallelism: cfg.bulkParallelism(),
	}
}

func (s *venueService) CreateVenue(ctx context.Context, in CreateVenueInput) (v *domain.Venue, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.venue.create")
	defer func() { endSpan(span, err) }()

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.New().String()
	}
	span.SetAttributes(attribute.String("venue_id", id))

	v, err = domain.NewVenue(id, in.Name, in.Mode, in.CapacityPerSlot, in.TimeSlots, s.coord.Now())
	if err != nil {
		return nil, err
	}
	if in.Accepting != "" {
		if err := v.SetAccepting(in.Accepting); err != nil {
			return nil, err
		}
	}

	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}
	s.log.Info("venue created",
		zap.String("venue_id", v.ID),
		zap.String("mode", string(v.Mode)),
	)
	return v, nil
}

func (s *venueService) GetVenue(ctx context.Context, venueID string) (*domain.Venue, error) {
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, _ time.Time) (*domain.Venue, error) {
		return v, nil
	})
}

func (s *venueService) ListVenues(ctx context.Context) ([]*domain.Venue, error) {
	return s.store.List(ctx)
}

func (s *venueService) DeleteVenue(ctx context.Context, venueID string) error {
	if err := requireID(venueID, domain.ErrInvalidVenueID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, venueID); err != nil {
		return err
	}
	s.log.Info("venue deleted", zap.String("venue_id", venueID))
	return nil
}

func (s *venueService) UpdateSettings(ctx context.Context, venueID string, settings domain.Settings) (*domain.Venue, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return engine.Apply(ctx, s.coord, "update_settings", venueID, func(v *domain.Venue, _ time.Time) (*domain.Venue, error) {
		if err := v.ApplySettings(settings); err != nil {
			return nil, err
		}
		return v, nil
	})
}

func (s *venueService) SetAccepting(ctx context.Context, venueID string, state domain.AcceptingState) (*domain.Venue, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAcceptingState, state)
	}
	return engine.Apply(ctx, s.coord, "set_accepting", venueID, func(v *domain.Venue, _ time.Time) (*domain.Venue, error) {
		if v.Accepting == state {
			return v, engine.ErrSkipCommit
		}
		if err := v.SetAccepting(state); err != nil {
			return nil, err
		}
		return v, nil
	})
}

type upsertResult struct {
	item    *domain.MenuItem
	created bool
}

func (s *venueService) UpsertMenuItem(ctx context.Context, venueID string, item domain.MenuItem) (*domain.MenuItem, bool, error) {
	if strings.TrimSpace(item.ID) == "" {
		item.ID = uuid.New().String()
	}
	if err := item.Validate(); err != nil {
		return nil, false, err
	}

	res, err := engine.Apply(ctx, s.coord, "upsert_menu_item", venueID, func(v *domain.Venue, _ time.Time) (upsertResult, error) {
		it, created, err := v.UpsertMenuItem(item)
		return upsertResult{item: it, created: created}, err
	})
	if err != nil {
		return nil, false, err
	}
	return res.item, res.created, nil
}

func (s *venueService) CorrectStock(ctx context.Context, venueID, itemID string, stock int) (*domain.MenuItem, error) {
	if err := requireID(itemID, domain.ErrInvalidMenuItemID); err != nil {
		return nil, err
	}
	if stock < 0 {
		return nil, domain.ErrInvalidStock
	}
	item, err := engine.Apply(ctx, s.coord, "correct_stock", venueID, func(v *domain.Venue, _ time.Time) (*domain.MenuItem, error) {
		return v.CorrectStock(itemID, stock)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("stock corrected",
		zap.String("venue_id", venueID),
		zap.String("item_id", itemID),
		zap.Int("stock", stock),
	)
	return item, nil
}

func (s *venueService) RemoveMenuItem(ctx context.Context, venueID, itemID string) error {
	if err := requireID(itemID, domain.ErrInvalidMenuItemID); err != nil {
		return err
	}
	_, err := engine.Apply(ctx, s.coord, "remove_menu_item", venueID, func(v *domain.Venue, _ time.Time) (struct{}, error) {
		return struct{}{}, v.RemoveMenuItem(itemID)
	})
	return err
}

func (s *venueService) Menu(ctx context.Context, venueID string) ([]*domain.MenuItem, error) {
	return engine.View(ctx, s.coord, venueID, func(v *domain.Venue, _ time.Time) ([]*domain.MenuItem, error) {
		return v.Menu(), nil
	})
}

func (s *venueService) ResetReservations(ctx context.Context, venueID string) (int, error) {
	return engine.Apply(ctx, s.coord, "reset_reservations", venueID, func(v *domain.Venue, _ time.Time) (int, error) {
		return v.ResetReservations(), nil
	})
}

func (s *venueService) ResetQueue(ctx context.Context, venueID string) (int, error) {
	return engine.Apply(ctx, s.coord, "reset_queue", venueID, func(v *domain.Venue, now time.Time) (int, error) {
		return v.ResetQueue(now, s.historyCap), nil
	})
}

func (s *venueService) SetAcceptingAll(ctx context.Context, state domain.AcceptingState) ([]BulkResult, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAcceptingState, state)
	}
	return s.forEachVenue(ctx, "set_accepting_all", func(ctx context.Context, venueID string) (int, error) {
		if _, err := s.SetAccepting(ctx, venueID, state); err != nil {
			return 0, err
		}
		return 1, nil
	})
}

func (s *venueService) ResetAllReservations(ctx context.Context) ([]BulkResult, error) {
	return s.forEachVenue(ctx, "reset_all_reservations", s.ResetReservations)
}

func (s *venueService) ResetAllQueues(ctx context.Context) ([]BulkResult, error) {
	return s.forEachVenue(ctx, "reset_all_queues", s.ResetQueue)
}

// forEachVenue runs fn for every venue with bounded parallelism. One venue
// failing does not stop the others.
func (s *venueService) forEachVenue(ctx context.Context, op string, fn func(ctx context.Context, venueID string) (int, error)) ([]BulkResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.venue."+op)
	defer span.End()

	venues, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("venues", len(venues)))

	results := make([]BulkResult, len(venues))
	var (
		mu   sync.Mutex
		errs error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, v := range venues {
		g.Go(func() error {
			n, err := fn(gctx, v.ID)
			results[i] = BulkResult{VenueID: v.ID, Affected: n}
			if err != nil {
				results[i].Err = err
				results[i].Error = err.Error()
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("venue %s: %w", v.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		failed := len(multierr.Errors(errs))
		s.log.Warn("bulk operation finished with failures",
			zap.String("operation", op),
			zap.Int("venues", len(venues)),
			zap.Int("failed", failed),
		)
		telemetry.SetSpanError(ctx, errs)
	}
	return results, errs
}

func (s *venueService) Subscribe(ctx context.Context, venueID string) (<-chan repository.VenueChange, error) {
	if _, _, err := s.store.Get(ctx, venueID); err != nil {
		return nil, err
	}
	ch, err := s.store.Subscribe(ctx, venueID)
	if err != nil {
		return nil, err
	}
	metrics.RecordFeedSubscription(ctx, 1)
	go func() {
		<-ctx.Done()
		metrics.RecordFeedSubscription(context.Background(), -1)
	}()
	return ch, nil
}
