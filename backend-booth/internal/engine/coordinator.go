package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/metrics"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/repository"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/prohmpiriya/booth-rush/pkg/retry"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrSkipCommit returned by a transform (alongside its result) ends the
// operation successfully without writing
var ErrSkipCommit = errors.New("no change to commit")

// Publisher receives a venue.changed event after every commit
type Publisher interface {
	Publish(ctx context.Context, event *domain.VenueEvent) error
}

// Transform mutates a private copy of a venue. now is fixed for one attempt.
// Returning an error aborts the operation without writing.
type Transform[T any] func(venue *domain.Venue, now time.Time) (T, error)

// Config contains coordinator dependencies
type Config struct {
	Store     repository.VenueStore
	Clock     domain.Clock
	Retry     *retry.Config
	Publisher Publisher
	Logger    *logger.Logger
}

// Coordinator is the only write path to venue documents. Each operation
// reads a snapshot, transforms it and commits it if the version is unchanged,
// retrying lost races with jittered backoff.
type Coordinator struct {
	store     repository.VenueStore
	clock     domain.Clock
	retrier   *retry.Retrier
	publisher Publisher
	log       *logger.Logger
}

// NewCoordinator creates a coordinator
func NewCoordinator(cfg *Config) *Coordinator {
	clock := cfg.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	retryCfg := retry.DefaultConfig()
	if cfg.Retry != nil {
		c := *cfg.Retry
		retryCfg = &c
	}
	retryCfg.RetryIf = func(err error) bool {
		return errors.Is(err, repository.ErrVersionConflict)
	}

	return &Coordinator{
		store:     cfg.Store,
		clock:     clock,
		retrier:   retry.New(retryCfg),
		publisher: cfg.Publisher,
		log:       log.Named("coordinator"),
	}
}

// Store returns the underlying venue store
func (c *Coordinator) Store() repository.VenueStore {
	return c.store
}

// Now returns the coordinator clock's current time
func (c *Coordinator) Now() time.Time {
	return c.clock.Now()
}

// Apply runs fn against the latest snapshot of venueID and commits the result.
// op names the operation in logs, spans and metrics.
func Apply[T any](ctx context.Context, c *Coordinator, op, venueID string, fn Transform[T]) (T, error) {
	var zero T
	if venueID == "" {
		return zero, domain.ErrInvalidVenueID
	}

	ctx, span := telemetry.StartSpan(ctx, "engine.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.String("operation", op),
	)

	var (
		result    T
		committed repository.Version
		snapshot  *domain.Venue
		skipped   bool
	)
	start := time.Now()

	res := c.retrier.DoWithCallback(ctx, func(ctx context.Context) error {
		venue, version, err := c.store.Get(ctx, venueID)
		if err != nil {
			return retry.Permanent(err)
		}

		now := c.clock.Now()
		out, err := fn(venue, now)
		if errors.Is(err, ErrSkipCommit) {
			result = out
			skipped = true
			return nil
		}
		if err != nil {
			return retry.Permanent(err)
		}
		venue.Touch(now)

		if err := c.store.CommitIfUnchanged(ctx, venueID, version, venue); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				metrics.RecordConflict(ctx, op)
				return err
			}
			return retry.Permanent(err)
		}

		result = out
		committed = version + 1
		snapshot = venue
		return nil
	}, func(attempt int, err error, next time.Duration) {
		c.log.Debug("venue commit conflict, retrying",
			zap.String("operation", op),
			zap.String("venue_id", venueID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
		)
	})

	span.SetAttributes(attribute.Int("attempts", res.Attempts))

	switch {
	case res.Err == nil && skipped:
		return result, nil

	case res.Err == nil:
		metrics.RecordCommit(ctx, op, res.Attempts, time.Since(start))
		c.publishChange(ctx, op, snapshot, committed)
		return result, nil

	case errors.Is(res.Err, retry.ErrMaxRetriesExceeded):
		metrics.RecordContended(ctx, op)
		c.log.Warn("venue commit retries exhausted",
			zap.String("operation", op),
			zap.String("venue_id", venueID),
			zap.Int("attempts", res.Attempts),
			zap.Duration("elapsed", res.TotalDuration),
		)
		err := fmt.Errorf("%w: gave up after %d attempts", domain.ErrContendedResource, res.Attempts)
		telemetry.SetSpanError(ctx, err)
		return zero, err

	case errors.Is(res.Err, retry.ErrContextCanceled):
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, res.Err

	case errors.Is(res.Err, context.Canceled), errors.Is(res.Err, context.DeadlineExceeded):
		return zero, res.Err

	default:
		if kind := ErrorKind(res.Err); kind != "internal" {
			metrics.RecordDomainError(ctx, op, kind)
		} else {
			c.log.Error("venue operation failed",
				zap.String("operation", op),
				zap.String("venue_id", venueID),
				zap.Error(res.Err),
			)
			telemetry.SetSpanError(ctx, res.Err)
		}
		return zero, res.Err
	}
}

// View runs fn against the latest snapshot without committing anything
func View[T any](ctx context.Context, c *Coordinator, venueID string, fn Transform[T]) (T, error) {
	var zero T
	if venueID == "" {
		return zero, domain.ErrInvalidVenueID
	}
	venue, _, err := c.store.Get(ctx, venueID)
	if err != nil {
		return zero, err
	}
	return fn(venue, c.clock.Now())
}

func (c *Coordinator) publishChange(ctx context.Context, op string, venue *domain.Venue, version repository.Version) {
	if c.publisher == nil || venue == nil {
		return
	}
	event := domain.NewVenueEvent(uuid.New().String(), domain.EventVenueChanged, venue.ID, venue.UpdatedAt, map[string]any{
		"operation": op,
		"accepting": venue.Accepting,
		"mode":      venue.Mode,
	})
	event.Version = int64(version)

	if err := c.publisher.Publish(ctx, event); err != nil {
		metrics.RecordPublishFailure(ctx, string(event.EventType))
		c.log.Warn("failed to publish venue change",
			zap.String("venue_id", venue.ID),
			zap.Int64("version", event.Version),
			zap.Error(err),
		)
	}
}

// ErrorKind classifies an error for metrics and logs
func ErrorKind(err error) string {
	switch {
	case domain.IsValidationError(err):
		return "validation"
	case domain.IsNotFoundError(err):
		return "not_found"
	case domain.IsCapacityError(err):
		return "capacity"
	case domain.IsStateError(err):
		return "state"
	case domain.IsContentionError(err):
		return "contention"
	default:
		return "internal"
	}
}
