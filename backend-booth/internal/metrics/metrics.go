package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Commit path
	CommitsTotal     *telemetry.Counter
	ConflictsTotal   *telemetry.Counter
	ContendedTotal   *telemetry.Counter
	CommitAttempts   *telemetry.Histogram
	OperationLatency *telemetry.Histogram

	// Domain counters
	ReservationsBooked   *telemetry.Counter
	ReservationsCanceled *telemetry.Counter
	TicketsIssued        *telemetry.Counter
	TicketsResolved      *telemetry.Counter
	OrdersPlaced         *telemetry.Counter
	OrdersResolved       *telemetry.Counter

	// Errors
	DomainErrorsTotal *telemetry.Counter
	PublishFailures   *telemetry.Counter
	FeedSubscribers   *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init registers all booth metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	counters := []struct {
		dst  **telemetry.Counter
		opts telemetry.MetricOpts
	}{
		{&CommitsTotal, telemetry.MetricOpts{Name: "booth_commits_total", Description: "Venue commits applied", Unit: "1"}},
		{&ConflictsTotal, telemetry.MetricOpts{Name: "booth_commit_conflicts_total", Description: "Venue commits rejected by a version conflict", Unit: "1"}},
		{&ContendedTotal, telemetry.MetricOpts{Name: "booth_contended_total", Description: "Operations that gave up after retry exhaustion", Unit: "1"}},
		{&ReservationsBooked, telemetry.MetricOpts{Name: "booth_reservations_booked_total", Description: "Slot reservations created", Unit: "1"}},
		{&ReservationsCanceled, telemetry.MetricOpts{Name: "booth_reservations_canceled_total", Description: "Slot reservations canceled", Unit: "1"}},
		{&TicketsIssued, telemetry.MetricOpts{Name: "booth_tickets_issued_total", Description: "Queue tickets issued", Unit: "1"}},
		{&TicketsResolved, telemetry.MetricOpts{Name: "booth_tickets_resolved_total", Description: "Queue tickets resolved", Unit: "1"}},
		{&OrdersPlaced, telemetry.MetricOpts{Name: "booth_orders_placed_total", Description: "Orders placed", Unit: "1"}},
		{&OrdersResolved, telemetry.MetricOpts{Name: "booth_orders_resolved_total", Description: "Orders completed or cancelled", Unit: "1"}},
		{&DomainErrorsTotal, telemetry.MetricOpts{Name: "booth_domain_errors_total", Description: "Operations rejected by a domain rule", Unit: "1"}},
		{&PublishFailures, telemetry.MetricOpts{Name: "booth_publish_failures_total", Description: "Events that could not be published", Unit: "1"}},
	}
	for _, c := range counters {
		v, err := telemetry.NewCounter(c.opts)
		if err != nil {
			return err
		}
		*c.dst = v
	}

	var err error
	CommitAttempts, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "booth_commit_attempts",
		Description: "Attempts needed per committed operation",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	OperationLatency, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "booth_operation_duration_seconds",
		Description: "Latency of a venue operation including retries",
		Unit:        "s",
	})
	if err != nil {
		return err
	}

	FeedSubscribers, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "booth_feed_subscribers",
		Description: "Open change feed subscriptions",
		Unit:        "1",
	})
	return err
}

// RecordCommit records a successful commit and how long it took
func RecordCommit(ctx context.Context, op string, attempts int, elapsed time.Duration) {
	attrs := attribute.String("operation", op)
	CommitsTotal.Inc(ctx, attrs)
	CommitAttempts.Record(ctx, float64(attempts), attrs)
	OperationLatency.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordConflict records a lost compare-and-swap race
func RecordConflict(ctx context.Context, op string) {
	ConflictsTotal.Inc(ctx, attribute.String("operation", op))
}

// RecordContended records an operation that exhausted its retries
func RecordContended(ctx context.Context, op string) {
	ContendedTotal.Inc(ctx, attribute.String("operation", op))
}

// RecordDomainError records a rejected operation by error kind
func RecordDomainError(ctx context.Context, op, kind string) {
	DomainErrorsTotal.Inc(ctx,
		attribute.String("operation", op),
		attribute.String("kind", kind),
	)
}

// RecordReservation records a booked or canceled reservation
func RecordReservation(ctx context.Context, venueID string, booked bool) {
	attrs := attribute.String("venue_id", venueID)
	if booked {
		ReservationsBooked.Inc(ctx, attrs)
		return
	}
	ReservationsCanceled.Inc(ctx, attrs)
}

// RecordTicketIssued records a queue join
func RecordTicketIssued(ctx context.Context, venueID string) {
	TicketsIssued.Inc(ctx, attribute.String("venue_id", venueID))
}

// RecordTicketResolved records a ticket leaving the active queue
func RecordTicketResolved(ctx context.Context, venueID, outcome string) {
	TicketsResolved.Inc(ctx,
		attribute.String("venue_id", venueID),
		attribute.String("outcome", outcome),
	)
}

// RecordOrderPlaced records a new order
func RecordOrderPlaced(ctx context.Context, venueID string) {
	OrdersPlaced.Inc(ctx, attribute.String("venue_id", venueID))
}

// RecordOrderResolved records an order reaching a terminal state
func RecordOrderResolved(ctx context.Context, venueID, status string) {
	OrdersResolved.Inc(ctx,
		attribute.String("venue_id", venueID),
		attribute.String("status", status),
	)
}

// RecordPublishFailure records an event that was dropped
func RecordPublishFailure(ctx context.Context, eventType string) {
	PublishFailures.Inc(ctx, attribute.String("event_type", eventType))
}

// RecordFeedSubscription tracks open change feed streams
func RecordFeedSubscription(ctx context.Context, delta int64) {
	FeedSubscribers.Add(ctx, delta)
}
