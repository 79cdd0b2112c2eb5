package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/pkg/database"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

//go:embed scripts/postgres_schema.sql
var postgresSchema string

// PostgresChangeChannel is the LISTEN/NOTIFY channel for venue changes
const PostgresChangeChannel = "venue_changes"

// pgUniqueViolation is the SQLSTATE for duplicate keys
const pgUniqueViolation = "23505"

// PostgresVenueStore keeps venue documents in a jsonb column guarded by a
// version number. Deleted venues stay behind as tombstone rows so a recreated
// id continues its version sequence. Change notifications travel over
// LISTEN/NOTIFY.
type PostgresVenueStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger

	feed       *changeHub
	feedOnce   sync.Once
	feedCtx    context.Context
	feedCancel context.CancelFunc
}

// NewPostgresVenueStore creates a new PostgresVenueStore
func NewPostgresVenueStore(pool *pgxpool.Pool, log *logger.Logger) *PostgresVenueStore {
	if log == nil {
		log = logger.Get()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PostgresVenueStore{
		pool:       pool,
		log:        log.Named("postgres-venue-store"),
		feed:       newChangeHub(),
		feedCtx:    ctx,
		feedCancel: cancel,
	}
}

// EnsureSchema creates the venues table if missing
func (s *PostgresVenueStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create venue schema: %w", err)
	}
	return nil
}

// Close stops the change listener
func (s *PostgresVenueStore) Close() {
	s.feedCancel()
}

// Get reads the document and its version
func (s *PostgresVenueStore) Get(ctx context.Context, venueID string) (*domain.Venue, Version, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.venue.get")
	defer span.End()
	span.SetAttributes(attribute.String("venue_id", venueID))

	var (
		doc     []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, `SELECT doc, version FROM venues WHERE id = $1 AND NOT deleted`, venueID).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, domain.ErrVenueNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("failed to get venue: %w", err)
	}

	venue, err := decodeVenue(doc)
	if err != nil {
		return nil, 0, err
	}
	return venue, Version(version), nil
}

// CommitIfUnchanged updates the row only at the expected version and
// notifies listeners in the same transaction
func (s *PostgresVenueStore) CommitIfUnchanged(ctx context.Context, venueID string, version Version, venue *domain.Venue) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.venue.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.Int64("version", int64(version)),
	)

	doc, err := json.Marshal(venue)
	if err != nil {
		return fmt.Errorf("failed to encode venue: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var next int64
	err = tx.QueryRow(ctx, `
		UPDATE venues
		SET doc = $3, name = $4, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2 AND NOT deleted
		RETURNING version
	`, venueID, int64(version), doc, venue.Name).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM venues WHERE id = $1 AND NOT deleted)`, venueID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check venue: %w", err)
		}
		if !exists {
			return domain.ErrVenueNotFound
		}
		return ErrVersionConflict
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit venue: %w", err)
	}

	if err := notify(ctx, tx, venueID, ChangeUpdated, Version(next)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Create inserts a new venue at version 1, or revives a tombstone row one
// version past it
func (s *PostgresVenueStore) Create(ctx context.Context, venue *domain.Venue) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.venue.create")
	defer span.End()
	span.SetAttributes(attribute.String("venue_id", venue.ID))

	doc, err := json.Marshal(venue)
	if err != nil {
		return fmt.Errorf("failed to encode venue: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var version int64
	err = tx.QueryRow(ctx, `
		INSERT INTO venues (id, name, doc, version, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, 1, FALSE, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, doc = EXCLUDED.doc, version = venues.version + 1,
		    deleted = FALSE, created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at
		WHERE venues.deleted
		RETURNING version
	`, venue.ID, venue.Name, doc, venue.CreatedAt).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrVenueAlreadyExists
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrVenueAlreadyExists
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create venue: %w", err)
	}

	if err := notify(ctx, tx, venue.ID, ChangeCreated, Version(version)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete turns the venue row into a tombstone one version past its last
// commit
func (s *PostgresVenueStore) Delete(ctx context.Context, venueID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.venue.delete")
	defer span.End()
	span.SetAttributes(attribute.String("venue_id", venueID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var version int64
	err = tx.QueryRow(ctx, `
		UPDATE venues
		SET deleted = TRUE, doc = '{}'::jsonb, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND NOT deleted
		RETURNING version
	`, venueID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrVenueNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete venue: %w", err)
	}

	if err := notify(ctx, tx, venueID, ChangeDeleted, Version(version)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// List returns every venue ordered by name
func (s *PostgresVenueStore) List(ctx context.Context) ([]*domain.Venue, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.venue.list")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT doc FROM venues WHERE NOT deleted ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	defer rows.Close()

	var out []*domain.Venue
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venue, err := decodeVenue(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, venue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate venues: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(out)))
	return out, nil
}

// pgChange is the NOTIFY payload. The document itself is re-read because
// payloads are capped at 8000 bytes.
type pgChange struct {
	VenueID string     `json:"venue_id"`
	Kind    ChangeKind `json:"kind"`
	Version Version    `json:"version"`
}

func notify(ctx context.Context, tx pgx.Tx, venueID string, kind ChangeKind, version Version) error {
	payload, err := json.Marshal(pgChange{VenueID: venueID, Kind: kind, Version: version})
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, PostgresChangeChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify venue change: %w", err)
	}
	return nil
}

// Subscribe streams changes of one venue. One shared LISTEN connection
// serves all subscribers.
func (s *PostgresVenueStore) Subscribe(ctx context.Context, venueID string) (<-chan VenueChange, error) {
	s.feedOnce.Do(func() { go s.listen() })
	return s.feed.subscribe(ctx, venueID), nil
}

func (s *PostgresVenueStore) listen() {
	backoff := 500 * time.Millisecond
	for {
		notes, err := database.Listen(s.feedCtx, s.pool, PostgresChangeChannel)
		if err != nil {
			s.log.Warn("Venue change listener unavailable", zap.Error(err))
		} else {
			backoff = 500 * time.Millisecond
			for n := range notes {
				s.dispatch(n.Payload)
			}
		}

		select {
		case <-s.feedCtx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func (s *PostgresVenueStore) dispatch(payload string) {
	var pc pgChange
	if err := json.Unmarshal([]byte(payload), &pc); err != nil {
		s.log.Debug("Ignoring malformed venue notification", zap.String("payload", payload))
		return
	}
	if !s.feed.watching(pc.VenueID) {
		return
	}

	change := VenueChange{VenueID: pc.VenueID, Kind: pc.Kind, Version: pc.Version}
	if pc.Kind != ChangeDeleted {
		ctx, cancel := context.WithTimeout(s.feedCtx, 5*time.Second)
		venue, version, err := s.Get(ctx, pc.VenueID)
		cancel()
		if err != nil {
			s.log.Debug("Failed to load changed venue", zap.String("venue_id", pc.VenueID), zap.Error(err))
			return
		}
		change.Venue = venue
		change.Version = version
	}
	s.feed.publish(change)
}
