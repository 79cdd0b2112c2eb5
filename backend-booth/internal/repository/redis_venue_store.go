package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	pkgredis "github.com/prohmpiriya/booth-rush/pkg/redis"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed scripts/commit_venue.lua
var commitVenueScript string

//go:embed scripts/create_venue.lua
var createVenueScript string

//go:embed scripts/delete_venue.lua
var deleteVenueScript string

// Script names for caching
const (
	scriptCommitVenue = "commit_venue"
	scriptCreateVenue = "create_venue"
	scriptDeleteVenue = "delete_venue"
)

const redisVenueIndexKey = "venues:index"

func redisVenueKey(venueID string) string {
	return fmt.Sprintf("venue:%s", venueID)
}

func redisChangeChannel(venueID string) string {
	return fmt.Sprintf("venue:changes:%s", venueID)
}

// RedisVenueStore keeps each venue as a JSON document plus version in a hash.
// Writes go through Lua scripts so the version check, the write and the
// change notification happen atomically.
type RedisVenueStore struct {
	client *pkgredis.Client
}

// NewRedisVenueStore creates a new RedisVenueStore
func NewRedisVenueStore(client *pkgredis.Client) *RedisVenueStore {
	return &RedisVenueStore{client: client}
}

// LoadScripts loads all venue Lua scripts into Redis
func (s *RedisVenueStore) LoadScripts(ctx context.Context) error {
	scripts := map[string]string{
		scriptCommitVenue: commitVenueScript,
		scriptCreateVenue: createVenueScript,
		scriptDeleteVenue: deleteVenueScript,
	}

	for name, script := range scripts {
		if _, err := s.client.LoadScript(ctx, name, script); err != nil {
			return fmt.Errorf("failed to load script %s: %w", name, err)
		}
	}
	return nil
}

// Get reads the document and its version
func (s *RedisVenueStore) Get(ctx context.Context, venueID string) (*domain.Venue, Version, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.venue.get")
	defer span.End()
	span.SetAttributes(attribute.String("venue_id", venueID))

	vals, err := s.client.Client().HMGet(ctx, redisVenueKey(venueID), "doc", "version").Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("failed to read venue %s: %w", venueID, err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, 0, domain.ErrVenueNotFound
	}

	doc, _ := vals[0].(string)
	ver, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("venue %s has malformed version: %w", venueID, err)
	}

	venue, err := decodeVenue([]byte(doc))
	if err != nil {
		return nil, 0, err
	}
	return venue, Version(ver), nil
}

// CommitIfUnchanged runs the compare-and-swap script
func (s *RedisVenueStore) CommitIfUnchanged(ctx context.Context, venueID string, version Version, venue *domain.Venue) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.venue.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.Int64("version", int64(version)),
	)

	doc, err := json.Marshal(venue)
	if err != nil {
		return fmt.Errorf("failed to encode venue: %w", err)
	}

	keys := []string{redisVenueKey(venueID)}
	args := []interface{}{
		int64(version),              // ARGV[1]: expected version
		string(doc),                 // ARGV[2]: document
		redisChangeChannel(venueID), // ARGV[3]: change channel
	}

	_, err = s.runScript(ctx, scriptCommitVenue, commitVenueScript, keys, args...)
	if err != nil && !errors.Is(err, ErrVersionConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Create stores a new venue at version 1, or one past a deleted venue's
// tombstone
func (s *RedisVenueStore) Create(ctx context.Context, venue *domain.Venue) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.venue.create")
	defer span.End()
	span.SetAttributes(attribute.String("venue_id", venue.ID))

	doc, err := json.Marshal(venue)
	if err != nil {
		return fmt.Errorf("failed to encode venue: %w", err)
	}

	keys := []string{redisVenueKey(venue.ID), redisVenueIndexKey}
	_, err = s.runScript(ctx, scriptCreateVenue, createVenueScript, keys,
		string(doc), venue.ID, redisChangeChannel(venue.ID))
	return err
}

// Delete removes the venue document and index entry, leaving the version
// behind as a tombstone
func (s *RedisVenueStore) Delete(ctx context.Context, venueID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.venue.delete")
	defer span.End()
	span.SetAttributes(attribute.String("venue_id", venueID))

	keys := []string{redisVenueKey(venueID), redisVenueIndexKey}
	_, err := s.runScript(ctx, scriptDeleteVenue, deleteVenueScript, keys,
		venueID, redisChangeChannel(venueID))
	return err
}

// List reads every indexed venue in one pipeline
func (s *RedisVenueStore) List(ctx context.Context) ([]*domain.Venue, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.venue.list")
	defer span.End()

	rdb := s.client.Client()
	ids, err := rdb.SMembers(ctx, redisVenueIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read venue index: %w", err)
	}

	pipe := rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, redisVenueKey(id), "doc")
	}
	if _, err := pipe.Exec(ctx); err != nil && !pkgredis.IsNil(err) {
		return nil, fmt.Errorf("failed to read venues: %w", err)
	}

	out := make([]*domain.Venue, 0, len(ids))
	for _, cmd := range cmds {
		doc, err := cmd.Result()
		if pkgredis.IsNil(err) {
			// deleted between SMEMBERS and HGET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read venue: %w", err)
		}
		venue, err := decodeVenue([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, venue)
	}

	sortVenues(out)
	span.SetAttributes(attribute.Int("count", len(out)))
	return out, nil
}

// redisChange is the message published by the scripts
type redisChange struct {
	Kind    ChangeKind      `json:"kind"`
	Version Version         `json:"version"`
	Venue   json.RawMessage `json:"venue,omitempty"`
}

// Subscribe listens on the venue's pub/sub channel
func (s *RedisVenueStore) Subscribe(ctx context.Context, venueID string) (<-chan VenueChange, error) {
	pubsub := s.client.Subscribe(ctx, redisChangeChannel(venueID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to venue %s: %w", venueID, err)
	}

	out := make(chan VenueChange, feedBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				change, err := parseRedisChange(venueID, msg.Payload)
				if err != nil {
					continue
				}
				deliverLatest(out, change)
			}
		}
	}()

	return out, nil
}

func parseRedisChange(venueID, payload string) (VenueChange, error) {
	var rc redisChange
	if err := json.Unmarshal([]byte(payload), &rc); err != nil {
		return VenueChange{}, fmt.Errorf("malformed change message: %w", err)
	}
	change := VenueChange{VenueID: venueID, Kind: rc.Kind, Version: rc.Version}
	if len(rc.Venue) > 0 {
		venue, err := decodeVenue(rc.Venue)
		if err != nil {
			return VenueChange{}, err
		}
		change.Venue = venue
	}
	return change, nil
}

func (s *RedisVenueStore) runScript(ctx context.Context, name, script string, keys []string, args ...interface{}) (int64, error) {
	result := s.client.EvalWithFallback(ctx, name, script, keys, args...)
	if result.Err() != nil {
		return 0, fmt.Errorf("failed to execute %s script: %w", name, result.Err())
	}

	values, err := result.Slice()
	if err != nil {
		return 0, fmt.Errorf("failed to parse script result: %w", err)
	}
	if len(values) < 2 {
		return 0, fmt.Errorf("unexpected script result length: %d", len(values))
	}

	if status, _ := toInt64(values[0]); status == 1 {
		v, _ := toInt64(values[1])
		return v, nil
	}

	code, _ := values[1].(string)
	switch code {
	case "CONFLICT":
		return 0, ErrVersionConflict
	case "NOT_FOUND":
		return 0, domain.ErrVenueNotFound
	case "EXISTS":
		return 0, domain.ErrVenueAlreadyExists
	}
	return 0, fmt.Errorf("%s script failed: %s", name, code)
}

func decodeVenue(doc []byte) (*domain.Venue, error) {
	var v domain.Venue
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("failed to decode venue: %w", err)
	}
	v.Normalize()
	return &v, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
