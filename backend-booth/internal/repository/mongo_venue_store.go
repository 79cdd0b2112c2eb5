package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// mongoVenueDocument is the stored shape of one venue. A deleted venue stays
// as a tombstone without a body so its version keeps counting up.
type mongoVenueDocument struct {
	ID      string        `bson:"_id"`
	Version int64         `bson:"version"`
	Name    string        `bson:"name"`
	Deleted bool          `bson:"deleted"`
	Venue   *domain.Venue `bson:"venue,omitempty"`
}

var notDeleted = bson.M{"$ne": true}

func liveVenue(venueID string) bson.M {
	return bson.M{"_id": venueID, "deleted": notDeleted}
}

// MongoVenueStore keeps one document per venue and commits with a filter on
// the expected version. Change streams feed subscribers.
type MongoVenueStore struct {
	collection *mongo.Collection
	log        *logger.Logger

	feed       *changeHub
	feedOnce   sync.Once
	feedCtx    context.Context
	feedCancel context.CancelFunc
}

// NewMongoVenueStore creates a new MongoVenueStore
func NewMongoVenueStore(collection *mongo.Collection, log *logger.Logger) *MongoVenueStore {
	if log == nil {
		log = logger.Get()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MongoVenueStore{
		collection: collection,
		log:        log.Named("mongo-venue-store"),
		feed:       newChangeHub(),
		feedCtx:    ctx,
		feedCancel: cancel,
	}
}

// EnsureIndexes creates the name index used by List
func (s *MongoVenueStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("cannot create venue indexes: %w", err)
	}
	return nil
}

// Close stops the change stream
func (s *MongoVenueStore) Close() {
	s.feedCancel()
}

// Get reads the document and its version
func (s *MongoVenueStore) Get(ctx context.Context, venueID string) (*domain.Venue, Version, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.mongo.venue.get")
	defer span.End()
	span.SetAttributes(attribute.String("venue_id", venueID))

	var doc mongoVenueDocument
	err := s.collection.FindOne(ctx, liveVenue(venueID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, domain.ErrVenueNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("cannot get venue: %w", err)
	}
	if doc.Venue == nil {
		return nil, 0, fmt.Errorf("venue %s has no document body", venueID)
	}

	doc.Venue.Normalize()
	return doc.Venue, Version(doc.Version), nil
}

// CommitIfUnchanged replaces the document only at the expected version
func (s *MongoVenueStore) CommitIfUnchanged(ctx context.Context, venueID string, version Version, venue *domain.Venue) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.mongo.venue.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("venue_id", venueID),
		attribute.Int64("version", int64(version)),
	)

	filter := liveVenue(venueID)
	filter["version"] = int64(version)
	replacement := mongoVenueDocument{
		ID:      venueID,
		Version: int64(version) + 1,
		Name:    venue.Name,
		Venue:   venue,
	}

	res, err := s.collection.ReplaceOne(ctx, filter, replacement)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("cannot commit venue: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.collection.CountDocuments(ctx, liveVenue(venueID))
	if err != nil {
		return fmt.Errorf("cannot check venue: %w", err)
	}
	if n == 0 {
		return domain.ErrVenueNotFound
	}
	return ErrVersionConflict
}

// Create inserts a new venue at version 1, or revives a tombstone one
// version past it
func (s *MongoVenueStore) Create(ctx context.Context, venue *domain.Venue) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.mongo.venue.create")
	defer span.End()
	span.SetAttributes(attribute.String("venue_id", venue.ID))

	_, err := s.collection.InsertOne(ctx, mongoVenueDocument{
		ID:      venue.ID,
		Version: 1,
		Name:    venue.Name,
		Venue:   venue,
	})
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("cannot create venue: %w", err)
	}

	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": venue.ID, "deleted": true},
		bson.M{
			"$set": bson.M{"deleted": false, "name": venue.Name, "venue": venue},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("cannot create venue: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrVenueAlreadyExists
	}
	return nil
}

// Delete drops the venue body and leaves a tombstone one version past the
// last commit
func (s *MongoVenueStore) Delete(ctx context.Context, venueID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.mongo.venue.delete")
	defer span.End()
	span.SetAttributes(attribute.String("venue_id", venueID))

	res, err := s.collection.UpdateOne(ctx, liveVenue(venueID), bson.M{
		"$set":   bson.M{"deleted": true},
		"$unset": bson.M{"venue": ""},
		"$inc":   bson.M{"version": 1},
	})
	if err != nil {
		return fmt.Errorf("cannot delete venue: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrVenueNotFound
	}
	return nil
}

// List returns every venue ordered by name
func (s *MongoVenueStore) List(ctx context.Context) ([]*domain.Venue, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.mongo.venue.list")
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"deleted": notDeleted}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list venues: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*domain.Venue
	for cursor.Next(ctx) {
		var doc mongoVenueDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("cannot decode venue: %w", err)
		}
		if doc.Venue == nil {
			continue
		}
		doc.Venue.Normalize()
		out = append(out, doc.Venue)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cannot iterate venues: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(out)))
	return out, nil
}

// mongoChangeEvent is the subset of a change stream event we consume
type mongoChangeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *mongoVenueDocument `bson:"fullDocument"`
}

// Subscribe streams changes of one venue. Change streams need a replica set;
// without one the feed stays silent and the failure is logged.
func (s *MongoVenueStore) Subscribe(ctx context.Context, venueID string) (<-chan VenueChange, error) {
	s.feedOnce.Do(func() { go s.watch() })
	return s.feed.subscribe(ctx, venueID), nil
}

func (s *MongoVenueStore) watch() {
	backoff := 500 * time.Millisecond
	for {
		if err := s.watchOnce(); err != nil && s.feedCtx.Err() == nil {
			s.log.Warn("Venue change stream interrupted", zap.Error(err))
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

func (s *MongoVenueStore) watchOnce() error {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := s.collection.Watch(s.feedCtx, mongo.Pipeline{}, opts)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(s.feedCtx) {
		var ev mongoChangeEvent
		if err := stream.Decode(&ev); err != nil {
			s.log.Debug("Ignoring undecodable change event", zap.Error(err))
			continue
		}
		if change, ok := toVenueChange(ev); ok {
			s.feed.publish(change)
		}
	}
	return stream.Err()
}

func toVenueChange(ev mongoChangeEvent) (VenueChange, bool) {
	switch ev.OperationType {
	case "insert", "replace", "update":
		if ev.FullDocument == nil {
			return VenueChange{}, false
		}
		if ev.FullDocument.Deleted {
			return VenueChange{
				VenueID: ev.FullDocument.ID,
				Kind:    ChangeDeleted,
				Version: Version(ev.FullDocument.Version),
			}, true
		}
		if ev.FullDocument.Venue == nil {
			return VenueChange{}, false
		}
		// commits replace the document; only create and revive use insert
		// or update
		kind := ChangeUpdated
		if ev.OperationType != "replace" {
			kind = ChangeCreated
		}
		ev.FullDocument.Venue.Normalize()
		return VenueChange{
			VenueID: ev.FullDocument.ID,
			Kind:    kind,
			Version: Version(ev.FullDocument.Version),
			Venue:   ev.FullDocument.Venue,
		}, true
	case "delete":
		return VenueChange{VenueID: ev.DocumentKey.ID, Kind: ChangeDeleted}, true
	}
	return VenueChange{}, false
}
