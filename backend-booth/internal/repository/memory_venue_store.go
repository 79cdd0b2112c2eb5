package repository

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
)

type memoryEntry struct {
	venue   *domain.Venue
	version Version
}

// MemoryVenueStore keeps venues in process. Reads and writes copy the
// document so callers never share state with the store.
type MemoryVenueStore struct {
	mu     sync.RWMutex
	venues map[string]*memoryEntry
	// last version of each deleted venue; a recreated venue continues past it
	tombstones map[string]Version

	feed *changeHub

	// forced conflicts for tests
	failNext atomic.Int64
}

// NewMemoryVenueStore creates an empty store
func NewMemoryVenueStore() *MemoryVenueStore {
	return &MemoryVenueStore{
		venues:     make(map[string]*memoryEntry),
		tombstones: make(map[string]Version),
		feed:       newChangeHub(),
	}
}

// FailNextCommits makes the next n commits report a version conflict
func (s *MemoryVenueStore) FailNextCommits(n int) {
	s.failNext.Store(int64(n))
}

// Get returns a copy of the venue
func (s *MemoryVenueStore) Get(ctx context.Context, venueID string) (*domain.Venue, Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.venues[venueID]
	if !ok {
		return nil, 0, domain.ErrVenueNotFound
	}
	return e.venue.Clone(), e.version, nil
}

// CommitIfUnchanged swaps in venue when the stored version matches
func (s *MemoryVenueStore) CommitIfUnchanged(ctx context.Context, venueID string, version Version, venue *domain.Venue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.takeForcedConflict() {
		return ErrVersionConflict
	}

	s.mu.Lock()
	e, ok := s.venues[venueID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrVenueNotFound
	}
	if e.version != version {
		s.mu.Unlock()
		return ErrVersionConflict
	}
	e.venue = venue.Clone()
	e.version++
	change := VenueChange{VenueID: venueID, Kind: ChangeUpdated, Version: e.version, Venue: e.venue.Clone()}
	// publish under the write lock so feeds see versions in order
	s.feed.publish(change)
	s.mu.Unlock()
	return nil
}

func (s *MemoryVenueStore) takeForcedConflict() bool {
	for {
		n := s.failNext.Load()
		if n <= 0 {
			return false
		}
		if s.failNext.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// Create stores a new venue at version 1, or one past the tombstone of a
// deleted venue with the same id
func (s *MemoryVenueStore) Create(ctx context.Context, venue *domain.Venue) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.venues[venue.ID]; exists {
		s.mu.Unlock()
		return domain.ErrVenueAlreadyExists
	}
	e := &memoryEntry{venue: venue.Clone(), version: s.tombstones[venue.ID] + 1}
	delete(s.tombstones, venue.ID)
	s.venues[venue.ID] = e
	change := VenueChange{VenueID: venue.ID, Kind: ChangeCreated, Version: e.version, Venue: e.venue.Clone()}
	s.feed.publish(change)
	s.mu.Unlock()
	return nil
}

// Delete removes the venue
func (s *MemoryVenueStore) Delete(ctx context.Context, venueID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	e, ok := s.venues[venueID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrVenueNotFound
	}
	delete(s.venues, venueID)
	s.tombstones[venueID] = e.version + 1
	change := VenueChange{VenueID: venueID, Kind: ChangeDeleted, Version: e.version + 1}
	s.feed.publish(change)
	s.mu.Unlock()
	return nil
}

// List returns copies of every venue
func (s *MemoryVenueStore) List(ctx context.Context) ([]*domain.Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*domain.Venue, 0, len(s.venues))
	for _, e := range s.venues {
		out = append(out, e.venue.Clone())
	}
	s.mu.RUnlock()

	sortVenues(out)
	return out, nil
}

// Subscribe registers a feed for venueID. The channel closes when ctx is done.
func (s *MemoryVenueStore) Subscribe(ctx context.Context, venueID string) (<-chan VenueChange, error) {
	return s.feed.subscribe(ctx, venueID), nil
}
