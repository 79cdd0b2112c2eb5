package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
)

// ErrVersionConflict is returned by CommitIfUnchanged when another writer
// committed since the snapshot was read
var ErrVersionConflict = errors.New("venue version conflict")

// Version identifies one committed state of a venue document
type Version int64

// ChangeKind describes what happened to a venue
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// VenueChange is one entry of a venue's change feed. Venue is nil for deletions.
type VenueChange struct {
	VenueID string        `json:"venue_id"`
	Kind    ChangeKind    `json:"kind"`
	Version Version       `json:"version"`
	Venue   *domain.Venue `json:"venue,omitempty"`
}

// VenueStore is the persistence boundary for venue documents
type VenueStore interface {
	// Get returns a private copy of the venue and the version it was read at
	Get(ctx context.Context, venueID string) (*domain.Venue, Version, error)

	// CommitIfUnchanged replaces the venue only if it is still at version;
	// otherwise it returns ErrVersionConflict
	CommitIfUnchanged(ctx context.Context, venueID string, version Version, venue *domain.Venue) error

	// Create stores a new venue. Versions of an id never repeat: a venue
	// recreated after a delete starts above the deleted venue's last version.
	Create(ctx context.Context, venue *domain.Venue) error

	// Delete removes a venue and everything it owns
	Delete(ctx context.Context, venueID string) error

	// List returns every venue
	List(ctx context.Context) ([]*domain.Venue, error)

	// Subscribe streams subsequent changes of one venue until ctx is done
	Subscribe(ctx context.Context, venueID string) (<-chan VenueChange, error)
}

// feedBuffer bounds a subscriber's backlog; older entries are coalesced away
const feedBuffer = 16

// deliverLatest sends c without blocking. A full channel loses its oldest
// entry; every change carries the full venue so only the newest matters.
func deliverLatest(ch chan VenueChange, c VenueChange) {
	for i := 0; i < 2; i++ {
		select {
		case ch <- c:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func sortVenues(vs []*domain.Venue) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Name == vs[j].Name {
			return vs[i].ID < vs[j].ID
		}
		return vs[i].Name < vs[j].Name
	})
}
