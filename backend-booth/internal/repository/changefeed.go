package repository

import (
	"context"
	"sync"
)

// changeHub fans venue changes out to per-venue subscribers
type changeHub struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan VenueChange
	nextID int
}

func newChangeHub() *changeHub {
	return &changeHub{subs: make(map[string]map[int]chan VenueChange)}
}

// subscribe registers a feed that closes when ctx is done
func (h *changeHub) subscribe(ctx context.Context, venueID string) <-chan VenueChange {
	ch := make(chan VenueChange, feedBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[venueID] == nil {
		h.subs[venueID] = make(map[int]chan VenueChange)
	}
	h.subs[venueID][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[venueID], id)
		if len(h.subs[venueID]) == 0 {
			delete(h.subs, venueID)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

func (h *changeHub) publish(c VenueChange) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[c.VenueID] {
		deliverLatest(ch, c)
	}
}

func (h *changeHub) watching(venueID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[venueID]) > 0
}
