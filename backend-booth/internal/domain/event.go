package domain

import "time"

// EventType names a venue event published after a commit
type EventType string

const (
	EventVenueChanged        EventType = "venue.changed"
	EventReservationBooked   EventType = "reservation.booked"
	EventReservationCanceled EventType = "reservation.cancelled"
	EventQueueJoined         EventType = "queue.joined"
	EventQueueCalled         EventType = "queue.called"
	EventQueueResolved       EventType = "queue.resolved"
	EventOrderPlaced         EventType = "order.placed"
	EventOrderAdvanced       EventType = "order.advanced"
	EventOrderCancelled      EventType = "order.cancelled"
)

// VenueEvent is the envelope written to the event bus
type VenueEvent struct {
	EventID    string    `json:"event_id"`
	EventType  EventType `json:"event_type"`
	VenueID    string    `json:"venue_id"`
	UserID     string    `json:"user_id,omitempty"`
	Version    int64     `json:"version,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// NewVenueEvent builds an event envelope
func NewVenueEvent(eventID string, eventType EventType, venueID string, occurredAt time.Time, payload any) *VenueEvent {
	return &VenueEvent{
		EventID:    eventID,
		EventType:  eventType,
		VenueID:    venueID,
		OccurredAt: occurredAt,
		Payload:    payload,
	}
}

// Key partitions events by venue so consumers see them in commit order
func (e *VenueEvent) Key() string {
	return e.VenueID
}
