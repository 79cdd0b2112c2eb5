package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Mode selects which machine a venue runs
type Mode string

const (
	ModeTimeSlot Mode = "time_slot"
	ModeQueue    Mode = "queue"
	ModeOrder    Mode = "order"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	switch m {
	case ModeTimeSlot, ModeQueue, ModeOrder:
		return true
	}
	return false
}

// AcceptingState gates new requests at a venue
type AcceptingState string

const (
	AcceptingOpen    AcceptingState = "open"
	AcceptingPaused  AcceptingState = "paused"
	AcceptingPreOpen AcceptingState = "pre_open"
	AcceptingClosed  AcceptingState = "closed"
)

// Valid reports whether s is a known accepting state
func (s AcceptingState) Valid() bool {
	switch s {
	case AcceptingOpen, AcceptingPaused, AcceptingPreOpen, AcceptingClosed:
		return true
	}
	return false
}

// Defaults
const (
	DefaultTicketHistorySize = 100
	DefaultOrderExpiry       = 30 * time.Minute
	MaxPartySize             = 20
)

// Venue is the single versioned aggregate. Every nested collection is owned
// by it and every invariant is enforced within one venue.
type Venue struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Mode            Mode           `json:"mode"`
	Accepting       AcceptingState `json:"accepting"`
	CapacityPerSlot int            `json:"capacity_per_slot"`
	// TimeSlots restricts bookable labels when non-empty
	TimeSlots        []string                `json:"time_slots,omitempty"`
	SlotCounts       map[string]int          `json:"slot_counts"`
	MenuItems        map[string]*MenuItem    `json:"menu_items"`
	Reservations     map[string]*Reservation `json:"reservations"`
	Tickets          []*QueueTicket          `json:"tickets"`
	TicketHistory    []*QueueTicket          `json:"ticket_history"`
	Orders           map[string]*Order       `json:"orders"`
	LastTicketNumber int                     `json:"last_ticket_number"`
	LastOrderNumber  int                     `json:"last_order_number"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// NewVenue validates settings and creates an empty venue. New venues start closed.
func NewVenue(id, name string, mode Mode, capacityPerSlot int, timeSlots []string, now time.Time) (*Venue, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidVenueID
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidVenueName
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if capacityPerSlot < 0 || (mode == ModeTimeSlot && capacityPerSlot == 0) {
		return nil, ErrInvalidCapacity
	}
	slots, err := normalizeSlots(timeSlots)
	if err != nil {
		return nil, err
	}

	v := &Venue{
		ID:              id,
		Name:            strings.TrimSpace(name),
		Mode:            mode,
		Accepting:       AcceptingClosed,
		CapacityPerSlot: capacityPerSlot,
		TimeSlots:       slots,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	v.ensureMaps()
	return v, nil
}

func (v *Venue) ensureMaps() {
	if v.SlotCounts == nil {
		v.SlotCounts = make(map[string]int)
	}
	if v.MenuItems == nil {
		v.MenuItems = make(map[string]*MenuItem)
	}
	if v.Reservations == nil {
		v.Reservations = make(map[string]*Reservation)
	}
	if v.Orders == nil {
		v.Orders = make(map[string]*Order)
	}
}

// Normalize fills nil collections after decoding from a store
func (v *Venue) Normalize() {
	v.ensureMaps()
}

// Touch stamps the venue as modified at now
func (v *Venue) Touch(now time.Time) {
	v.UpdatedAt = now
}

// Clone returns a deep copy. Transforms always run on a clone.
func (v *Venue) Clone() *Venue {
	if v == nil {
		return nil
	}
	c := *v
	c.TimeSlots = append([]string(nil), v.TimeSlots...)

	c.SlotCounts = make(map[string]int, len(v.SlotCounts))
	for k, n := range v.SlotCounts {
		c.SlotCounts[k] = n
	}
	c.MenuItems = make(map[string]*MenuItem, len(v.MenuItems))
	for k, it := range v.MenuItems {
		cp := *it
		c.MenuItems[k] = &cp
	}
	c.Reservations = make(map[string]*Reservation, len(v.Reservations))
	for k, r := range v.Reservations {
		cp := *r
		c.Reservations[k] = &cp
	}
	c.Tickets = cloneTickets(v.Tickets)
	c.TicketHistory = cloneTickets(v.TicketHistory)
	c.Orders = make(map[string]*Order, len(v.Orders))
	for k, o := range v.Orders {
		c.Orders[k] = o.Clone()
	}
	return &c
}

func cloneTickets(in []*QueueTicket) []*QueueTicket {
	if in == nil {
		return nil
	}
	out := make([]*QueueTicket, len(in))
	for i, t := range in {
		cp := *t
		out[i] = &cp
	}
	return out
}

// AllowsReservations checks the venue can take a time-slot booking.
// pre_open admits reservations ahead of opening.
func (v *Venue) AllowsReservations() error {
	if v.Mode != ModeTimeSlot {
		return fmt.Errorf("%w: venue mode is %s", ErrVenueNotAcceptingRequests, v.Mode)
	}
	if v.Accepting != AcceptingOpen && v.Accepting != AcceptingPreOpen {
		return fmt.Errorf("%w: venue is %s", ErrVenueNotAcceptingRequests, v.Accepting)
	}
	return nil
}

// AllowsQueue checks the venue can issue queue tickets
func (v *Venue) AllowsQueue() error {
	if v.Mode != ModeQueue {
		return fmt.Errorf("%w: venue mode is %s", ErrVenueNotAcceptingRequests, v.Mode)
	}
	if v.Accepting != AcceptingOpen {
		return fmt.Errorf("%w: venue is %s", ErrVenueNotAcceptingRequests, v.Accepting)
	}
	return nil
}

// AllowsOrders checks the venue can take orders. Any venue with a catalog
// sells from it; order-mode venues always do.
func (v *Venue) AllowsOrders() error {
	if v.Mode != ModeOrder && len(v.MenuItems) == 0 {
		return fmt.Errorf("%w: venue has no catalog", ErrVenueNotAcceptingRequests)
	}
	if v.Accepting != AcceptingOpen {
		return fmt.Errorf("%w: venue is %s", ErrVenueNotAcceptingRequests, v.Accepting)
	}
	return nil
}

// SetAccepting changes the accepting state
func (v *Venue) SetAccepting(state AcceptingState) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAcceptingState, state)
	}
	v.Accepting = state
	return nil
}

// Settings is a partial update; nil fields are left unchanged
type Settings struct {
	Name            *string
	Mode            *Mode
	CapacityPerSlot *int
	TimeSlots       *[]string
}

// Validate checks field values without reference to a venue
func (s Settings) Validate() error {
	if s.Name != nil && strings.TrimSpace(*s.Name) == "" {
		return ErrInvalidVenueName
	}
	if s.Mode != nil && !s.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, *s.Mode)
	}
	if s.CapacityPerSlot != nil && *s.CapacityPerSlot < 0 {
		return ErrInvalidCapacity
	}
	if s.TimeSlots != nil {
		if _, err := normalizeSlots(*s.TimeSlots); err != nil {
			return err
		}
	}
	return nil
}

// ApplySettings applies a partial settings update. The mode may only change
// once the old mode has no active reservations or tickets.
func (v *Venue) ApplySettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	mode := v.Mode
	if s.Mode != nil && *s.Mode != v.Mode {
		if v.hasActiveWork() {
			return fmt.Errorf("%w: venue still has active %s entries", ErrInvalidTransition, v.Mode)
		}
		mode = *s.Mode
	}
	capacity := v.CapacityPerSlot
	if s.CapacityPerSlot != nil {
		capacity = *s.CapacityPerSlot
	}
	if mode == ModeTimeSlot && capacity == 0 {
		return ErrInvalidCapacity
	}

	if s.Name != nil {
		v.Name = strings.TrimSpace(*s.Name)
	}
	if s.TimeSlots != nil {
		v.TimeSlots, _ = normalizeSlots(*s.TimeSlots)
	}
	v.Mode = mode
	v.CapacityPerSlot = capacity
	return nil
}

func (v *Venue) hasActiveWork() bool {
	switch v.Mode {
	case ModeTimeSlot:
		for _, r := range v.Reservations {
			if r.Status == ReservationReserved {
				return true
			}
		}
	case ModeQueue:
		return len(v.Tickets) > 0
	}
	return false
}

func normalizeSlots(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("%w: empty label", ErrInvalidSlotLabel)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
