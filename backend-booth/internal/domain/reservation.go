package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "reserved"
	ReservationUsed     ReservationStatus = "used"
)

// Reservation holds one place in a time slot
type Reservation struct {
	ID        string            `json:"id"`
	VenueID   string            `json:"venue_id"`
	UserID    string            `json:"user_id"`
	SlotLabel string            `json:"slot_label"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// SlotAvailability is the occupancy view of one slot
type SlotAvailability struct {
	Label     string `json:"label"`
	Capacity  int    `json:"capacity"`
	Occupied  int    `json:"occupied"`
	Remaining int    `json:"remaining"`
}

// ValidateSlotLabel checks a label is non-empty and, when the venue restricts
// labels, one of them
func (v *Venue) ValidateSlotLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return ErrInvalidSlotLabel
	}
	if len(v.TimeSlots) == 0 {
		return nil
	}
	i := sort.SearchStrings(v.TimeSlots, label)
	if i < len(v.TimeSlots) && v.TimeSlots[i] == label {
		return nil
	}
	return fmt.Errorf("%w: %q is not offered", ErrInvalidSlotLabel, label)
}

// ActiveReservation returns the user's reserved reservation, if any
func (v *Venue) ActiveReservation(userID string) *Reservation {
	for _, r := range v.Reservations {
		if r.UserID == userID && r.Status == ReservationReserved {
			return r
		}
	}
	return nil
}

// BookSlot reserves one place in slot for userID. The reservation and the
// occupancy counter change together.
func (v *Venue) BookSlot(id, userID, slot string, now time.Time) (*Reservation, error) {
	if err := v.AllowsReservations(); err != nil {
		return nil, err
	}
	if err := v.ValidateSlotLabel(slot); err != nil {
		return nil, err
	}
	if v.ActiveReservation(userID) != nil {
		return nil, ErrDuplicateActiveReservation
	}
	if v.SlotCounts[slot] >= v.CapacityPerSlot {
		return nil, fmt.Errorf("%w: %s has %d of %d", ErrSlotFull, slot, v.SlotCounts[slot], v.CapacityPerSlot)
	}

	r := &Reservation{
		ID:        id,
		VenueID:   v.ID,
		UserID:    userID,
		SlotLabel: slot,
		Status:    ReservationReserved,
		CreatedAt: now,
	}
	v.Reservations[id] = r
	v.SlotCounts[slot]++
	return r, nil
}

// CancelReservation releases the user's reserved place in slot
func (v *Venue) CancelReservation(userID, slot string) (*Reservation, error) {
	for id, r := range v.Reservations {
		if r.UserID != userID || r.SlotLabel != slot || r.Status != ReservationReserved {
			continue
		}
		delete(v.Reservations, id)
		if v.SlotCounts[slot] > 0 {
			v.SlotCounts[slot]--
		}
		if v.SlotCounts[slot] == 0 {
			delete(v.SlotCounts, slot)
		}
		return r, nil
	}
	return nil, ErrReservationNotFound
}

// MarkReservation toggles a reservation between reserved and used. Capacity
// is held either way.
func (v *Venue) MarkReservation(reservationID string, to ReservationStatus) (*Reservation, error) {
	r, ok := v.Reservations[reservationID]
	if !ok {
		return nil, ErrReservationNotFound
	}

	switch to {
	case ReservationUsed:
		if r.Status != ReservationReserved {
			return nil, fmt.Errorf("%w: reservation is already %s", ErrInvalidTransition, r.Status)
		}
	case ReservationReserved:
		if r.Status != ReservationUsed {
			return nil, fmt.Errorf("%w: reservation is already %s", ErrInvalidTransition, r.Status)
		}
		if v.ActiveReservation(r.UserID) != nil {
			return nil, ErrDuplicateActiveReservation
		}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	r.Status = to
	return r, nil
}

// SlotAvailability lists every known slot sorted by label
func (v *Venue) SlotAvailability() []SlotAvailability {
	labels := make(map[string]struct{}, len(v.TimeSlots)+len(v.SlotCounts))
	for _, s := range v.TimeSlots {
		labels[s] = struct{}{}
	}
	for s := range v.SlotCounts {
		labels[s] = struct{}{}
	}

	out := make([]SlotAvailability, 0, len(labels))
	for s := range labels {
		occupied := v.SlotCounts[s]
		remaining := v.CapacityPerSlot - occupied
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, SlotAvailability{
			Label:     s,
			Capacity:  v.CapacityPerSlot,
			Occupied:  occupied,
			Remaining: remaining,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// UserReservations returns the user's reservations, oldest first
func (v *Venue) UserReservations(userID string) []*Reservation {
	var out []*Reservation
	for _, r := range v.Reservations {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out
}

// ReservationList returns all reservations, oldest first
func (v *Venue) ReservationList() []*Reservation {
	out := make([]*Reservation, 0, len(v.Reservations))
	for _, r := range v.Reservations {
		out = append(out, r)
	}
	sortReservations(out)
	return out
}

func sortReservations(rs []*Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}

// SlotCountsConsistent reports whether every counter equals the number of
// reservations held in its slot
func (v *Venue) SlotCountsConsistent() bool {
	expected := v.countSlots()
	if len(expected) != len(nonZero(v.SlotCounts)) {
		return false
	}
	for s, n := range expected {
		if v.SlotCounts[s] != n {
			return false
		}
	}
	return true
}

// RecountSlots rebuilds the counters from the reservation set
func (v *Venue) RecountSlots() {
	v.SlotCounts = v.countSlots()
}

// ResetReservations drops every reservation and counter
func (v *Venue) ResetReservations() int {
	n := len(v.Reservations)
	v.Reservations = make(map[string]*Reservation)
	v.SlotCounts = make(map[string]int)
	return n
}

func (v *Venue) countSlots() map[string]int {
	counts := make(map[string]int)
	for _, r := range v.Reservations {
		counts[r.SlotLabel]++
	}
	return counts
}

func nonZero(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, n := range m {
		if n != 0 {
			out[k] = n
		}
	}
	return out
}
