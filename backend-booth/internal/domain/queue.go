package domain

import (
	"fmt"
	"sort"
	"time"
)

// TicketStatus is the lifecycle state of a queue ticket
type TicketStatus string

const (
	TicketWaiting   TicketStatus = "waiting"
	TicketReady     TicketStatus = "ready"
	TicketCompleted TicketStatus = "completed"
	TicketCanceled  TicketStatus = "canceled"
)

// Resolved reports whether s is terminal
func (s TicketStatus) Resolved() bool {
	return s == TicketCompleted || s == TicketCanceled
}

// QueueTicket is one party's place in a venue queue
type QueueTicket struct {
	VenueID    string       `json:"venue_id"`
	UserID     string       `json:"user_id"`
	Number     int          `json:"number"`
	PartySize  int          `json:"party_size"`
	Status     TicketStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	CalledAt   *time.Time   `json:"called_at,omitempty"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}

// FormatTicketNumber renders n as a six digit zero-padded string
func FormatTicketNumber(n int) string {
	return fmt.Sprintf("%06d", n)
}

// Display returns the zero-padded ticket number
func (t *QueueTicket) Display() string {
	return FormatTicketNumber(t.Number)
}

// ValidatePartySize checks 1..MaxPartySize
func ValidatePartySize(n int) error {
	if n < 1 || n > MaxPartySize {
		return ErrInvalidPartySize
	}
	return nil
}

// NextTicketNumber is one past the highest number ever issued at the venue
func (v *Venue) NextTicketNumber() int {
	highest := v.LastTicketNumber
	for _, t := range v.Tickets {
		if t.Number > highest {
			highest = t.Number
		}
	}
	for _, t := range v.TicketHistory {
		if t.Number > highest {
			highest = t.Number
		}
	}
	return highest + 1
}

// ActiveTicket returns the user's waiting or ready ticket, if any
func (v *Venue) ActiveTicket(userID string) *QueueTicket {
	for _, t := range v.Tickets {
		if t.UserID == userID {
			return t
		}
	}
	return nil
}

// JoinQueue issues the next ticket number to userID
func (v *Venue) JoinQueue(userID string, partySize int, now time.Time) (*QueueTicket, error) {
	if err := v.AllowsQueue(); err != nil {
		return nil, err
	}
	if err := ValidatePartySize(partySize); err != nil {
		return nil, err
	}
	if t := v.ActiveTicket(userID); t != nil {
		return nil, fmt.Errorf("%w: ticket %s", ErrDuplicateActiveTicket, t.Display())
	}

	t := &QueueTicket{
		VenueID:   v.ID,
		UserID:    userID,
		Number:    v.NextTicketNumber(),
		PartySize: partySize,
		Status:    TicketWaiting,
		CreatedAt: now,
	}
	v.Tickets = append(v.Tickets, t)
	v.LastTicketNumber = t.Number
	return t, nil
}

func (v *Venue) ticketIndex(number int) int {
	for i, t := range v.Tickets {
		if t.Number == number {
			return i
		}
	}
	return -1
}

func (v *Venue) inHistory(number int) bool {
	for _, t := range v.TicketHistory {
		if t.Number == number {
			return true
		}
	}
	return false
}

// missingTicket classifies a number absent from the active set. Numbers are
// never reused, so any issued number that is no longer active was resolved
// even after it has aged out of the history.
func (v *Venue) missingTicket(number int) error {
	if v.inHistory(number) || (number > 0 && number <= v.LastTicketNumber) {
		return fmt.Errorf("%w: ticket %s is already resolved", ErrInvalidTransition, FormatTicketNumber(number))
	}
	return fmt.Errorf("%w: %s", ErrTicketNotFound, FormatTicketNumber(number))
}

// CallTicket moves a waiting ticket to ready. Calling a ready ticket again
// changes nothing.
func (v *Venue) CallTicket(number int, now time.Time) (*QueueTicket, bool, error) {
	i := v.ticketIndex(number)
	if i < 0 {
		return nil, false, v.missingTicket(number)
	}

	t := v.Tickets[i]
	if t.Status == TicketReady {
		return t, false, nil
	}
	t.Status = TicketReady
	called := now
	t.CalledAt = &called
	return t, true, nil
}

// CallNext calls the lowest-numbered waiting ticket
func (v *Venue) CallNext(now time.Time) (*QueueTicket, error) {
	next := -1
	for _, t := range v.Tickets {
		if t.Status == TicketWaiting && (next < 0 || t.Number < next) {
			next = t.Number
		}
	}
	if next < 0 {
		return nil, fmt.Errorf("%w: no waiting tickets", ErrTicketNotFound)
	}
	t, _, err := v.CallTicket(next, now)
	return t, err
}

// ResolveTicket closes an active ticket and moves it into history, keeping at
// most historyCap entries
func (v *Venue) ResolveTicket(number int, outcome TicketStatus, now time.Time, historyCap int) (*QueueTicket, error) {
	if !outcome.Resolved() {
		return nil, ErrInvalidOutcome
	}
	i := v.ticketIndex(number)
	if i < 0 {
		return nil, v.missingTicket(number)
	}

	t := v.Tickets[i]
	t.Status = outcome
	resolved := now
	t.ResolvedAt = &resolved

	v.Tickets = append(v.Tickets[:i], v.Tickets[i+1:]...)
	v.appendHistory(historyCap, t)
	return t, nil
}

// ResetQueue cancels every active ticket. Numbering continues from the
// high-water mark.
func (v *Venue) ResetQueue(now time.Time, historyCap int) int {
	n := len(v.Tickets)
	if next := v.NextTicketNumber() - 1; next > v.LastTicketNumber {
		v.LastTicketNumber = next
	}
	resolved := now
	for _, t := range v.Tickets {
		t.Status = TicketCanceled
		t.ResolvedAt = &resolved
	}
	v.appendHistory(historyCap, v.Tickets...)
	v.Tickets = nil
	return n
}

func (v *Venue) appendHistory(historyCap int, ts ...*QueueTicket) {
	if historyCap <= 0 {
		historyCap = DefaultTicketHistorySize
	}
	v.TicketHistory = append(v.TicketHistory, ts...)
	if over := len(v.TicketHistory) - historyCap; over > 0 {
		v.TicketHistory = append([]*QueueTicket(nil), v.TicketHistory[over:]...)
	}
}

// QueueBoard lists active tickets for display: ready first, then waiting,
// ascending number within each status
func (v *Venue) QueueBoard() []*QueueTicket {
	out := append([]*QueueTicket(nil), v.Tickets...)
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Status == TicketReady, out[j].Status == TicketReady
		if ri != rj {
			return ri
		}
		return out[i].Number < out[j].Number
	})
	return out
}

// TicketPosition returns the user's active ticket and how many waiting
// tickets are ahead of it
func (v *Venue) TicketPosition(userID string) (*QueueTicket, int, error) {
	t := v.ActiveTicket(userID)
	if t == nil {
		return nil, 0, ErrTicketNotFound
	}
	ahead := 0
	if t.Status == TicketWaiting {
		for _, o := range v.Tickets {
			if o.Status == TicketWaiting && o.Number < t.Number {
				ahead++
			}
		}
	}
	return t, ahead, nil
}
