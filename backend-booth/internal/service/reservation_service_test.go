package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotVenue(t *testing.T, f *fixture, capacity int) *domain.Venue {
	return f.venue(t, CreateVenueInput{
		ID:              "haunted-house",
		Name:            "Haunted House",
		Mode:            domain.ModeTimeSlot,
		CapacityPerSlot: capacity,
		TimeSlots:       []string{"10:00", "11:00"},
	})
}

func TestBookSlot_CapacityTwoScenario(t *testing.T) {
	f := newFixture(t)
	v := slotVenue(t, f, 2)
	ctx := context.Background()

	_, err := f.reservations.BookSlot(ctx, v.ID, "alice", "10:00")
	require.NoError(t, err)
	_, err = f.reservations.BookSlot(ctx, v.ID, "bob", "10:00")
	require.NoError(t, err)

	_, err = f.reservations.BookSlot(ctx, v.ID, "carol", "10:00")
	assert.ErrorIs(t, err, domain.ErrSlotFull)
	assert.True(t, domain.IsCapacityError(err))

	got := f.snapshot(t, v.ID)
	assert.Equal(t, 2, got.SlotCounts["10:00"])
	assert.Len(t, got.Reservations, 2)
	assert.Len(t, f.publisher.eventsOfType(domain.EventReservationBooked), 2)
}

func TestBookSlot_ConcurrentNeverOverbooks(t *testing.T) {
	f := newFixture(t)
	v := slotVenue(t, f, 5)

	const users = 30
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		booked int
		full   int
	)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.reservations.BookSlot(context.Background(), v.ID, fmt.Sprintf("user-%d", i), "10:00")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case assert.ErrorIs(t, err, domain.ErrSlotFull):
				full++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, booked)
	assert.Equal(t, users-5, full)

	got := f.snapshot(t, v.ID)
	reserved := 0
	for _, r := range got.Reservations {
		if r.Status == domain.ReservationReserved {
			reserved++
		}
	}
	assert.Equal(t, 5, reserved)
	assert.Equal(t, 5, got.SlotCounts["10:00"])
	assert.True(t, got.SlotCountsConsistent())
}

func TestBookSlot_RoundTripRestoresOccupancy(t *testing.T) {
	f := newFixture(t)
	v := slotVenue(t, f, 3)
	ctx := context.Background()

	_, err := f.reservations.BookSlot(ctx, v.ID, "alice", "11:00")
	require.NoError(t, err)
	before := f.snapshot(t, v.ID).SlotCounts["10:00"]

	_, err = f.reservations.BookSlot(ctx, v.ID, "bob", "10:00")
	require.NoError(t, err)
	_, err = f.reservations.CancelReservation(ctx, v.ID, "bob", "10:00")
	require.NoError(t, err)

	got := f.snapshot(t, v.ID)
	assert.Equal(t, before, got.SlotCounts["10:00"])
	assert.True(t, got.SlotCountsConsistent())
	assert.Len(t, f.publisher.eventsOfType(domain.EventReservationCanceled), 1)
}

func TestBookSlot_Validation(t *testing.T) {
	f := newFixture(t)
	v := slotVenue(t, f, 2)
	ctx := context.Background()

	_, err := f.reservations.BookSlot(ctx, v.ID, "", "10:00")
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = f.reservations.BookSlot(ctx, v.ID, "alice", " ")
	assert.ErrorIs(t, err, domain.ErrInvalidSlotLabel)

	_, err = f.reservations.BookSlot(ctx, v.ID, "alice", "23:00")
	assert.ErrorIs(t, err, domain.ErrInvalidSlotLabel)

	_, err = f.reservations.BookSlot(ctx, "missing", "alice", "10:00")
	assert.ErrorIs(t, err, domain.ErrVenueNotFound)
}

func TestBookSlot_DuplicateAndPaused(t *testing.T) {
	f := newFixture(t)
	v := slotVenue(t, f, 2)
	ctx := context.Background()

	_, err := f.reservations.BookSlot(ctx, v.ID, "alice", "10:00")
	require.NoError(t, err)
	_, err = f.reservations.BookSlot(ctx, v.ID, "alice", "11:00")
	assert.ErrorIs(t, err, domain.ErrDuplicateActiveReservation)

	_, err = f.venues.SetAccepting(ctx, v.ID, domain.AcceptingPaused)
	require.NoError(t, err)
	_, err = f.reservations.BookSlot(ctx, v.ID, "bob", "10:00")
	assert.ErrorIs(t, err, domain.ErrVenueNotAcceptingRequests)
}

func TestMarkUsedAndUnused(t *testing.T) {
	f := newFixture(t)
	v := slotVenue(t, f, 2)
	ctx := context.Background()

	r, err := f.reservations.BookSlot(ctx, v.ID, "alice", "10:00")
	require.NoError(t, err)

	used, err := f.reservations.MarkUsed(ctx, v.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationUsed, used.Status)
	assert.Equal(t, 1, f.snapshot(t, v.ID).SlotCounts["10:00"])

	_, err = f.reservations.MarkUsed(ctx, v.ID, r.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// the used reservation no longer blocks a new booking
	_, err = f.reservations.BookSlot(ctx, v.ID, "alice", "11:00")
	require.NoError(t, err)
	_, err = f.reservations.MarkUnused(ctx, v.ID, r.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateActiveReservation)

	_, err = f.reservations.MarkUsed(ctx, v.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidReservationID)
}

func TestSlotAvailabilityAndUserReservations(t *testing.T) {
	f := newFixture(t)
	v := slotVenue(t, f, 2)
	ctx := context.Background()

	_, err := f.reservations.BookSlot(ctx, v.ID, "alice", "11:00")
	require.NoError(t, err)

	slots, err := f.reservations.SlotAvailability(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, domain.SlotAvailability{Label: "10:00", Capacity: 2, Occupied: 0, Remaining: 2}, slots[0])
	assert.Equal(t, domain.SlotAvailability{Label: "11:00", Capacity: 2, Occupied: 1, Remaining: 1}, slots[1])

	mine, err := f.reservations.UserReservations(ctx, v.ID, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "11:00", mine[0].SlotLabel)

	all, err := f.reservations.ListReservations(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCancelReservation_NotFound(t *testing.T) {
	f := newFixture(t)
	v := slotVenue(t, f, 2)

	_, err := f.reservations.CancelReservation(context.Background(), v.ID, "alice", "10:00")
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}
