package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookSlot_CapacityScenario(t *testing.T) {
	v := openVenue(t, ModeTimeSlot, 2)

	_, err := v.BookSlot("r1", "alice", "10:00", t0)
	require.NoError(t, err)
	_, err = v.BookSlot("r2", "bob", "10:00", t0)
	require.NoError(t, err)

	_, err = v.BookSlot("r3", "carol", "10:00", t0)
	assert.ErrorIs(t, err, ErrSlotFull)
	assert.Equal(t, 2, v.SlotCounts["10:00"])
	assert.Len(t, v.Reservations, 2)
}

func TestBookSlot_Rules(t *testing.T) {
	v := openVenue(t, ModeTimeSlot, 3)

	_, err := v.BookSlot("r1", "alice", "10:00", t0)
	require.NoError(t, err)

	_, err = v.BookSlot("r2", "alice", "11:00", t0)
	assert.ErrorIs(t, err, ErrDuplicateActiveReservation)

	_, err = v.BookSlot("r2", "bob", "", t0)
	assert.ErrorIs(t, err, ErrInvalidSlotLabel)

	v.TimeSlots = []string{"10:00", "11:00"}
	_, err = v.BookSlot("r2", "bob", "12:00", t0)
	assert.ErrorIs(t, err, ErrInvalidSlotLabel)

	require.NoError(t, v.SetAccepting(AcceptingPaused))
	_, err = v.BookSlot("r2", "bob", "11:00", t0)
	assert.ErrorIs(t, err, ErrVenueNotAcceptingRequests)
	assert.True(t, v.SlotCountsConsistent())
}

func TestBookThenCancel_RestoresCount(t *testing.T) {
	v := openVenue(t, ModeTimeSlot, 2)
	_, err := v.BookSlot("r0", "zed", "10:00", t0)
	require.NoError(t, err)
	before := v.SlotCounts["10:00"]

	_, err = v.BookSlot("r1", "alice", "10:00", t0)
	require.NoError(t, err)
	_, err = v.CancelReservation("alice", "10:00")
	require.NoError(t, err)

	assert.Equal(t, before, v.SlotCounts["10:00"])
	assert.Nil(t, v.ActiveReservation("alice"))

	_, err = v.CancelReservation("alice", "10:00")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestCancelReservation_FloorsAtZero(t *testing.T) {
	v := openVenue(t, ModeTimeSlot, 2)
	_, err := v.BookSlot("r1", "alice", "10:00", t0)
	require.NoError(t, err)
	v.SlotCounts["10:00"] = 0

	_, err = v.CancelReservation("alice", "10:00")
	require.NoError(t, err)
	assert.Equal(t, 0, v.SlotCounts["10:00"])
}

func TestMarkReservation(t *testing.T) {
	v := openVenue(t, ModeTimeSlot, 2)
	_, err := v.BookSlot("r1", "alice", "10:00", t0)
	require.NoError(t, err)

	r, err := v.MarkReservation("r1", ReservationUsed)
	require.NoError(t, err)
	assert.Equal(t, ReservationUsed, r.Status)
	assert.Equal(t, 1, v.SlotCounts["10:00"], "used reservation keeps its place")

	_, err = v.MarkReservation("r1", ReservationUsed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// a used reservation frees the user to book again
	_, err = v.BookSlot("r2", "alice", "10:00", t0)
	require.NoError(t, err)

	_, err = v.MarkReservation("r1", ReservationReserved)
	assert.ErrorIs(t, err, ErrDuplicateActiveReservation)

	_, err = v.MarkReservation("nope", ReservationUsed)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestSlotAvailability(t *testing.T) {
	v, err := NewVenue("v1", "Booth", ModeTimeSlot, 2, []string{"11:00", "10:00"}, t0)
	require.NoError(t, err)
	require.NoError(t, v.SetAccepting(AcceptingOpen))
	_, err = v.BookSlot("r1", "alice", "11:00", t0)
	require.NoError(t, err)

	got := v.SlotAvailability()
	assert.Equal(t, []SlotAvailability{
		{Label: "10:00", Capacity: 2, Occupied: 0, Remaining: 2},
		{Label: "11:00", Capacity: 2, Occupied: 1, Remaining: 1},
	}, got)
}

func TestRecountAndReset(t *testing.T) {
	v := openVenue(t, ModeTimeSlot, 2)
	_, err := v.BookSlot("r1", "alice", "10:00", t0)
	require.NoError(t, err)

	v.SlotCounts["10:00"] = 7
	assert.False(t, v.SlotCountsConsistent())
	v.RecountSlots()
	assert.True(t, v.SlotCountsConsistent())

	assert.Equal(t, 1, v.ResetReservations())
	assert.Empty(t, v.Reservations)
	assert.Empty(t, v.SlotCounts)
}
