package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderVenue(t *testing.T) *Venue {
	t.Helper()
	v := openVenue(t, ModeOrder, 0)
	_, _, err := v.UpsertMenuItem(MenuItem{ID: "crepe", Name: "Crepe", UnitPrice: 450, Stock: 3, PerOrderLimit: 5})
	require.NoError(t, err)
	_, _, err = v.UpsertMenuItem(MenuItem{ID: "tea", Name: "Tea", UnitPrice: 150, Stock: 10, PerOrderLimit: 2})
	require.NoError(t, err)
	return v
}

func conserved(v *Venue, baseline map[string]int) bool {
	for id, base := range baseline {
		if v.MenuItems[id].Stock+v.ReservedQuantity(id) != base {
			return false
		}
	}
	return true
}

func TestPlaceOrder_StockScenario(t *testing.T) {
	v := orderVenue(t)

	o, err := v.PlaceOrder("o1", "alice", map[string]int{"crepe": 3}, t0)
	require.NoError(t, err)
	assert.Equal(t, 0, v.MenuItems["crepe"].Stock)
	assert.Equal(t, int64(1350), o.TotalAmount)
	assert.Equal(t, 1, o.Number)
	assert.Equal(t, OrderOrdered, o.Status)

	_, err = v.PlaceOrder("o2", "bob", map[string]int{"crepe": 1}, t0)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Len(t, v.Orders, 1)
}

func TestPlaceOrder_AllOrNothing(t *testing.T) {
	v := orderVenue(t)

	_, err := v.PlaceOrder("o1", "alice", map[string]int{"crepe": 1, "tea": 3}, t0)
	assert.ErrorIs(t, err, ErrQuantityExceedsPerOrderLimit)
	assert.Equal(t, 3, v.MenuItems["crepe"].Stock)
	assert.Equal(t, 10, v.MenuItems["tea"].Stock)

	_, err = v.PlaceOrder("o1", "alice", map[string]int{"crepe": 1, "ghost": 1}, t0)
	assert.ErrorIs(t, err, ErrMenuItemNotFound)
	assert.Equal(t, 3, v.MenuItems["crepe"].Stock)

	_, err = v.PlaceOrder("o1", "alice", map[string]int{}, t0)
	assert.ErrorIs(t, err, ErrEmptyOrder)
	_, err = v.PlaceOrder("o1", "alice", map[string]int{"crepe": 0}, t0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestPlaceOrder_ZeroPerOrderLimitIsUnlimited(t *testing.T) {
	v := openVenue(t, ModeOrder, 0)
	_, _, err := v.UpsertMenuItem(MenuItem{ID: "mochi", Name: "Mochi", UnitPrice: 100, Stock: 10})
	require.NoError(t, err)

	o, err := v.PlaceOrder("o1", "alice", map[string]int{"mochi": 7}, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(700), o.TotalAmount)
	assert.Equal(t, 3, v.MenuItems["mochi"].Stock)
}

func TestPlaceOrder_TotalOverflow(t *testing.T) {
	v := openVenue(t, ModeOrder, 0)

	_, _, err := v.UpsertMenuItem(MenuItem{ID: "gold", Name: "Gold", UnitPrice: MaxUnitPrice + 1, Stock: 1})
	assert.ErrorIs(t, err, ErrInvalidUnitPrice)

	_, _, err = v.UpsertMenuItem(MenuItem{ID: "gold", Name: "Gold", UnitPrice: MaxUnitPrice, Stock: 10_000_000})
	require.NoError(t, err)
	_, _, err = v.UpsertMenuItem(MenuItem{ID: "tea", Name: "Tea", UnitPrice: 150, Stock: 10})
	require.NoError(t, err)

	_, err = v.PlaceOrder("o1", "alice", map[string]int{"gold": 10_000_000, "tea": 1}, t0)
	assert.ErrorIs(t, err, ErrOrderTotalOverflow)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 10_000_000, v.MenuItems["gold"].Stock)
	assert.Equal(t, 10, v.MenuItems["tea"].Stock)
	assert.Empty(t, v.Orders)

	o, err := v.PlaceOrder("o2", "alice", map[string]int{"gold": 9_000_000}, t0)
	require.NoError(t, err)
	assert.Equal(t, MaxUnitPrice*9_000_000, o.TotalAmount)
}

func TestPlaceOrder_TotalUsesSnapshotPrice(t *testing.T) {
	v := orderVenue(t)
	o, err := v.PlaceOrder("o1", "alice", map[string]int{"crepe": 1, "tea": 2}, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(750), o.TotalAmount)

	_, _, err = v.UpsertMenuItem(MenuItem{ID: "tea", Name: "Tea", UnitPrice: 999, Stock: 0, PerOrderLimit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(750), v.Orders["o1"].TotalAmount)
	assert.Equal(t, int64(150), v.Orders["o1"].Lines[1].UnitPrice)
	assert.Equal(t, 8, v.MenuItems["tea"].Stock, "upsert leaves stock alone")
}

func TestAdvanceOrder(t *testing.T) {
	v := orderVenue(t)
	_, err := v.PlaceOrder("o1", "alice", map[string]int{"tea": 1}, t0)
	require.NoError(t, err)

	_, err = v.AdvanceOrder("o1", OrderCompleted, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	o, err := v.AdvanceOrder("o1", OrderPaying, t0)
	require.NoError(t, err)
	assert.Equal(t, OrderPaying, o.Status)
	assert.Nil(t, o.ResolvedAt)

	o, err = v.AdvanceOrder("o1", OrderCompleted, t0)
	require.NoError(t, err)
	assert.Equal(t, OrderCompleted, o.Status)
	assert.NotNil(t, o.ResolvedAt)

	_, err = v.AdvanceOrder("o1", OrderCancelled, t0)
	assert.ErrorIs(t, err, ErrInvalidOrderTarget)
	_, err = v.AdvanceOrder("nope", OrderPaying, t0)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelOrder_RestoresStockAndIsTerminal(t *testing.T) {
	v := orderVenue(t)
	baseline := map[string]int{"crepe": 3, "tea": 10}

	_, err := v.PlaceOrder("o1", "alice", map[string]int{"crepe": 2, "tea": 2}, t0)
	require.NoError(t, err)
	assert.True(t, conserved(v, baseline))

	o, err := v.CancelOrder("o1", false, t0)
	require.NoError(t, err)
	assert.Equal(t, OrderCancelled, o.Status)
	assert.Equal(t, 3, v.MenuItems["crepe"].Stock)
	assert.True(t, conserved(v, baseline))

	_, err = v.CancelOrder("o1", true, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 3, v.MenuItems["crepe"].Stock)

	_, err = v.PlaceOrder("o2", "bob", map[string]int{"tea": 1}, t0)
	require.NoError(t, err)
	_, err = v.AdvanceOrder("o2", OrderPaying, t0)
	require.NoError(t, err)
	_, err = v.AdvanceOrder("o2", OrderCompleted, t0)
	require.NoError(t, err)

	_, err = v.CancelOrder("o2", true, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 9, v.MenuItems["tea"].Stock)
}

func TestCancelOrder_SkipsRemovedItems(t *testing.T) {
	v := orderVenue(t)
	_, err := v.PlaceOrder("o1", "alice", map[string]int{"crepe": 1, "tea": 1}, t0)
	require.NoError(t, err)
	require.NoError(t, v.RemoveMenuItem("crepe"))

	o, err := v.CancelOrder("o1", true, t0)
	require.NoError(t, err)
	assert.Equal(t, OrderForceCancelled, o.Status)
	assert.Equal(t, 10, v.MenuItems["tea"].Stock)
	assert.NotContains(t, v.MenuItems, "crepe")
}

func TestOrderExpiry_ComputedOnRead(t *testing.T) {
	v := orderVenue(t)
	o, err := v.PlaceOrder("o1", "alice", map[string]int{"tea": 1}, t0)
	require.NoError(t, err)
	before := *o

	at29 := t0.Add(29 * time.Minute)
	at31 := t0.Add(31 * time.Minute)

	assert.False(t, o.IsOverdue(at29, DefaultOrderExpiry))
	assert.Empty(t, v.OverdueOrders(at29, DefaultOrderExpiry))

	overdue := v.OverdueOrders(at31, DefaultOrderExpiry)
	require.Len(t, overdue, 1)
	assert.True(t, overdue[0].Overdue)
	assert.True(t, o.IsOverdue(t0.Add(DefaultOrderExpiry), DefaultOrderExpiry))

	assert.Equal(t, before.Status, v.Orders["o1"].Status)
	assert.Nil(t, v.Orders["o1"].ResolvedAt)

	// force cancel is permitted before the threshold as well
	_, err = v.CancelOrder("o1", true, at29)
	require.NoError(t, err)
	assert.Empty(t, v.OverdueOrders(at31, DefaultOrderExpiry))
}

func TestOrderViews(t *testing.T) {
	v := orderVenue(t)
	_, err := v.PlaceOrder("o1", "alice", map[string]int{"tea": 1}, t0)
	require.NoError(t, err)
	_, err = v.PlaceOrder("o2", "bob", map[string]int{"tea": 1}, t0.Add(time.Minute))
	require.NoError(t, err)
	_, err = v.PlaceOrder("o3", "alice", map[string]int{"crepe": 1}, t0.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = v.CancelOrder("o2", false, t0)
	require.NoError(t, err)

	active := v.ActiveOrders(t0, DefaultOrderExpiry)
	require.Len(t, active, 2)
	assert.Equal(t, 1, active[0].Number)
	assert.Equal(t, 3, active[1].Number)

	mine := v.UserOrders("alice", t0, DefaultOrderExpiry)
	assert.Len(t, mine, 2)
	assert.Equal(t, "000003", mine[1].Display())
}

func TestMenuAdmin(t *testing.T) {
	v := orderVenue(t)

	_, err := v.CorrectStock("crepe", -1)
	assert.ErrorIs(t, err, ErrInvalidStock)
	it, err := v.CorrectStock("crepe", 12)
	require.NoError(t, err)
	assert.Equal(t, 12, it.Stock)

	_, err = v.CorrectStock("ghost", 1)
	assert.ErrorIs(t, err, ErrMenuItemNotFound)

	_, _, err = v.UpsertMenuItem(MenuItem{ID: "x", Name: "", UnitPrice: 1})
	assert.ErrorIs(t, err, ErrInvalidMenuItem)
	_, _, err = v.UpsertMenuItem(MenuItem{ID: "x", Name: "X", UnitPrice: -1})
	assert.ErrorIs(t, err, ErrInvalidUnitPrice)

	_, created, err := v.UpsertMenuItem(MenuItem{ID: "x", Name: "Waffle", UnitPrice: 300, Stock: 4})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "v1", v.MenuItems["x"].VenueID)

	menu := v.Menu()
	assert.Equal(t, []string{"Crepe", "Tea", "Waffle"}, []string{menu[0].Name, menu[1].Name, menu[2].Name})

	assert.ErrorIs(t, v.RemoveMenuItem("ghost"), ErrMenuItemNotFound)
}
