package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderOrdered        OrderStatus = "ordered"
	OrderPaying         OrderStatus = "paying"
	OrderCompleted      OrderStatus = "completed"
	OrderCancelled      OrderStatus = "cancelled"
	OrderForceCancelled OrderStatus = "force_cancelled"
)

// Active reports whether the order still holds stock
func (s OrderStatus) Active() bool {
	return s == OrderOrdered || s == OrderPaying
}

// OrderLine is a snapshot of one catalog item at order time
type OrderLine struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

// Order is a stock-holding purchase at a venue
type Order struct {
	ID          string      `json:"id"`
	VenueID     string      `json:"venue_id"`
	UserID      string      `json:"user_id"`
	Number      int         `json:"number"`
	Lines       []OrderLine `json:"lines"`
	TotalAmount int64       `json:"total_amount"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
}

// Clone deep-copies the order
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	if o.ResolvedAt != nil {
		t := *o.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// Display returns the zero-padded order number
func (o *Order) Display() string {
	return FormatTicketNumber(o.Number)
}

// IsOverdue reports whether an active order has aged past expiry at now
func (o *Order) IsOverdue(now time.Time, expiry time.Duration) bool {
	return o.Status.Active() && now.Sub(o.CreatedAt) >= expiry
}

// OrderView pairs an order with its overdue classification at read time
type OrderView struct {
	*Order
	Overdue bool `json:"overdue"`
}

// ValidateOrderLines checks the requested quantities before any transaction
func ValidateOrderLines(lines map[string]int) error {
	if len(lines) == 0 {
		return ErrEmptyOrder
	}
	for id, qty := range lines {
		if id == "" {
			return ErrInvalidMenuItemID
		}
		if qty <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidQuantity, id)
		}
	}
	return nil
}

// NextOrderNumber is one past the highest order number at the venue
func (v *Venue) NextOrderNumber() int {
	highest := v.LastOrderNumber
	for _, o := range v.Orders {
		if o.Number > highest {
			highest = o.Number
		}
	}
	return highest + 1
}

// PlaceOrder checks every line then decrements stock for all of them; any
// failing line leaves the catalog untouched
func (v *Venue) PlaceOrder(id, userID string, lines map[string]int, now time.Time) (*Order, error) {
	if err := v.AllowsOrders(); err != nil {
		return nil, err
	}
	if err := ValidateOrderLines(lines); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for itemID := range lines {
		ids = append(ids, itemID)
	}
	sort.Strings(ids)

	orderLines := make([]OrderLine, 0, len(ids))
	var total int64
	for _, itemID := range ids {
		qty := lines[itemID]
		item, ok := v.MenuItems[itemID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMenuItemNotFound, itemID)
		}
		if item.PerOrderLimit > 0 && qty > item.PerOrderLimit {
			return nil, fmt.Errorf("%w: %s allows %d", ErrQuantityExceedsPerOrderLimit, item.Name, item.PerOrderLimit)
		}
		if qty > item.Stock {
			return nil, fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, item.Name, item.Stock)
		}
		if item.UnitPrice > 0 && int64(qty) > (math.MaxInt64-total)/item.UnitPrice {
			return nil, fmt.Errorf("%w: %s", ErrOrderTotalOverflow, item.Name)
		}
		orderLines = append(orderLines, OrderLine{
			MenuItemID: item.ID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   qty,
		})
		total += item.UnitPrice * int64(qty)
	}

	for _, l := range orderLines {
		v.MenuItems[l.MenuItemID].Stock -= l.Quantity
	}

	o := &Order{
		ID:          id,
		VenueID:     v.ID,
		UserID:      userID,
		Number:      v.NextOrderNumber(),
		Lines:       orderLines,
		TotalAmount: total,
		Status:      OrderOrdered,
		CreatedAt:   now,
	}
	v.Orders[id] = o
	v.LastOrderNumber = o.Number
	return o, nil
}

// AdvanceOrder moves ordered to paying, or paying to completed
func (v *Venue) AdvanceOrder(orderID string, to OrderStatus, now time.Time) (*Order, error) {
	if to != OrderPaying && to != OrderCompleted {
		return nil, ErrInvalidOrderTarget
	}
	o, ok := v.Orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	switch {
	case o.Status == OrderOrdered && to == OrderPaying:
	case o.Status == OrderPaying && to == OrderCompleted:
		resolved := now
		o.ResolvedAt = &resolved
	default:
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	return o, nil
}

// CancelOrder resolves an active order and returns its quantities to stock.
// Lines whose item left the catalog are not restocked.
func (v *Venue) CancelOrder(orderID string, forced bool, now time.Time) (*Order, error) {
	o, ok := v.Orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if !o.Status.Active() {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}

	for _, l := range o.Lines {
		if item, ok := v.MenuItems[l.MenuItemID]; ok {
			item.Stock += l.Quantity
		}
	}

	o.Status = OrderCancelled
	if forced {
		o.Status = OrderForceCancelled
	}
	resolved := now
	o.ResolvedAt = &resolved
	return o, nil
}

// ActiveOrders lists ordered and paying orders by number
func (v *Venue) ActiveOrders(now time.Time, expiry time.Duration) []OrderView {
	return v.orderViews(now, expiry, func(o *Order) bool { return o.Status.Active() })
}

// OverdueOrders lists active orders past expiry at now
func (v *Venue) OverdueOrders(now time.Time, expiry time.Duration) []OrderView {
	return v.orderViews(now, expiry, func(o *Order) bool { return o.IsOverdue(now, expiry) })
}

// UserOrders lists every order placed by userID
func (v *Venue) UserOrders(userID string, now time.Time, expiry time.Duration) []OrderView {
	return v.orderViews(now, expiry, func(o *Order) bool { return o.UserID == userID })
}

func (v *Venue) orderViews(now time.Time, expiry time.Duration, keep func(*Order) bool) []OrderView {
	var out []OrderView
	for _, o := range v.Orders {
		if keep(o) {
			out = append(out, OrderView{Order: o, Overdue: o.IsOverdue(now, expiry)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// ReservedQuantity sums the quantity of itemID held by active orders
func (v *Venue) ReservedQuantity(itemID string) int {
	n := 0
	for _, o := range v.Orders {
		if !o.Status.Active() {
			continue
		}
		for _, l := range o.Lines {
			if l.MenuItemID == itemID {
				n += l.Quantity
			}
		}
	}
	return n
}
