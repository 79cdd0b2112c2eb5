package domain

import (
	"fmt"
	"sort"
	"strings"
)

// MaxUnitPrice bounds a catalog price in minor units
const MaxUnitPrice int64 = 1_000_000_000_000

// MenuItem is a stock-limited catalog entry. UnitPrice is in minor units.
// A PerOrderLimit of 0 means no per-order limit.
type MenuItem struct {
	ID            string `json:"id"`
	VenueID       string `json:"venue_id"`
	Name          string `json:"name"`
	UnitPrice     int64  `json:"unit_price"`
	Stock         int    `json:"stock"`
	PerOrderLimit int    `json:"per_order_limit"`
}

// Validate checks the item's fields
func (m *MenuItem) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrInvalidMenuItemID
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMenuItem)
	}
	if m.UnitPrice < 0 || m.UnitPrice > MaxUnitPrice {
		return ErrInvalidUnitPrice
	}
	if m.Stock < 0 {
		return ErrInvalidStock
	}
	if m.PerOrderLimit < 0 {
		return ErrInvalidPerOrderLimit
	}
	return nil
}

// UpsertMenuItem adds a new item or updates name, price and limit of an
// existing one. Stock of an existing item only moves via CorrectStock.
func (v *Venue) UpsertMenuItem(item MenuItem) (*MenuItem, bool, error) {
	if err := item.Validate(); err != nil {
		return nil, false, err
	}

	if existing, ok := v.MenuItems[item.ID]; ok {
		existing.Name = strings.TrimSpace(item.Name)
		existing.UnitPrice = item.UnitPrice
		existing.PerOrderLimit = item.PerOrderLimit
		return existing, false, nil
	}

	item.VenueID = v.ID
	item.Name = strings.TrimSpace(item.Name)
	v.MenuItems[item.ID] = &item
	return &item, true, nil
}

// CorrectStock sets an item's stock to an absolute value
func (v *Venue) CorrectStock(itemID string, stock int) (*MenuItem, error) {
	if stock < 0 {
		return nil, ErrInvalidStock
	}
	item, ok := v.MenuItems[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMenuItemNotFound, itemID)
	}
	item.Stock = stock
	return item, nil
}

// RemoveMenuItem deletes an item. Orders keep their line snapshots.
func (v *Venue) RemoveMenuItem(itemID string) error {
	if _, ok := v.MenuItems[itemID]; !ok {
		return fmt.Errorf("%w: %s", ErrMenuItemNotFound, itemID)
	}
	delete(v.MenuItems, itemID)
	return nil
}

// Menu returns catalog items sorted by name
func (v *Venue) Menu() []*MenuItem {
	out := make([]*MenuItem, 0, len(v.MenuItems))
	for _, it := range v.MenuItems {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}
