package dto

import (
	"time"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
)

// CreateVenueRequest represents request to create a venue
type CreateVenueRequest struct {
	ID              string   `json:"id"`
	Name            string   `json:"name" binding:"required"`
	Mode            string   `json:"mode" binding:"required"`
	CapacityPerSlot int      `json:"capacity_per_slot"`
	TimeSlots       []string `json:"time_slots"`
	Accepting       string   `json:"accepting"`
}

// UpdateSettingsRequest is a partial settings update; omitted fields are unchanged
type UpdateSettingsRequest struct {
	Name            *string   `json:"name"`
	Mode            *string   `json:"mode"`
	CapacityPerSlot *int      `json:"capacity_per_slot"`
	TimeSlots       *[]string `json:"time_slots"`
}

// ToSettings converts the request to a domain settings patch
func (r *UpdateSettingsRequest) ToSettings() domain.Settings {
	s := domain.Settings{
		Name:            r.Name,
		CapacityPerSlot: r.CapacityPerSlot,
		TimeSlots:       r.TimeSlots,
	}
	if r.Mode != nil {
		m := domain.Mode(*r.Mode)
		s.Mode = &m
	}
	return s
}

// SetAcceptingRequest represents request to change the accepting state
type SetAcceptingRequest struct {
	State string `json:"state" binding:"required"`
}

// VenueResponse is the public summary of a venue
type VenueResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Mode            string    `json:"mode"`
	Accepting       string    `json:"accepting"`
	CapacityPerSlot int       `json:"capacity_per_slot"`
	TimeSlots       []string  `json:"time_slots"`
	MenuItems       int       `json:"menu_items"`
	ActiveTickets   int       `json:"active_tickets"`
	ActiveOrders    int       `json:"active_orders"`
	Reservations    int       `json:"reservations"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// FromVenue builds a VenueResponse
func FromVenue(v *domain.Venue) *VenueResponse {
	active := 0
	for _, o := range v.Orders {
		if o.Status.Active() {
			active++
		}
	}
	slots := v.TimeSlots
	if slots == nil {
		slots = []string{}
	}
	return &VenueResponse{
		ID:              v.ID,
		Name:            v.Name,
		Mode:            string(v.Mode),
		Accepting:       string(v.Accepting),
		CapacityPerSlot: v.CapacityPerSlot,
		TimeSlots:       slots,
		MenuItems:       len(v.MenuItems),
		ActiveTickets:   len(v.Tickets),
		ActiveOrders:    active,
		Reservations:    len(v.Reservations),
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

// FromVenues builds a list of VenueResponse
func FromVenues(vs []*domain.Venue) []*VenueResponse {
	out := make([]*VenueResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, FromVenue(v))
	}
	return out
}

// MenuItemRequest represents request to add or update a catalog item
type MenuItemRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name" binding:"required"`
	UnitPrice     int64  `json:"unit_price"`
	Stock         int    `json:"stock"`
	PerOrderLimit int    `json:"per_order_limit"`
}

// ToMenuItem converts the request to a domain item. A path id wins over the body.
func (r *MenuItemRequest) ToMenuItem(pathID string) domain.MenuItem {
	id := r.ID
	if pathID != "" {
		id = pathID
	}
	return domain.MenuItem{
		ID:            id,
		Name:          r.Name,
		UnitPrice:     r.UnitPrice,
		Stock:         r.Stock,
		PerOrderLimit: r.PerOrderLimit,
	}
}

// CorrectStockRequest sets an absolute stock value
type CorrectStockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

// ResetResponse reports how many entries a reset removed
type ResetResponse struct {
	VenueID  string `json:"venue_id"`
	Affected int    `json:"affected"`
}
