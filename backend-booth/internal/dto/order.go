package dto

import (
	"time"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
)

// OrderLineRequest is one requested catalog line
type OrderLineRequest struct {
	MenuItemID string `json:"menu_item_id" binding:"required"`
	Quantity   int    `json:"quantity"`
}

// PlaceOrderRequest represents request to place an order
type PlaceOrderRequest struct {
	Lines []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToLines merges repeated items into one quantity per item
func (r *PlaceOrderRequest) ToLines() map[string]int {
	lines := make(map[string]int, len(r.Lines))
	for _, l := range r.Lines {
		lines[l.MenuItemID] += l.Quantity
	}
	return lines
}

// AdvanceOrderRequest represents request to move an order forward
type AdvanceOrderRequest struct {
	Status string `json:"status" binding:"required"`
}

// CancelOrderRequest represents request to cancel an order
type CancelOrderRequest struct {
	Forced bool `json:"forced"`
}

// OrderLineResponse is a priced order line
type OrderLineResponse struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	Subtotal   int64  `json:"subtotal"`
}

// OrderResponse is an order with its on-read overdue flag
type OrderResponse struct {
	ID          string              `json:"id"`
	Number      int                 `json:"number"`
	Display     string              `json:"display"`
	UserID      string              `json:"user_id"`
	Lines       []OrderLineResponse `json:"lines"`
	TotalAmount int64               `json:"total_amount"`
	Status      string              `json:"status"`
	Overdue     bool                `json:"overdue"`
	CreatedAt   time.Time           `json:"created_at"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty"`
}

// FromOrder builds an OrderResponse
func FromOrder(o *domain.Order, overdue bool) *OrderResponse {
	lines := make([]OrderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineResponse{
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			Subtotal:   l.UnitPrice * int64(l.Quantity),
		})
	}
	return &OrderResponse{
		ID:          o.ID,
		Number:      o.Number,
		Display:     o.Display(),
		UserID:      o.UserID,
		Lines:       lines,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		Overdue:     overdue,
		CreatedAt:   o.CreatedAt,
		ResolvedAt:  o.ResolvedAt,
	}
}

// FromOrderViews builds a list of OrderResponse
func FromOrderViews(vs []domain.OrderView) []*OrderResponse {
	out := make([]*OrderResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, FromOrder(v.Order, v.Overdue))
	}
	return out
}
