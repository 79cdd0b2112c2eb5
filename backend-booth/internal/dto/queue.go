package dto

import (
	"time"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
)

// JoinQueueRequest represents request to join a venue queue
type JoinQueueRequest struct {
	PartySize int `json:"party_size"`
}

// ResolveTicketRequest represents request to close a ticket
type ResolveTicketRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

// TicketResponse is a queue ticket as shown to guests and staff
type TicketResponse struct {
	Number     int        `json:"number"`
	Display    string     `json:"display"`
	UserID     string     `json:"user_id"`
	PartySize  int        `json:"party_size"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	CalledAt   *time.Time `json:"called_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// FromTicket builds a TicketResponse
func FromTicket(t *domain.QueueTicket) *TicketResponse {
	return &TicketResponse{
		Number:     t.Number,
		Display:    t.Display(),
		UserID:     t.UserID,
		PartySize:  t.PartySize,
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt,
		CalledAt:   t.CalledAt,
		ResolvedAt: t.ResolvedAt,
	}
}

// FromTickets builds a list of TicketResponse
func FromTickets(ts []*domain.QueueTicket) []*TicketResponse {
	out := make([]*TicketResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, FromTicket(t))
	}
	return out
}

// QueuePositionResponse is the caller's place in the queue
type QueuePositionResponse struct {
	Ticket *TicketResponse `json:"ticket"`
	Ahead  int             `json:"ahead"`
}
