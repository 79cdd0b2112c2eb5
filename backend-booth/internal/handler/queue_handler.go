package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/dto"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/service"
	"github.com/prohmpiriya/booth-rush/pkg/response"
)

// QueueHandler handles queue ticketing requests
type QueueHandler struct {
	queueService service.QueueService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queueService service.QueueService) *QueueHandler {
	return &QueueHandler{queueService: queueService}
}

// ticketNumber parses :number; non-numeric input becomes 0 and fails validation
func ticketNumber(c *gin.Context) int {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		return 0
	}
	return n
}

// Join handles POST /venues/:id/queue
func (h *QueueHandler) Join(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.JoinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	t, err := h.queueService.JoinQueue(c.Request.Context(), c.Param("id"), userID, req.PartySize)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, dto.FromTicket(t))
}

// Board handles GET /venues/:id/queue
func (h *QueueHandler) Board(c *gin.Context) {
	ts, err := h.queueService.QueueBoard(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, dto.FromTickets(ts), len(ts))
}

// History handles GET /venues/:id/queue/history
func (h *QueueHandler) History(c *gin.Context) {
	ts, err := h.queueService.TicketHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, dto.FromTickets(ts), len(ts))
}

// Position handles GET /venues/:id/queue/me
func (h *QueueHandler) Position(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	pos, err := h.queueService.TicketPosition(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.QueuePositionResponse{Ticket: dto.FromTicket(pos.Ticket), Ahead: pos.Ahead})
}

// Call handles POST /venues/:id/queue/:number/call
func (h *QueueHandler) Call(c *gin.Context) {
	t, err := h.queueService.CallTicket(c.Request.Context(), c.Param("id"), ticketNumber(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.FromTicket(t))
}

// CallNext handles POST /venues/:id/queue/call-next
func (h *QueueHandler) CallNext(c *gin.Context) {
	t, err := h.queueService.CallNext(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.FromTicket(t))
}

// Resolve handles POST /venues/:id/queue/:number/resolve
func (h *QueueHandler) Resolve(c *gin.Context) {
	var req dto.ResolveTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	t, err := h.queueService.ResolveTicket(c.Request.Context(), c.Param("id"), ticketNumber(c), domain.TicketStatus(req.Outcome))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.FromTicket(t))
}
