package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/dto"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/service"
	"github.com/prohmpiriya/booth-rush/pkg/response"
)

// ReservationHandler handles time-slot reservation requests
type ReservationHandler struct {
	reservationService service.ReservationService
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationService service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// Slots handles GET /venues/:id/slots
func (h *ReservationHandler) Slots(c *gin.Context) {
	slots, err := h.reservationService.SlotAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, slots, len(slots))
}

// Book handles POST /venues/:id/reservations
func (h *ReservationHandler) Book(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	r, err := h.reservationService.BookSlot(c.Request.Context(), c.Param("id"), userID, req.SlotLabel)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, r)
}

// Cancel handles POST /venues/:id/reservations/cancel
func (h *ReservationHandler) Cancel(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	r, err := h.reservationService.CancelReservation(c.Request.Context(), c.Param("id"), userID, req.SlotLabel)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, r)
}

// MarkUsed handles POST /venues/:id/reservations/:reservation_id/use
func (h *ReservationHandler) MarkUsed(c *gin.Context) {
	r, err := h.reservationService.MarkUsed(c.Request.Context(), c.Param("id"), c.Param("reservation_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, r)
}

// MarkUnused handles POST /venues/:id/reservations/:reservation_id/unuse
func (h *ReservationHandler) MarkUnused(c *gin.Context) {
	r, err := h.reservationService.MarkUnused(c.Request.Context(), c.Param("id"), c.Param("reservation_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, r)
}

// List handles GET /venues/:id/reservations
func (h *ReservationHandler) List(c *gin.Context) {
	rs, err := h.reservationService.ListReservations(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, rs, len(rs))
}

// Mine handles GET /venues/:id/reservations/mine
func (h *ReservationHandler) Mine(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	rs, err := h.reservationService.UserReservations(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, rs, len(rs))
}
