package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/dto"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/service"
	"github.com/prohmpiriya/booth-rush/pkg/response"
)

// AdminHandler handles bulk operations across every venue
type AdminHandler struct {
	venueService service.VenueService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(venueService service.VenueService) *AdminHandler {
	return &AdminHandler{venueService: venueService}
}

// SetAcceptingAll handles POST /admin/accepting
func (h *AdminHandler) SetAcceptingAll(c *gin.Context) {
	var req dto.SetAcceptingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	results, err := h.venueService.SetAcceptingAll(c.Request.Context(), domain.AcceptingState(req.State))
	h.writeBulk(c, results, err)
}

// ResetAllReservations handles POST /admin/reservations/reset
func (h *AdminHandler) ResetAllReservations(c *gin.Context) {
	results, err := h.venueService.ResetAllReservations(c.Request.Context())
	h.writeBulk(c, results, err)
}

// ResetAllQueues handles POST /admin/queues/reset
func (h *AdminHandler) ResetAllQueues(c *gin.Context) {
	results, err := h.venueService.ResetAllQueues(c.Request.Context())
	h.writeBulk(c, results, err)
}

// writeBulk reports per-venue results. Partial failure is 207 so callers
// can't mistake it for success.
func (h *AdminHandler) writeBulk(c *gin.Context, results []service.BulkResult, err error) {
	if results == nil && err != nil {
		handleError(c, err)
		return
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	body := dto.BulkResponse{
		Results:   results,
		Total:     len(results),
		Failed:    failed,
		Succeeded: len(results) - failed,
	}

	if failed > 0 {
		c.JSON(http.StatusMultiStatus, response.Response{Success: false, Data: body})
		return
	}
	response.Success(c, body)
}
