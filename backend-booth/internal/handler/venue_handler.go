package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/dto"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/repository"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/service"
	"github.com/prohmpiriya/booth-rush/pkg/response"
)

// VenueHandler handles venue administration requests
type VenueHandler struct {
	venueService service.VenueService
	heartbeat    time.Duration
}

// NewVenueHandler creates a new venue handler
func NewVenueHandler(venueService service.VenueService) *VenueHandler {
	return &VenueHandler{
		venueService: venueService,
		heartbeat:    15 * time.Second,
	}
}

// CreateVenue handles POST /venues
func (h *VenueHandler) CreateVenue(c *gin.Context) {
	var req dto.CreateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := h.venueService.CreateVenue(c.Request.Context(), service.CreateVenueInput{
		ID:              req.ID,
		Name:            req.Name,
		Mode:            domain.Mode(req.Mode),
		CapacityPerSlot: req.CapacityPerSlot,
		TimeSlots:       req.TimeSlots,
		Accepting:       domain.AcceptingState(req.Accepting),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, dto.FromVenue(v))
}

// ListVenues handles GET /venues
func (h *VenueHandler) ListVenues(c *gin.Context) {
	vs, err := h.venueService.ListVenues(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, dto.FromVenues(vs), len(vs))
}

// GetVenue handles GET /venues/:id
func (h *VenueHandler) GetVenue(c *gin.Context) {
	v, err := h.venueService.GetVenue(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.FromVenue(v))
}

// DeleteVenue handles DELETE /venues/:id
func (h *VenueHandler) DeleteVenue(c *gin.Context) {
	if err := h.venueService.DeleteVenue(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"venue_id": c.Param("id"), "deleted": true})
}

// UpdateSettings handles PATCH /venues/:id/settings
func (h *VenueHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := h.venueService.UpdateSettings(c.Request.Context(), c.Param("id"), req.ToSettings())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.FromVenue(v))
}

// SetAccepting handles PUT /venues/:id/accepting
func (h *VenueHandler) SetAccepting(c *gin.Context) {
	var req dto.SetAcceptingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := h.venueService.SetAccepting(c.Request.Context(), c.Param("id"), domain.AcceptingState(req.State))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.FromVenue(v))
}

// Menu handles GET /venues/:id/menu
func (h *VenueHandler) Menu(c *gin.Context) {
	items, err := h.venueService.Menu(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, items, len(items))
}

// UpsertMenuItem handles POST /venues/:id/menu and PUT /venues/:id/menu/:item_id
func (h *VenueHandler) UpsertMenuItem(c *gin.Context) {
	var req dto.MenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	item, created, err := h.venueService.UpsertMenuItem(c.Request.Context(), c.Param("id"), req.ToMenuItem(c.Param("item_id")))
	if err != nil {
		handleError(c, err)
		return
	}
	if created {
		response.Created(c, item)
		return
	}
	response.Success(c, item)
}

// CorrectStock handles PUT /venues/:id/menu/:item_id/stock
func (h *VenueHandler) CorrectStock(c *gin.Context) {
	var req dto.CorrectStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	item, err := h.venueService.CorrectStock(c.Request.Context(), c.Param("id"), c.Param("item_id"), *req.Stock)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, item)
}

// RemoveMenuItem handles DELETE /venues/:id/menu/:item_id
func (h *VenueHandler) RemoveMenuItem(c *gin.Context) {
	if err := h.venueService.RemoveMenuItem(c.Request.Context(), c.Param("id"), c.Param("item_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"item_id": c.Param("item_id"), "deleted": true})
}

// ResetReservations handles POST /venues/:id/reservations/reset
func (h *VenueHandler) ResetReservations(c *gin.Context) {
	n, err := h.venueService.ResetReservations(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.ResetResponse{VenueID: c.Param("id"), Affected: n})
}

// ResetQueue handles POST /venues/:id/queue/reset
func (h *VenueHandler) ResetQueue(c *gin.Context) {
	n, err := h.venueService.ResetQueue(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.ResetResponse{VenueID: c.Param("id"), Affected: n})
}

// Events handles GET /venues/:id/events as a server-sent event stream.
// The first event is the current snapshot; a deletion ends the stream.
func (h *VenueHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	venueID := c.Param("id")

	feed, err := h.venueService.Subscribe(ctx, venueID)
	if err != nil {
		handleError(c, err)
		return
	}
	current, err := h.venueService.GetVenue(ctx, venueID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("snapshot", dto.FromVenue(current))
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case change, ok := <-feed:
			if !ok {
				return false
			}
			payload := gin.H{
				"venue_id": change.VenueID,
				"version":  change.Version,
			}
			if change.Venue != nil {
				payload["venue"] = dto.FromVenue(change.Venue)
			}
			c.SSEvent(string(change.Kind), payload)
			return change.Kind != repository.ChangeDeleted
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"time": time.Now().UTC()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
