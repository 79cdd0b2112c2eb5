package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/prohmpiriya/booth-rush/pkg/middleware"
	"github.com/prohmpiriya/booth-rush/pkg/response"
	"go.uber.org/zap"
)

// errorCodes gives stable machine-readable codes to domain errors
var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrSlotFull, "SLOT_FULL"},
	{domain.ErrInsufficientStock, "INSUFFICIENT_STOCK"},
	{domain.ErrQuantityExceedsPerOrderLimit, "PER_ORDER_LIMIT_EXCEEDED"},
	{domain.ErrInvalidTransition, "INVALID_TRANSITION"},
	{domain.ErrDuplicateActiveReservation, "DUPLICATE_RESERVATION"},
	{domain.ErrDuplicateActiveTicket, "DUPLICATE_TICKET"},
	{domain.ErrVenueNotAcceptingRequests, "VENUE_NOT_ACCEPTING"},
	{domain.ErrVenueAlreadyExists, "VENUE_EXISTS"},
	{domain.ErrContendedResource, "CONTENDED"},
	{domain.ErrVenueNotFound, "VENUE_NOT_FOUND"},
	{domain.ErrReservationNotFound, "RESERVATION_NOT_FOUND"},
	{domain.ErrTicketNotFound, "TICKET_NOT_FOUND"},
	{domain.ErrMenuItemNotFound, "MENU_ITEM_NOT_FOUND"},
	{domain.ErrOrderNotFound, "ORDER_NOT_FOUND"},
	{domain.ErrInvalidPartySize, "INVALID_PARTY_SIZE"},
	{domain.ErrInvalidSlotLabel, "INVALID_SLOT"},
	{domain.ErrInvalidMode, "INVALID_MODE"},
	{domain.ErrInvalidAcceptingState, "INVALID_ACCEPTING_STATE"},
}

func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	if domain.IsValidationError(err) {
		return "VALIDATION_ERROR"
	}
	return "INTERNAL_ERROR"
}

// handleError writes the response for a failed operation
func handleError(c *gin.Context, err error) {
	code := errorCode(err)
	switch {
	case domain.IsValidationError(err):
		response.Error(c, http.StatusBadRequest, code, err.Error(), "")
	case domain.IsNotFoundError(err):
		response.Error(c, http.StatusNotFound, code, err.Error(), "")
	case domain.IsCapacityError(err), domain.IsStateError(err):
		response.Conflict(c, code, err.Error())
	case domain.IsContentionError(err):
		c.Header("Retry-After", "1")
		response.ServiceUnavailable(c, code, err.Error())
	default:
		logger.Get().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, code, "internal server error", "")
	}
}

func bindError(c *gin.Context, err error) {
	response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", err.Error())
}

// requireUser returns the caller identity or writes 401
func requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "X-User-ID header is required", "")
		return "", false
	}
	return userID, true
}
