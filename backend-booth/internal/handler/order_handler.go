package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/dto"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/service"
	"github.com/prohmpiriya/booth-rush/pkg/response"
)

// OrderHandler handles order requests
type OrderHandler struct {
	orderService service.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// Place handles POST /venues/:id/orders
func (h *OrderHandler) Place(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	o, err := h.orderService.PlaceOrder(c.Request.Context(), c.Param("id"), userID, req.ToLines())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, dto.FromOrder(o, false))
}

// Active handles GET /venues/:id/orders
func (h *OrderHandler) Active(c *gin.Context) {
	orders, err := h.orderService.ActiveOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, dto.FromOrderViews(orders), len(orders))
}

// Overdue handles GET /venues/:id/orders/overdue
func (h *OrderHandler) Overdue(c *gin.Context) {
	orders, err := h.orderService.OverdueOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, dto.FromOrderViews(orders), len(orders))
}

// Mine handles GET /venues/:id/orders/mine
func (h *OrderHandler) Mine(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	orders, err := h.orderService.UserOrders(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, dto.FromOrderViews(orders), len(orders))
}

// Get handles GET /venues/:id/orders/:order_id
func (h *OrderHandler) Get(c *gin.Context) {
	v, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"), c.Param("order_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.FromOrder(v.Order, v.Overdue))
}

// Advance handles POST /venues/:id/orders/:order_id/advance
func (h *OrderHandler) Advance(c *gin.Context) {
	var req dto.AdvanceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	o, err := h.orderService.AdvanceOrder(c.Request.Context(), c.Param("id"), c.Param("order_id"), domain.OrderStatus(req.Status))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.FromOrder(o, false))
}

// Cancel handles POST /venues/:id/orders/:order_id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req dto.CancelOrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	o, err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id"), c.Param("order_id"), req.Forced)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, dto.FromOrder(o, false))
}
