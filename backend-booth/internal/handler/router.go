package handler

import "github.com/gin-gonic/gin"

// Handlers groups every HTTP handler of the booth service
type Handlers struct {
	Health      *HealthHandler
	Venue       *VenueHandler
	Reservation *ReservationHandler
	Queue       *QueueHandler
	Order       *OrderHandler
	Admin       *AdminHandler
}

// Register mounts all routes. mutating runs before every state-changing
// handler (idempotency keys, for example).
func (h *Handlers) Register(r *gin.Engine, mutating ...gin.HandlerFunc) {
	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)

	write := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, mutating...), fn)
	}

	v1 := r.Group("/api/v1")

	venues := v1.Group("/venues")
	{
		venues.POST("", write(h.Venue.CreateVenue)...)
		venues.GET("", h.Venue.ListVenues)
		venues.GET("/:id", h.Venue.GetVenue)
		venues.DELETE("/:id", write(h.Venue.DeleteVenue)...)
		venues.PATCH("/:id/settings", write(h.Venue.UpdateSettings)...)
		venues.PUT("/:id/accepting", write(h.Venue.SetAccepting)...)
		venues.GET("/:id/events", h.Venue.Events)

		venues.GET("/:id/menu", h.Venue.Menu)
		venues.POST("/:id/menu", write(h.Venue.UpsertMenuItem)...)
		venues.PUT("/:id/menu/:item_id", write(h.Venue.UpsertMenuItem)...)
		venues.PUT("/:id/menu/:item_id/stock", write(h.Venue.CorrectStock)...)
		venues.DELETE("/:id/menu/:item_id", write(h.Venue.RemoveMenuItem)...)

		venues.GET("/:id/slots", h.Reservation.Slots)
		venues.GET("/:id/reservations", h.Reservation.List)
		venues.GET("/:id/reservations/mine", h.Reservation.Mine)
		venues.POST("/:id/reservations", write(h.Reservation.Book)...)
		venues.POST("/:id/reservations/cancel", write(h.Reservation.Cancel)...)
		venues.POST("/:id/reservations/reset", write(h.Venue.ResetReservations)...)
		venues.POST("/:id/reservations/:reservation_id/use", write(h.Reservation.MarkUsed)...)
		venues.POST("/:id/reservations/:reservation_id/unuse", write(h.Reservation.MarkUnused)...)

		venues.GET("/:id/queue", h.Queue.Board)
		venues.GET("/:id/queue/me", h.Queue.Position)
		venues.GET("/:id/queue/history", h.Queue.History)
		venues.POST("/:id/queue", write(h.Queue.Join)...)
		venues.POST("/:id/queue/call-next", write(h.Queue.CallNext)...)
		venues.POST("/:id/queue/reset", write(h.Venue.ResetQueue)...)
		venues.POST("/:id/queue/:number/call", write(h.Queue.Call)...)
		venues.POST("/:id/queue/:number/resolve", write(h.Queue.Resolve)...)

		venues.GET("/:id/orders", h.Order.Active)
		venues.GET("/:id/orders/overdue", h.Order.Overdue)
		venues.GET("/:id/orders/mine", h.Order.Mine)
		venues.GET("/:id/orders/:order_id", h.Order.Get)
		venues.POST("/:id/orders", write(h.Order.Place)...)
		venues.POST("/:id/orders/:order_id/advance", write(h.Order.Advance)...)
		venues.POST("/:id/orders/:order_id/cancel", write(h.Order.Cancel)...)
	}

	admin := v1.Group("/admin")
	{
		admin.POST("/accepting", write(h.Admin.SetAcceptingAll)...)
		admin.POST("/reservations/reset", write(h.Admin.ResetAllReservations)...)
		admin.POST("/queues/reset", write(h.Admin.ResetAllQueues)...)
	}
}
