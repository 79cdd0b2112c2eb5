package di

import (
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/engine"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/handler"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/repository"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/service"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/prohmpiriya/booth-rush/pkg/retry"
)

// Container holds all dependencies for the booth service
type Container struct {
	// Infrastructure
	Store          repository.VenueStore
	EventPublisher service.EventPublisher
	Coordinator    *engine.Coordinator

	// Services
	VenueService       service.VenueService
	ReservationService service.ReservationService
	QueueService       service.QueueService
	OrderService       service.OrderService

	// Handlers
	Handlers *handler.Handlers
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	ServiceName    string
	Version        string
	Store          repository.VenueStore
	EventPublisher service.EventPublisher
	Clock          domain.Clock
	Retry          *retry.Config
	ServiceConfig  *service.Config
	HealthChecks   map[string]handler.HealthCheck
	Logger         *logger.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	publisher := cfg.EventPublisher
	if publisher == nil {
		publisher = service.NewNoOpEventPublisher()
	}

	c := &Container{
		Store:          cfg.Store,
		EventPublisher: publisher,
	}

	c.Coordinator = engine.NewCoordinator(&engine.Config{
		Store:     cfg.Store,
		Clock:     cfg.Clock,
		Retry:     cfg.Retry,
		Publisher: publisher,
		Logger:    cfg.Logger,
	})

	svcCfg := &service.Config{}
	if cfg.ServiceConfig != nil {
		copied := *cfg.ServiceConfig
		svcCfg = &copied
	}
	if svcCfg.Publisher == nil {
		svcCfg.Publisher = publisher
	}
	if svcCfg.Logger == nil {
		svcCfg.Logger = cfg.Logger
	}

	// Initialize services
	c.VenueService = service.NewVenueService(c.Coordinator, svcCfg)
	c.ReservationService = service.NewReservationService(c.Coordinator, svcCfg)
	c.QueueService = service.NewQueueService(c.Coordinator, svcCfg)
	c.OrderService = service.NewOrderService(c.Coordinator, svcCfg)

	// Initialize handlers
	c.Handlers = &handler.Handlers{
		Health:      handler.NewHealthHandler(cfg.ServiceName, cfg.Version, cfg.HealthChecks),
		Venue:       handler.NewVenueHandler(c.VenueService),
		Reservation: handler.NewReservationHandler(c.ReservationService),
		Queue:       handler.NewQueueHandler(c.QueueService),
		Order:       handler.NewOrderHandler(c.OrderService),
		Admin:       handler.NewAdminHandler(c.VenueService),
	}

	return c
}
