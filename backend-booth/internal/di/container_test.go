package di

import (
	"context"
	"testing"
	"time"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/repository"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/service"
	"github.com/prohmpiriya/booth-rush/pkg/config"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "booth-rush", Environment: "test"},
		Store:  config.StoreConfig{Backend: config.StoreMemory},
		Events: config.EventsConfig{Backend: config.EventsNone},
		Engine: config.EngineConfig{
			MaxRetries:        4,
			RetryInitial:      time.Millisecond,
			RetryMax:          10 * time.Millisecond,
			OrderExpiry:       15 * time.Minute,
			TicketHistorySize: 10,
			BulkParallelism:   2,
		},
	}
}

func TestOpenInfrastructure_Memory(t *testing.T) {
	ctx := context.Background()
	infra, err := OpenInfrastructure(ctx, memoryConfig(), logger.Nop())
	require.NoError(t, err)
	defer infra.Close(ctx)

	assert.IsType(t, &repository.MemoryVenueStore{}, infra.Store)
	assert.IsType(t, &service.NoOpEventPublisher{}, infra.EventPublisher)
	assert.Nil(t, infra.Redis)
	require.Contains(t, infra.HealthChecks, "store")
	assert.NoError(t, infra.HealthChecks["store"](ctx))
}

func TestNewContainer_WiresServices(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	clock := domain.NewManualClock(time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC))

	c := NewContainer(&ContainerConfig{
		ServiceName:   "booth-service",
		Version:       "test",
		Store:         repository.NewMemoryVenueStore(),
		Clock:         clock,
		Retry:         RetryConfig(cfg.Engine),
		ServiceConfig: ServiceConfig(cfg.Engine),
		Logger:        logger.Nop(),
	})

	require.NotNil(t, c.Handlers)
	assert.NotNil(t, c.Handlers.Health)
	assert.NotNil(t, c.EventPublisher)

	_, err := c.VenueService.CreateVenue(ctx, service.CreateVenueInput{
		ID:        "tako",
		Name:      "Takoyaki",
		Mode:      domain.ModeQueue,
		Accepting: domain.AcceptingOpen,
	})
	require.NoError(t, err)

	ticket, err := c.QueueService.JoinQueue(ctx, "tako", "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, ticket.Number)
}

func TestRetryConfig(t *testing.T) {
	rc := RetryConfig(config.EngineConfig{MaxRetries: 3, RetryInitial: 2 * time.Millisecond})
	assert.Equal(t, 3, rc.MaxRetries)
	assert.Equal(t, 2*time.Millisecond, rc.InitialInterval)
	assert.Equal(t, 250*time.Millisecond, rc.MaxInterval)
}
