package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "mongodb://localhost:27017", cfg.URI)
	assert.Equal(t, "booth", cfg.Database)
}

func TestConnect_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := DefaultConfig()
	if uri := os.Getenv("TEST_MONGO_URI"); uri != "" {
		cfg.URI = uri
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, cfg)
	require.NoError(t, err)
	defer client.Close(context.Background())

	assert.NoError(t, client.HealthCheck(ctx))
	assert.Equal(t, "booth", client.Database().Name())
}
