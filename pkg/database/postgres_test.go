package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Empty(t, cfg.Password)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := &PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "booth", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=booth sslmode=require", cfg.DSN())
}

func TestNewPostgres_Unreachable(t *testing.T) {
	cfg := DefaultPostgresConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.MaxRetries = 0
	cfg.ConnectTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewPostgres(ctx, cfg)
	assert.Error(t, err)
}

func TestListen_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := DefaultPostgresConfig()
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	cfg.Password = os.Getenv("TEST_POSTGRES_PASSWORD")
	if cfg.Password == "" {
		cfg.Password = "postgres"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewPostgres(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	ch, err := Listen(ctx, db.Pool(), "booth_test_channel")
	require.NoError(t, err)

	_, err = db.Pool().Exec(ctx, "SELECT pg_notify('booth_test_channel', 'ping')")
	require.NoError(t, err)

	select {
	case n := <-ch:
		assert.Equal(t, "ping", n.Payload)
	case <-ctx.Done():
		t.Fatal("notification not received")
	}
}
