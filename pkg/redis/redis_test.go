package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestConfig returns config for testing
func getTestConfig() *Config {
	cfg := DefaultConfig()

	if host := os.Getenv("TEST_REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	if password := os.Getenv("TEST_REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}

	return cfg
}

func skipIfNoIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6379, cfg.Port)
	assert.Equal(t, 100, cfg.PoolSize)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestConfig_Addr(t *testing.T) {
	cfg := &Config{Host: "redis.example.com", Port: 6380}
	assert.Equal(t, "redis.example.com:6380", cfg.Addr())
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := &Config{
		Host:          "invalid-host-that-does-not-exist",
		Port:          9999,
		MaxRetries:    0,
		RetryInterval: 100 * time.Millisecond,
		DialTimeout:   500 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, cfg)
	assert.Error(t, err)
}

func TestComputeSHA1(t *testing.T) {
	sha := computeSHA1("return 1")

	assert.Len(t, sha, 40)
	assert.Equal(t, sha, computeSHA1("return 1"))
	assert.NotEqual(t, sha, computeSHA1("return 2"))
}

func TestIsNoScriptError(t *testing.T) {
	assert.False(t, isNoScriptError(nil))
	assert.False(t, isNoScriptError(errors.New("WRONGTYPE")))
	assert.True(t, isNoScriptError(errors.New("NOSCRIPT No matching script. Please use EVAL.")))
}

func TestClient_LuaScript_Integration(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client, err := NewClient(ctx, getTestConfig())
	require.NoError(t, err)
	defer client.Close()

	script := "return tonumber(ARGV[1]) + 1"
	info, err := client.LoadScript(ctx, "plus_one", script)
	require.NoError(t, err)
	assert.Equal(t, computeSHA1(script), info.SHA)

	sha, ok := client.GetScriptSHA("plus_one")
	require.True(t, ok)
	assert.Equal(t, info.SHA, sha)

	got, err := client.EvalWithFallback(ctx, "plus_one", script, nil, 41).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestClient_EvalWithFallback_ReloadsFlushedScript_Integration(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client, err := NewClient(ctx, getTestConfig())
	require.NoError(t, err)
	defer client.Close()

	script := fmt.Sprintf("return '%d'", time.Now().UnixNano())
	_, err = client.LoadScript(ctx, "flushable", script)
	require.NoError(t, err)
	require.NoError(t, client.Client().ScriptFlush(ctx).Err())

	_, err = client.EvalWithFallback(ctx, "flushable", script, nil).Result()
	assert.NoError(t, err)
}

func TestClient_PubSub_Integration(t *testing.T) {
	skipIfNoIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewClient(ctx, getTestConfig())
	require.NoError(t, err)
	defer client.Close()

	channel := fmt.Sprintf("test:pubsub:%d", time.Now().UnixNano())
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Publish(ctx, channel, "hello"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Payload)
}
