package kafka

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewProducer(context.Background(), &ProducerConfig{})
	assert.Error(t, err)
}

func TestToRecord(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := toRecord(&Message{
		Topic:     "booth-events",
		Key:       []byte("venue-1"),
		Value:     []byte(`{}`),
		Headers:   map[string]string{"event_type": "order.placed"},
		Timestamp: ts,
	})

	assert.Equal(t, "booth-events", rec.Topic)
	assert.Equal(t, []byte("venue-1"), rec.Key)
	assert.Equal(t, ts, rec.Timestamp)
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "event_type", rec.Headers[0].Key)
	assert.Equal(t, []byte("order.placed"), rec.Headers[0].Value)
}

func TestProducer_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	brokers := os.Getenv("TEST_KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	p, err := NewProducer(ctx, &ProducerConfig{Brokers: strings.Split(brokers, ","), ClientID: "booth-test"})
	require.NoError(t, err)
	defer p.Close()

	err = p.ProduceJSON(ctx, "booth-events-test", "venue-1", map[string]string{"hello": "world"}, nil)
	assert.NoError(t, err)
}
