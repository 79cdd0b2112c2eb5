package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Config holds NATS connection configuration
type Config struct {
	URL           string
	Name          string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		URL:           nats.DefaultURL,
		Name:          "booth-service",
		SubjectPrefix: "booth",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
	}
}

// Bus publishes and subscribes on prefixed subjects
type Bus struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials NATS with reconnect settings from cfg
func Connect(cfg *Config) (*Bus, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Bus{conn: conn, prefix: cfg.SubjectPrefix}, nil
}

// Subject joins the bus prefix with the given parts
func (b *Bus) Subject(parts ...string) string {
	return JoinSubject(b.prefix, parts...)
}

// JoinSubject builds a dot-separated subject, skipping empty tokens
func JoinSubject(prefix string, parts ...string) string {
	tokens := make([]string, 0, len(parts)+1)
	if prefix != "" {
		tokens = append(tokens, prefix)
	}
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return strings.Join(tokens, ".")
}

// Publish sends data with optional headers. ctx is checked before sending;
// core NATS publish does not block on delivery.
func (b *Bus) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler for subject until the returned subscription is drained
func (b *Bus) Subscribe(subject string, handler func(*nats.Msg)) (*nats.Subscription, error) {
	sub, err := b.conn.Subscribe(subject, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// HealthCheck reports whether the connection is usable
func (b *Bus) HealthCheck() error {
	if b.conn == nil || !b.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

// Close drains in-flight messages then closes the connection
func (b *Bus) Close() error {
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}
