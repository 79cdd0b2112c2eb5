package service

import (
	"strings"
	"time"

	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config contains settings shared by the venue services
type Config struct {
	Publisher         EventPublisher
	Logger            *logger.Logger
	OrderExpiry       time.Duration
	TicketHistorySize int
	BulkParallelism   int
}

func (c *Config) orderExpiry() time.Duration {
	if c == nil || c.OrderExpiry <= 0 {
		return domain.DefaultOrderExpiry
	}
	return c.OrderExpiry
}

func (c *Config) historySize() int {
	if c == nil || c.TicketHistorySize <= 0 {
		return domain.DefaultTicketHistorySize
	}
	return c.TicketHistorySize
}

func (c *Config) bulkParallelism() int {
	if c == nil || c.BulkParallelism <= 0 {
		return 8
	}
	return c.BulkParallelism
}

func (c *Config) emitter(name string) *eventEmitter {
	if c == nil {
		return newEventEmitter(nil, nil)
	}
	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}
	return newEventEmitter(c.Publisher, log.Named(name))
}

func requireID(id string, err error) error {
	if strings.TrimSpace(id) == "" {
		return err
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
