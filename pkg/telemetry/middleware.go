package telemetry

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HTTPTracerName names the tracer used for inbound requests
	HTTPTracerName = "booth-http"

	// TraceIDHeader echoes the trace id back to the caller
	TraceIDHeader = "X-Trace-ID"
)

// untracedPaths are probes and long-lived streams; a span per heartbeat or
// per SSE connection is noise
var untracedPaths = []string{"/health", "/ready"}

func traced(c *gin.Context) bool {
	route := c.FullPath()
	for _, p := range untracedPaths {
		if route == p {
			return false
		}
	}
	return !strings.HasSuffix(route, "/events")
}

// TracingMiddleware opens a server span per request, continuing any trace
// context carried in the headers. Routes with a venue id are tagged with it
// so a venue's traffic can be followed across requests.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(HTTPTracerName, trace.WithInstrumentationAttributes(semconv.ServiceName(serviceName)))

	return func(c *gin.Context) {
		if !traced(c) {
			c.Next()
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := []attribute.KeyValue{
			semconv.HTTPMethod(c.Request.Method),
			semconv.HTTPRoute(route),
			semconv.UserAgentOriginal(c.Request.UserAgent()),
		}
		if venueID := c.Param("id"); venueID != "" {
			attrs = append(attrs, attribute.String("venue_id", venueID))
		}
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			attrs = append(attrs, semconv.EnduserID(userID))
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Header(TraceIDHeader, sc.TraceID().String())
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		for _, e := range c.Errors {
			span.RecordError(e.Err)
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
