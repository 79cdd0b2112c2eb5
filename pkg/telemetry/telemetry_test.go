package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit_Disabled(t *testing.T) {
	tel, err := Init(context.Background(), &Config{ServiceName: "booth-test"})
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.NotNil(t, tel.Tracer())
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInit_NilConfig(t *testing.T) {
	tel, err := Init(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, tel.Tracer())
}

func TestStartSpan_NoTraceWhenDisabled(t *testing.T) {
	_, err := Init(context.Background(), &Config{ServiceName: "booth-test"})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()

	assert.Empty(t, GetTraceID(ctx))
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, (&Config{}).sampleRatio())
	assert.Equal(t, 1.0, (&Config{SampleRatio: 3}).sampleRatio())
	assert.Equal(t, 0.25, (&Config{SampleRatio: 0.25}).sampleRatio())
}

func TestInstruments_NoProvider(t *testing.T) {
	c, err := NewCounter(MetricOpts{Name: "test_total", Description: "test counter", Unit: "1"})
	require.NoError(t, err)
	u, err := NewUpDownCounter(MetricOpts{Name: "test_depth", Unit: "1"})
	require.NoError(t, err)
	h, err := NewHistogram(MetricOpts{Name: "test_latency", Unit: "s"})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		c.Inc(context.Background(), attribute.String("k", "v"))
		c.Add(context.Background(), 3)
		u.Add(context.Background(), -1)
		h.Record(context.Background(), 1.5)
	})

	var nilCounter *Counter
	assert.NotPanics(t, func() { nilCounter.Inc(context.Background()) })
}

func TestTracingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TracingMiddleware("booth-test"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}
