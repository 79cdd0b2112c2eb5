package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, map[string]string{"id": "v1"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestList(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	List(c, []string{"a", "b"}, 2)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":["a","b"],"meta":{"count":2}}`, w.Body.String())
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		write  func(c *gin.Context)
		status int
		code   string
	}{
		{"bad request", func(c *gin.Context) { Error(c, http.StatusBadRequest, "INVALID_REQUEST", "bad", "") }, http.StatusBadRequest, "INVALID_REQUEST"},
		{"not found", func(c *gin.Context) { Error(c, http.StatusNotFound, "VENUE_NOT_FOUND", "missing", "") }, http.StatusNotFound, "VENUE_NOT_FOUND"},
		{"conflict", func(c *gin.Context) { Conflict(c, "SLOT_FULL", "full") }, http.StatusConflict, "SLOT_FULL"},
		{"unavailable", func(c *gin.Context) { ServiceUnavailable(c, "CONTENDED", "busy") }, http.StatusServiceUnavailable, "CONTENDED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			tt.write(c)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestErrorBody(t *testing.T) {
	body := ErrorBody("MISSING_IDEMPOTENCY_KEY", "key required")
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "MISSING_IDEMPOTENCY_KEY", body.Error.Code)
}
