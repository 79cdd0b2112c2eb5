package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/repository"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockVenueService is a mock implementation of service.VenueService
type MockVenueService struct {
	mock.Mock
}

func (m *MockVenueService) CreateVenue(ctx context.Context, in service.CreateVenueInput) (*domain.Venue, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Venue), args.Error(1)
}

func (m *MockVenueService) GetVenue(ctx context.Context, venueID string) (*domain.Venue, error) {
	args := m.Called(ctx, venueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Venue), args.Error(1)
}

func (m *MockVenueService) ListVenues(ctx context.Context) ([]*domain.Venue, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.Venue), args.Error(1)
}

func (m *MockVenueService) DeleteVenue(ctx context.Context, venueID string) error {
	return m.Called(ctx, venueID).Error(0)
}

func (m *MockVenueService) UpdateSettings(ctx context.Context, venueID string, settings domain.Settings) (*domain.Venue, error) {
	args := m.Called(ctx, venueID, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Venue), args.Error(1)
}

func (m *MockVenueService) SetAccepting(ctx context.Context, venueID string, state domain.AcceptingState) (*domain.Venue, error) {
	args := m.Called(ctx, venueID, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Venue), args.Error(1)
}

func (m *MockVenueService) UpsertMenuItem(ctx context.Context, venueID string, item domain.MenuItem) (*domain.MenuItem, bool, error) {
	args := m.Called(ctx, venueID, item)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.MenuItem), args.Bool(1), args.Error(2)
}

func (m *MockVenueService) CorrectStock(ctx context.Context, venueID, itemID string, stock int) (*domain.MenuItem, error) {
	args := m.Called(ctx, venueID, itemID, stock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MenuItem), args.Error(1)
}

func (m *MockVenueService) RemoveMenuItem(ctx context.Context, venueID, itemID string) error {
	return m.Called(ctx, venueID, itemID).Error(0)
}

func (m *MockVenueService) Menu(ctx context.Context, venueID string) ([]*domain.MenuItem, error) {
	args := m.Called(ctx, venueID)
	return args.Get(0).([]*domain.MenuItem), args.Error(1)
}

func (m *MockVenueService) ResetReservations(ctx context.Context, venueID string) (int, error) {
	args := m.Called(ctx, venueID)
	return args.Int(0), args.Error(1)
}

func (m *MockVenueService) ResetQueue(ctx context.Context, venueID string) (int, error) {
	args := m.Called(ctx, venueID)
	return args.Int(0), args.Error(1)
}

func (m *MockVenueService) SetAcceptingAll(ctx context.Context, state domain.AcceptingState) ([]service.BulkResult, error) {
	args := m.Called(ctx, state)
	return args.Get(0).([]service.BulkResult), args.Error(1)
}

func (m *MockVenueService) ResetAllReservations(ctx context.Context) ([]service.BulkResult, error) {
	args := m.Called(ctx)
	return args.Get(0).([]service.BulkResult), args.Error(1)
}

func (m *MockVenueService) ResetAllQueues(ctx context.Context) ([]service.BulkResult, error) {
	args := m.Called(ctx)
	return args.Get(0).([]service.BulkResult), args.Error(1)
}

func (m *MockVenueService) Subscribe(ctx context.Context, venueID string) (<-chan repository.VenueChange, error) {
	args := m.Called(ctx, venueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan repository.VenueChange), args.Error(1)
}

// streamRecorder satisfies http.CloseNotifier for gin's Stream
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestEvents_StreamsUntilDeleted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockVenueService)

	venue := &domain.Venue{ID: "v1", Name: "Ring Toss", Mode: domain.ModeQueue, Accepting: domain.AcceptingOpen}
	feed := make(chan repository.VenueChange, 2)
	feed <- repository.VenueChange{VenueID: "v1", Kind: repository.ChangeUpdated, Version: 2, Venue: venue}
	feed <- repository.VenueChange{VenueID: "v1", Kind: repository.ChangeDeleted, Version: 3}

	svc.On("Subscribe", mock.Anything, "v1").Return((<-chan repository.VenueChange)(feed), nil)
	svc.On("GetVenue", mock.Anything, "v1").Return(venue, nil)

	router := gin.New()
	router.GET("/venues/:id/events", NewVenueHandler(svc).Events)

	w := newStreamRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/venues/v1/events", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event:snapshot")
	assert.Contains(t, body, "event:updated")
	assert.Contains(t, body, "event:deleted")
	assert.Less(t, strings.Index(body, "event:updated"), strings.Index(body, "event:deleted"))
	svc.AssertExpectations(t)
}

func TestEvents_UnknownVenue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockVenueService)
	svc.On("Subscribe", mock.Anything, "nope").Return(nil, domain.ErrVenueNotFound)

	router := gin.New()
	router.GET("/venues/:id/events", NewVenueHandler(svc).Events)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/venues/nope/events", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "VENUE_NOT_FOUND")
}

func TestAdmin_PartialFailureIsMultiStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockVenueService)
	svc.On("ResetAllQueues", mock.Anything).Return([]service.BulkResult{
		{VenueID: "a", Affected: 2},
		{VenueID: "b", Error: "disk full", Err: errors.New("disk full")},
	}, assert.AnError)

	router := gin.New()
	router.POST("/admin/queues/reset", NewAdminHandler(svc).ResetAllQueues)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/queues/reset", nil))

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), `"failed":1`)
	assert.Contains(t, w.Body.String(), "disk full")
}
