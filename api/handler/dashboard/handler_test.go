package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anoixa/storefront-assets/internal/dashboard"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) GetStats(ctx context.Context) (*dashboard.StatsResponse, error) {
	args := m.Called(ctx)
	if stats := args.Get(0); stats != nil {
		return stats.(*dashboard.StatsResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStatsService) RefreshCache(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newRouter(svc StatsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/stats", NewHandler(svc).GetStats)
	return r
}

func TestGetStats(t *testing.T) {
	svc := new(MockStatsService)
	stats := &dashboard.StatsResponse{}
	stats.Overview.Assets.Total = 7
	svc.On("GetStats", mock.Anything).Return(stats, nil).Once()

	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data dashboard.StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body.Data.Overview.Assets.Total)
	svc.AssertNotCalled(t, "RefreshCache", mock.Anything)
}

func TestGetStats_Refresh(t *testing.T) {
	svc := new(MockStatsService)
	svc.On("RefreshCache", mock.Anything).Return(nil).Once()
	svc.On("GetStats", mock.Anything).Return(&dashboard.StatsResponse{}, nil).Once()

	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats?refresh=true", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestGetStats_Error(t *testing.T) {
	svc := new(MockStatsService)
	svc.On("GetStats", mock.Anything).Return(nil, errors.New("db down")).Once()

	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
