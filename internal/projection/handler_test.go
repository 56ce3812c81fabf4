package projection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aevon-lab/listenstats/internal/core/analytics"
	httperr "github.com/aevon-lab/listenstats/internal/core/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) QueryRange(
	ctx context.Context,
	stationID *int64,
	interval analytics.Interval,
	start time.Time,
	end time.Time,
) ([]analytics.Record, error) {
	args := m.Called(ctx, stationID, interval, start, end)
	records, _ := args.Get(0).([]analytics.Record)
	return records, args.Error(1)
}

func setupRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func TestHandleQueryAnalytics_Success(t *testing.T) {
	router := setupRouter(NewService(seededStore(t)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/analytics?station=all&interval=hourly&start=2024-01-02T00:00:00Z&end=2024-01-02T03:00:00Z", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Station  string `json:"station"`
		Interval string `json:"interval"`
		Values   []struct {
			Moment          time.Time `json:"moment"`
			Min             *string   `json:"min"`
			Average         string    `json:"average"`
			UniqueListeners *int64    `json:"unique_listeners"`
		} `json:"values"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "all", resp.Station)
	require.Len(t, resp.Values, 3)
	assert.Nil(t, resp.Values[0].Min)
	assert.Equal(t, "10", resp.Values[0].Average)
	assert.Nil(t, resp.Values[0].UniqueListeners)
}

func TestHandleQueryAnalytics_MissingParams(t *testing.T) {
	router := setupRouter(NewService(seededStore(t)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/analytics?station=1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), httperr.HttpInvalidQueryError)
}

func TestHandleQueryAnalytics_InvalidQuery(t *testing.T) {
	router := setupRouter(NewService(seededStore(t)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/analytics?interval=monthly&start=2024-01-02T00:00:00Z&end=2024-01-03T00:00:00Z", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid interval")
}

func TestHandleQueryAnalytics_StoreError(t *testing.T) {
	reader := &mockReader{}
	reader.On("QueryRange", mock.Anything, mock.AnythingOfType("*int64"), analytics.IntervalDaily, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))
	router := setupRouter(NewService(reader))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/analytics?station=4&start=2024-01-01T00:00:00Z&end=2024-01-03T00:00:00Z", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, httperr.HttpInternalError, resp.ErrorType)
	reader.AssertExpectations(t)
}
