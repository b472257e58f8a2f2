package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiGoMRP/internal/config"
	"github.com/nemonet1337/zaiGoMRP/pkg/planning"
)

// MockPlanner はテスト用のPlannerモック
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Calculate(ctx context.Context, days int) (*planning.RunSummary, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*planning.RunSummary), args.Error(1)
}

func (m *MockPlanner) GetShortages(ctx context.Context, days int) ([]planning.ShortageAlert, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]planning.ShortageAlert), args.Error(1)
}

func (m *MockPlanner) GetResults(ctx context.Context, productID int64) ([]planning.MRPResult, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]planning.MRPResult), args.Error(1)
}

func (m *MockPlanner) GetDynamicReorderPoints(ctx context.Context) ([]planning.DynamicReorderPoint, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]planning.DynamicReorderPoint), args.Error(1)
}

func (m *MockPlanner) ApplyDynamicReorderPoints(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockPlanner) ValidateBOM(ctx context.Context, edges []planning.BOMEdge) (*planning.BOMValidationResult, error) {
	args := m.Called(ctx, edges)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*planning.BOMValidationResult), args.Error(1)
}

func (m *MockPlanner) GetBuildAnalysis(ctx context.Context, days int) (*planning.BuildAnalysis, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*planning.BuildAnalysis), args.Error(1)
}

func (m *MockPlanner) GetDashboard(ctx context.Context) (*planning.Dashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*planning.Dashboard), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func newTestRouter(planner planning.Planner, pinger Pinger) http.Handler {
	handlers := NewHandlers(planner, pinger, zap.NewNop())
	return setupRouter(handlers, prometheus.NewRegistry(), config.Default().API)
}

func serve(router http.Handler, method, target, body string) (*httptest.ResponseRecorder, APIResponse) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestHandlers_Calculate(t *testing.T) {
	planner := new(MockPlanner)
	planner.On("Calculate", mock.Anything, 45).Return(&planning.RunSummary{RunID: "run-1", Days: 45}, nil)
	router := newTestRouter(planner, nil)

	rec, resp := serve(router, http.MethodPost, "/api/v1/mrp/calculate?days=45", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "run-1", resp.Data.(map[string]interface{})["run_id"])
	planner.AssertExpectations(t)
}

func TestHandlers_CalculateDefaultsDays(t *testing.T) {
	planner := new(MockPlanner)
	planner.On("Calculate", mock.Anything, 0).Return(&planning.RunSummary{RunID: "run-2"}, nil)
	router := newTestRouter(planner, nil)

	rec, _ := serve(router, http.MethodPost, "/api/v1/mrp/calculate", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	planner.AssertExpectations(t)
}

func TestHandlers_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"バリデーション", planning.NewValidationError("days", "範囲外", "0"), http.StatusBadRequest},
		{"未検出", planning.NewNotFoundError("product", 1), http.StatusNotFound},
		{"結果なし", planning.ErrNoResults, http.StatusNotFound},
		{"多重実行", planning.NewConcurrencyError("calculate", "mrp_results", "実行中"), http.StatusConflict},
		{"階層超過", fmt.Errorf("展開失敗: %w", planning.NewDepthExceededError(3, 11)), http.StatusUnprocessableEntity},
		{"ストレージ", planning.NewStorageError("replace_results", "失敗", fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := new(MockPlanner)
			planner.On("Calculate", mock.Anything, 30).Return(nil, tt.err)
			router := newTestRouter(planner, nil)

			rec, resp := serve(router, http.MethodPost, "/api/v1/mrp/calculate?days=30", "")

			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandlers_BadQuery(t *testing.T) {
	router := newTestRouter(new(MockPlanner), nil)

	rec, _ := serve(router, http.MethodGet, "/api/v1/mrp/shortages?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(router, http.MethodGet, "/api/v1/mrp/results/xyz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_GetShortagesAndResults(t *testing.T) {
	planner := new(MockPlanner)
	planner.On("GetShortages", mock.Anything, 14).Return([]planning.ShortageAlert{{ProductID: 9, ProductCode: "X"}}, nil)
	planner.On("GetResults", mock.Anything, int64(9)).Return([]planning.MRPResult{{ProductID: 9}, {ProductID: 9}}, nil)
	router := newTestRouter(planner, nil)

	rec, resp := serve(router, http.MethodGet, "/api/v1/mrp/shortages?days=14", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	rec, resp = serve(router, http.MethodGet, "/api/v1/mrp/results/9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 2)
}

func TestHandlers_ReorderPoints(t *testing.T) {
	planner := new(MockPlanner)
	planner.On("GetDynamicReorderPoints", mock.Anything).Return([]planning.DynamicReorderPoint{{ProductID: 10}}, nil)
	planner.On("ApplyDynamicReorderPoints", mock.Anything).Return(4, nil)
	router := newTestRouter(planner, nil)

	rec, resp := serve(router, http.MethodGet, "/api/v1/inventory/dynamic-reorder-points", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	rec, resp = serve(router, http.MethodPost, "/api/v1/inventory/update-reorder-points", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), resp.Data.(map[string]interface{})["updated"])
}

func TestHandlers_ValidateBOM(t *testing.T) {
	planner := new(MockPlanner)
	planner.On("ValidateBOM", mock.Anything, mock.MatchedBy(func(edges []planning.BOMEdge) bool {
		return len(edges) == 1 && edges[0].ParentProductID == 1 && edges[0].ComponentProductID == 2
	})).Return(&planning.BOMValidationResult{Errors: []string{"循環参照"}}, nil)
	router := newTestRouter(planner, nil)

	body := `{"edges":[{"parent_product_id":1,"component_product_id":2,"quantity_per":"2"}]}`
	rec, resp := serve(router, http.MethodPost, "/api/v1/bom/validate", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["valid"])

	rec, _ = serve(router, http.MethodPost, "/api/v1/bom/validate", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_BuildAnalysisAndDashboard(t *testing.T) {
	planner := new(MockPlanner)
	planner.On("GetBuildAnalysis", mock.Anything, 60).Return(&planning.BuildAnalysis{
		Days:       60,
		Components: []planning.ComponentBuildAnalysis{{ProductID: 10, DaysOfInventory: 8}},
	}, nil)
	planner.On("GetBuildAnalysis", mock.Anything, 400).Return(nil, planning.NewValidationError("days", "範囲外", "400"))
	planner.On("GetDashboard", mock.Anything).Return(&planning.Dashboard{
		FinishedGoods: 2,
		LowStockCount: 1,
		Shortages:     []planning.DashboardShortage{{ProductCode: "C10", DaysUntilShortage: 8}},
	}, nil)
	router := newTestRouter(planner, nil)

	rec, resp := serve(router, http.MethodGet, "/api/v1/demand/daily-build-analysis?days=60", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(60), data["days"])
	require.Len(t, data["components"].([]interface{}), 1)
	component := data["components"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(8), component["days_of_inventory"])

	rec, _ = serve(router, http.MethodGet, "/api/v1/demand/daily-build-analysis?days=400", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(router, http.MethodGet, "/api/v1/demand/daily-build-analysis?days=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = serve(router, http.MethodGet, "/api/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dashboard := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), dashboard["total_products"])
	assert.Equal(t, float64(1), dashboard["low_stock_count"])
	assert.Len(t, dashboard["shortages"].([]interface{}), 1)

	planner.AssertExpectations(t)
}

func TestHandlers_HealthCheck(t *testing.T) {
	rec, resp := serve(newTestRouter(new(MockPlanner), stubPinger{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, _ = serve(newTestRouter(new(MockPlanner), stubPinger{err: fmt.Errorf("down")}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	registry := prometheus.NewRegistry()
	planning.NewMetrics(registry)
	router := setupRouter(NewHandlers(new(MockPlanner), nil, zap.NewNop()), registry, config.Default().API)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mrp_result_rows")
}
