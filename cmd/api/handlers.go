package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiGoMRP/pkg/planning"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handlers for the MRP API
// MRP API用のHTTPハンドラーを保持
type Handlers struct {
	planner planning.Planner
	store   Pinger
	logger  *zap.Logger
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(planner planning.Planner, store Pinger, logger *zap.Logger) *Handlers {
	return &Handlers{
		planner: planner,
		store:   store,
		logger:  logger,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ValidateBOMRequest carries BOM lines to check, merged over the stored BOM.
// An empty request checks the stored BOM.
// BOM検証リクエストを表現
type ValidateBOMRequest struct {
	Edges []planning.BOMEdge `json:"edges"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.Warn("ヘルスチェック失敗", zap.Error(err))
			h.sendError(w, http.StatusServiceUnavailable, "データベースに接続できません")
			return
		}
	}

	h.sendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "zaiGoMRP",
	})
}

// Calculate handles MRP run requests
// MRP計算リクエストを処理
func (h *Handlers) Calculate(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "daysは整数で指定してください")
		return
	}

	summary, err := h.planner.Calculate(r.Context(), days)
	if err != nil {
		h.sendPlanningError(w, err)
		return
	}

	h.sendSuccess(w, summary)
}

// GetShortages handles shortage alert requests
// 欠品アラート取得リクエストを処理
func (h *Handlers) GetShortages(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "daysは整数で指定してください")
		return
	}

	alerts, err := h.planner.GetShortages(r.Context(), days)
	if err != nil {
		h.sendPlanningError(w, err)
		return
	}

	h.sendSuccess(w, alerts)
}

// GetResults handles per-component projection requests
// 構成品ごとの計算結果取得リクエストを処理
func (h *Handlers) GetResults(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	productID, err := strconv.ParseInt(vars["productId"], 10, 64)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "無効な製品IDです")
		return
	}

	results, err := h.planner.GetResults(r.Context(), productID)
	if err != nil {
		h.sendPlanningError(w, err)
		return
	}

	h.sendSuccess(w, results)
}

// GetDynamicReorderPoints handles reorder-point report requests
// 推奨発注点レポート取得リクエストを処理
func (h *Handlers) GetDynamicReorderPoints(w http.ResponseWriter, r *http.Request) {
	points, err := h.planner.GetDynamicReorderPoints(r.Context())
	if err != nil {
		h.sendPlanningError(w, err)
		return
	}

	h.sendSuccess(w, points)
}

// UpdateReorderPoints applies the advisory reorder points to the product master
// 推奨発注点の反映リクエストを処理
func (h *Handlers) UpdateReorderPoints(w http.ResponseWriter, r *http.Request) {
	updated, err := h.planner.ApplyDynamicReorderPoints(r.Context())
	if err != nil {
		h.sendPlanningError(w, err)
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"message": "発注点の更新が完了しました",
		"updated": updated,
	})
}

// ValidateBOM handles BOM validation requests
// BOM検証リクエストを処理
func (h *Handlers) ValidateBOM(w http.ResponseWriter, r *http.Request) {
	var req ValidateBOMRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
			return
		}
	}

	result, err := h.planner.ValidateBOM(r.Context(), req.Edges)
	if err != nil {
		h.sendPlanningError(w, err)
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"valid":  result.Valid(),
		"result": result,
	})
}

// GetBuildAnalysis handles component consumption analysis requests
// 構成品消費分析リクエストを処理
func (h *Handlers) GetBuildAnalysis(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "daysは整数で指定してください")
		return
	}

	analysis, err := h.planner.GetBuildAnalysis(r.Context(), days)
	if err != nil {
		h.sendPlanningError(w, err)
		return
	}

	h.sendSuccess(w, analysis)
}

// GetDashboard handles dashboard summary requests
// ダッシュボード集計リクエストを処理
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.planner.GetDashboard(r.Context())
	if err != nil {
		h.sendPlanningError(w, err)
		return
	}

	h.sendSuccess(w, dashboard)
}

// ヘルパーメソッド

func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

// statusForError maps planning errors onto HTTP status codes
// 計画エラーをHTTPステータスに変換
func statusForError(err error) int {
	var (
		validationErr  *planning.ValidationError
		depthErr       *planning.DepthExceededError
		concurrencyErr *planning.ConcurrencyError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, planning.ErrNotFound), errors.Is(err, planning.ErrNoResults):
		return http.StatusNotFound
	case errors.As(err, &concurrencyErr):
		return http.StatusConflict
	case errors.As(err, &depthErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) sendPlanningError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました", zap.Error(err))
	}
	h.sendError(w, status, err.Error())
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := APIResponse{
		Success: true,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("エラーレスポンス送信に失敗しました", zap.Error(err))
	}
}
