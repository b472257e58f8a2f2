package planning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DemandSource selects where finished-good demand comes from
// 完成品需要の取得元
type DemandSource string

const (
	DemandSourceForecast    DemandSource = "forecast"     // 需要予測
	DemandSourceWeeklyGoals DemandSource = "weekly_goals" // 週次出荷目標
)

// Config holds configuration for the planning engine
// 計画エンジンの設定を保持
type Config struct {
	HorizonDays           int             `yaml:"horizon_days"`            // 既定の計画日数
	ShortageLookaheadDays int             `yaml:"shortage_lookahead_days"` // 欠品アラートの参照日数
	Workers               int             `yaml:"workers"`                 // BOM展開の並列数
	DemandSource          DemandSource    `yaml:"demand_source"`           // 需要の取得元
	WeeklyAveraging       AveragingPolicy `yaml:"weekly_averaging"`        // 週平均の算出方式
}

// DefaultConfig returns the engine defaults
// デフォルト設定
func DefaultConfig() *Config {
	return &Config{
		HorizonDays:           30,
		ShortageLookaheadDays: 14,
		Workers:               4,
		DemandSource:          DemandSourceForecast,
		WeeklyAveraging:       AveragingNonzeroWeeks,
	}
}

// Engine implements the Planner interface
// Plannerインターフェースの実装
type Engine struct {
	storage Storage
	logger  *zap.Logger
	metrics *Metrics
	config  *Config
	now     func() time.Time

	running sync.Mutex // 計算の多重実行防止
}

var _ Planner = (*Engine)(nil)

// Option customizes an Engine
type Option func(*Engine)

// WithClock replaces the engine's source of the current time
// 現在時刻の取得関数を差し替え（テスト用）
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new planning engine
// 新しい計画エンジンを作成
func NewEngine(storage Storage, logger *zap.Logger, metrics *Metrics, config *Config, opts ...Option) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		storage: storage,
		logger:  logger,
		metrics: metrics,
		config:  config,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// snapshot is the input data of one run, read before any computation
type snapshot struct {
	products map[int64]Product
	edges    []BOMEdge
	balances map[int64]InventoryBalance
	demand   DemandPlan
	receipts ReceiptPlan
}

// Calculate runs MRP over the next days and replaces the stored results.
// Nothing is written unless every step succeeds.
// MRP計算を実行し、結果を全件置換
func (e *Engine) Calculate(ctx context.Context, days int) (*RunSummary, error) {
	if days == 0 {
		days = e.config.HorizonDays
	}
	if err := ValidateHorizonDays(days); err != nil {
		return nil, err
	}

	if !e.running.TryLock() {
		e.metrics.observeRejected()
		return nil, NewConcurrencyError("calculate", "mrp_results", "MRP計算は既に実行中です")
	}
	defer e.running.Unlock()

	started := e.now()
	summary, err := e.calculate(ctx, days, started)
	if err != nil {
		status := "failed"
		var depthErr *DepthExceededError
		if errors.As(err, &depthErr) {
			status = "depth_exceeded"
		}
		e.metrics.observeFailure(status, e.now().Sub(started))
		e.logger.Error("MRP計算に失敗しました",
			zap.Int("days", days),
			zap.Error(err),
		)
		return nil, err
	}

	e.metrics.observeSuccess(summary)
	e.logger.Info("MRP計算完了",
		zap.String("run_id", summary.RunID),
		zap.Int("days", days),
		zap.Int("products_processed", summary.ProductsProcessed),
		zap.Int("components_analyzed", summary.ComponentsAnalyzed),
		zap.Int("result_rows", summary.ResultRows),
		zap.Int("shortages", len(summary.Shortages)),
		zap.Duration("duration", summary.Duration),
	)

	return summary, nil
}

func (e *Engine) calculate(ctx context.Context, days int, started time.Time) (*RunSummary, error) {
	horizon := NewHorizon(started, days)

	snap, err := e.loadSnapshot(ctx, horizon)
	if err != nil {
		return nil, err
	}

	graph, err := NewBOMGraph(snap.products, snap.edges)
	if err != nil {
		return nil, err
	}

	finished := activeFinishedGoods(snap.products)
	reqs, err := e.explodeAll(ctx, graph, horizon, finished, snap.demand)
	if err != nil {
		return nil, err
	}

	// 計算対象（完成品と展開先の構成品）のみ検証
	if err := validateProducts(snap.products, finished, reqs.ProductIDs()); err != nil {
		return nil, err
	}

	projections, err := Net(horizon, reqs, snap.products, snap.balances, snap.receipts)
	if err != nil {
		return nil, err
	}

	runID := NewRunID()
	calculatedAt := e.now()
	results := make([]MRPResult, 0, len(projections)*days)
	shortages := make([]ShortageEvent, 0)
	for _, projection := range projections {
		results = append(results, projection.Results(runID, calculatedAt)...)
		if event, ok := shortageEvent(projection, snap.products[projection.ProductID]); ok {
			shortages = append(shortages, event)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.storage.ReplaceResults(ctx, results); err != nil {
		return nil, NewStorageError("replace_results", "計算結果の保存に失敗しました", err)
	}

	return &RunSummary{
		RunID:              runID,
		StartDate:          horizon.Start,
		Days:               days,
		ProductsProcessed:  len(finished),
		ComponentsAnalyzed: len(projections),
		ResultRows:         len(results),
		Shortages:          shortages,
		CalculatedAt:       calculatedAt,
		Duration:           e.now().Sub(started),
	}, nil
}

func (e *Engine) loadSnapshot(ctx context.Context, h Horizon) (*snapshot, error) {
	products, err := e.loadProducts(ctx)
	if err != nil {
		return nil, err
	}

	edges, err := e.storage.ListBOMEdges(ctx)
	if err != nil {
		return nil, NewStorageError("list_bom_edges", "BOM取得に失敗しました", err)
	}

	balances, err := e.loadBalances(ctx)
	if err != nil {
		return nil, err
	}

	var demand DemandPlan
	switch e.config.DemandSource {
	case DemandSourceWeeklyGoals:
		goals, err := e.storage.ListWeeklyShipmentGoals(ctx, WeekStartsInHorizon(h))
		if err != nil {
			return nil, NewStorageError("list_weekly_goals", "週次出荷目標の取得に失敗しました", err)
		}
		demand = DemandFromWeeklyGoals(h, goals)
	case DemandSourceForecast, "":
		forecasts, err := e.storage.ListDemandForecasts(ctx, h.Start, h.End())
		if err != nil {
			return nil, NewStorageError("list_demand_forecasts", "需要予測の取得に失敗しました", err)
		}
		demand = AggregateDemand(h, forecasts)
	default:
		return nil, NewValidationError("demand_source", "無効な需要取得元です", string(e.config.DemandSource))
	}

	receipts, err := e.storage.ListPendingReceipts(ctx, h.Start, h.End())
	if err != nil {
		return nil, NewStorageError("list_pending_receipts", "入荷予定の取得に失敗しました", err)
	}

	e.logger.Debug("入力データ読込完了",
		zap.Int("products", len(products)),
		zap.Int("bom_edges", len(edges)),
		zap.Int("balances", len(balances)),
		zap.Int("receipts", len(receipts)),
	)

	return &snapshot{
		products: products,
		edges:    edges,
		balances: balances,
		demand:   demand,
		receipts: AggregateReceipts(h, receipts),
	}, nil
}

func (e *Engine) loadProducts(ctx context.Context) (map[int64]Product, error) {
	list, err := e.storage.ListProducts(ctx)
	if err != nil {
		return nil, NewStorageError("list_products", "製品マスタ取得に失敗しました", err)
	}
	products := make(map[int64]Product, len(list))
	for _, p := range list {
		products[p.ID] = p
	}
	return products, nil
}

func (e *Engine) loadBalances(ctx context.Context) (map[int64]InventoryBalance, error) {
	list, err := e.storage.ListInventoryBalances(ctx)
	if err != nil {
		return nil, NewStorageError("list_inventory_balances", "在庫残高取得に失敗しました", err)
	}
	balances := make(map[int64]InventoryBalance, len(list))
	for _, b := range list {
		balances[b.ProductID] = b
	}
	return balances, nil
}

func activeFinishedGoods(products map[int64]Product) []int64 {
	ids := make([]int64, 0)
	for id, p := range products {
		if p.IsActive && p.Type == ProductTypeFinishedGood {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func validateProducts(products map[int64]Product, groups ...[]int64) error {
	for _, ids := range groups {
		for _, id := range ids {
			p, ok := products[id]
			if !ok {
				return NewNotFoundError("product", id)
			}
			if err := ValidateProduct(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// explodeAll explodes every finished good on its own goroutine into a private
// Requirements map and merges them in finished-good order once all succeed.
// Explosion is linear in quantity, so each finished good is exploded once per
// unit and scaled by each day's demand.
func (e *Engine) explodeAll(ctx context.Context, graph *BOMGraph, h Horizon, finished []int64, demand DemandPlan) (Requirements, error) {
	partials := make([]Requirements, len(finished))

	g, gctx := errgroup.WithContext(ctx)
	if e.config.Workers > 0 {
		g.SetLimit(e.config.Workers)
	}

	for i, productID := range finished {
		i, productID := i, productID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			perUnit, err := graph.Explode(productID, decimal.NewFromInt(1))
			if err != nil {
				return fmt.Errorf("BOM展開に失敗しました (product_id=%d): %w", productID, err)
			}

			reqs := make(Requirements)
			for componentID, qtyPer := range perUnit {
				reqs.Touch(componentID)
				for offset := 0; offset < h.Days; offset++ {
					qty := demand.Get(productID, offset)
					if qty.IsZero() {
						continue
					}
					reqs.Add(componentID, offset, qty.Mul(qtyPer))
				}
			}
			partials[i] = reqs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(Requirements)
	for _, partial := range partials {
		merged.Merge(partial)
	}
	return merged, nil
}

func shortageEvent(p Projection, product Product) (ShortageEvent, bool) {
	if p.ShortageDate == nil {
		return ShortageEvent{}, false
	}
	for _, row := range p.Rows {
		if row.ShortageDate == nil {
			continue
		}
		return ShortageEvent{
			ProductID:       p.ProductID,
			ProductCode:     product.Code,
			ShortageDate:    *row.ShortageDate,
			ProjectedOnHand: row.ProjectedOnHand,
			ReorderPoint:    product.ReorderPoint,
			ReorderQty:      product.ReorderQty,
		}, true
	}
	return ShortageEvent{}, false
}

// GetShortages lists order recommendations for shortages within the next days,
// read from the results of the last run
// 直近の計算結果から欠品アラートを取得
func (e *Engine) GetShortages(ctx context.Context, days int) ([]ShortageAlert, error) {
	if days == 0 {
		days = e.config.ShortageLookaheadDays
	}
	if err := ValidateHorizonDays(days); err != nil {
		return nil, err
	}

	results, err := e.storage.ListResults(ctx)
	if err != nil {
		return nil, NewStorageError("list_results", "計算結果の取得に失敗しました", err)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	products, err := e.loadProducts(ctx)
	if err != nil {
		return nil, err
	}
	balances, err := e.loadBalances(ctx)
	if err != nil {
		return nil, err
	}

	alerts, err := BuildShortageAlerts(e.now(), days, results, products, balances)
	if err != nil {
		return nil, err
	}

	e.logger.Info("欠品アラート作成",
		zap.Int("days", days),
		zap.Int("alerts", len(alerts)),
	)

	return alerts, nil
}

// GetResults returns the stored projection of one component in date order
// 構成品の計算結果を取得
func (e *Engine) GetResults(ctx context.Context, productID int64) ([]MRPResult, error) {
	results, err := e.storage.ListResults(ctx)
	if err != nil {
		return nil, NewStorageError("list_results", "計算結果の取得に失敗しました", err)
	}

	filtered := make([]MRPResult, 0)
	for _, r := range results {
		if r.ProductID == productID {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return nil, NewNotFoundError("mrp_result", productID)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.Before(filtered[j].Date)
	})
	return filtered, nil
}

// GetDynamicReorderPoints computes the advisory reorder-point report
// 推奨発注点レポートを作成
func (e *Engine) GetDynamicReorderPoints(ctx context.Context) ([]DynamicReorderPoint, error) {
	products, err := e.loadProducts(ctx)
	if err != nil {
		return nil, err
	}

	edges, err := e.storage.ListBOMEdges(ctx)
	if err != nil {
		return nil, NewStorageError("list_bom_edges", "BOM取得に失敗しました", err)
	}

	today := e.now()
	goals, err := e.storage.ListWeeklyShipmentGoals(ctx, LookaheadWeeks(today))
	if err != nil {
		return nil, NewStorageError("list_weekly_goals", "週次出荷目標の取得に失敗しました", err)
	}

	return CalculateDynamicReorderPoints(today, products, edges, goals, e.config.WeeklyAveraging)
}

// ApplyDynamicReorderPoints writes the advisory reorder points back to the
// product master and returns the number of products updated
// 推奨発注点を製品マスタに反映
func (e *Engine) ApplyDynamicReorderPoints(ctx context.Context) (int, error) {
	points, err := e.GetDynamicReorderPoints(ctx)
	if err != nil {
		return 0, err
	}

	updated, err := e.storage.UpdateReorderPoints(ctx, ReorderPointUpdates(points))
	if err != nil {
		return 0, NewStorageError("update_reorder_points", "発注点の更新に失敗しました", err)
	}

	e.logger.Info("発注点更新完了",
		zap.Int("updated", updated),
		zap.Int("candidates", len(points)),
	)

	return updated, nil
}

// buildInputs is the data behind the build analysis
type buildInputs struct {
	products map[int64]Product
	edges    []BOMEdge
	goals    []WeeklyShipmentGoal
	balances map[int64]InventoryBalance
	receipts []Receipt
}

func (e *Engine) loadBuildInputs(ctx context.Context, h Horizon) (*buildInputs, error) {
	products, err := e.loadProducts(ctx)
	if err != nil {
		return nil, err
	}

	edges, err := e.storage.ListBOMEdges(ctx)
	if err != nil {
		return nil, NewStorageError("list_bom_edges", "BOM取得に失敗しました", err)
	}

	balances, err := e.loadBalances(ctx)
	if err != nil {
		return nil, err
	}

	goals, err := e.storage.ListWeeklyShipmentGoals(ctx, WeekStartsInHorizon(h))
	if err != nil {
		return nil, NewStorageError("list_weekly_goals", "週次出荷目標の取得に失敗しました", err)
	}

	// 期限超過の入荷待ちも一覧に含める
	receipts, err := e.storage.ListPendingReceipts(ctx, time.Time{}, h.End())
	if err != nil {
		return nil, NewStorageError("list_pending_receipts", "入荷予定の取得に失敗しました", err)
	}

	return &buildInputs{
		products: products,
		edges:    edges,
		goals:    goals,
		balances: balances,
		receipts: receipts,
	}, nil
}

func (e *Engine) analyzeBuilds(ctx context.Context, days int) (*BuildAnalysis, *buildInputs, error) {
	h := NewHorizon(e.now(), days)
	in, err := e.loadBuildInputs(ctx, h)
	if err != nil {
		return nil, nil, err
	}

	analysis, err := AnalyzeBuilds(h, in.products, in.edges, in.goals, in.balances, in.receipts)
	if err != nil {
		return nil, nil, err
	}
	return analysis, in, nil
}

// GetBuildAnalysis reports daily consumption and run-out dates per component
// over the next days, driven by weekly shipment goals
// 週次出荷目標に基づく構成品の消費分析
func (e *Engine) GetBuildAnalysis(ctx context.Context, days int) (*BuildAnalysis, error) {
	if days == 0 {
		days = DefaultBuildAnalysisDays
	}
	if err := ValidateHorizonDays(days); err != nil {
		return nil, err
	}

	analysis, _, err := e.analyzeBuilds(ctx, days)
	if err != nil {
		return nil, err
	}

	e.logger.Info("構成品消費分析作成",
		zap.Int("days", days),
		zap.Int("components", len(analysis.Components)),
	)

	return analysis, nil
}

// GetDashboard summarises products, low stock and the most urgent run-outs
// ダッシュボード集計を取得
func (e *Engine) GetDashboard(ctx context.Context) (*Dashboard, error) {
	analysis, in, err := e.analyzeBuilds(ctx, DashboardDays)
	if err != nil {
		return nil, err
	}
	return BuildDashboard(in.products, in.balances, analysis), nil
}

// ValidateBOM checks the stored BOM with edges merged over it, so a submitted
// line that closes a cycle with stored lines is reported. Nil edges checks the
// stored BOM alone.
// BOMの整合性（循環・重複など）を検証
func (e *Engine) ValidateBOM(ctx context.Context, edges []BOMEdge) (*BOMValidationResult, error) {
	products, err := e.loadProducts(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := e.storage.ListBOMEdges(ctx)
	if err != nil {
		return nil, NewStorageError("list_bom_edges", "BOM取得に失敗しました", err)
	}

	result := ValidateBOM(products, MergeBOMEdges(stored, edges))
	if !result.Valid() {
		e.logger.Warn("BOM検証エラー",
			zap.Int("invalid_edges", len(result.InvalidEdges)),
			zap.Int("duplicate_edges", len(result.DuplicateEdges)),
			zap.Int64s("cycle_members", result.CycleMembers),
		)
	}
	return result, nil
}
