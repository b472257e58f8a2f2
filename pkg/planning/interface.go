package planning

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Planner defines the core interface for materials requirements planning
// 資材所要量計画のコアインターフェースを定義
type Planner interface {
	// 計画計算 - Planning run
	Calculate(ctx context.Context, days int) (*RunSummary, error)

	// 結果照会 - Result inquiry
	GetShortages(ctx context.Context, days int) ([]ShortageAlert, error)
	GetResults(ctx context.Context, productID int64) ([]MRPResult, error)

	// 発注点 - Reorder points
	GetDynamicReorderPoints(ctx context.Context) ([]DynamicReorderPoint, error)
	ApplyDynamicReorderPoints(ctx context.Context) (int, error)

	// BOM検証 - BOM validation
	ValidateBOM(ctx context.Context, edges []BOMEdge) (*BOMValidationResult, error)

	// 分析 - Analysis
	GetBuildAnalysis(ctx context.Context, days int) (*BuildAnalysis, error)
	GetDashboard(ctx context.Context) (*Dashboard, error)
}

// Storage defines the persistence collaborator the engine reads from and
// writes results to
// データ永続化層のインターフェースを定義
type Storage interface {
	// マスタ・入力データ
	ListProducts(ctx context.Context) ([]Product, error)
	ListBOMEdges(ctx context.Context) ([]BOMEdge, error)
	ListDemandForecasts(ctx context.Context, from, to time.Time) ([]DemandForecast, error)
	ListInventoryBalances(ctx context.Context) ([]InventoryBalance, error)
	ListPendingReceipts(ctx context.Context, from, to time.Time) ([]Receipt, error)
	ListWeeklyShipmentGoals(ctx context.Context, weekStarts []time.Time) ([]WeeklyShipmentGoal, error)

	// 計算結果（全件置換）
	ReplaceResults(ctx context.Context, results []MRPResult) error
	ListResults(ctx context.Context) ([]MRPResult, error)

	// 発注点更新
	UpdateReorderPoints(ctx context.Context, points map[int64]decimal.Decimal) (int, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
