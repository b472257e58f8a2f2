package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiGoMRP/pkg/planning"
)

// PostgreSQLStorage implements the Storage interface using PostgreSQL
// PostgreSQLを使用したStorageインターフェースの実装
type PostgreSQLStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ planning.Storage = (*PostgreSQLStorage)(nil)

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
// 新しいPostgreSQLストレージインスタンスを作成
func NewPostgreSQLStorage(dsn string, logger *zap.Logger) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	// 接続プール設定
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewPostgreSQLStorageFromDB(db, logger), nil
}

// NewPostgreSQLStorageFromDB wraps an already opened database handle
// 既存のDB接続からストレージを作成
func NewPostgreSQLStorageFromDB(db *sql.DB, logger *zap.Logger) *PostgreSQLStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgreSQLStorage{
		db:     db,
		logger: logger,
	}
}

// ListProducts returns every product ordered by id
// 製品マスタを全件取得
func (s *PostgreSQLStorage) ListProducts(ctx context.Context) ([]planning.Product, error) {
	query := `
		SELECT id, code, name, type, lead_time_days, reorder_point, reorder_qty, safety_stock,
		       order_multiple, minimum_order_qty, critical_days, warning_days, caution_days,
		       is_active, created_at
		FROM products
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("製品一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []planning.Product
	for rows.Next() {
		var p planning.Product
		err := rows.Scan(
			&p.ID,
			&p.Code,
			&p.Name,
			&p.Type,
			&p.LeadTimeDays,
			&p.ReorderPoint,
			&p.ReorderQty,
			&p.SafetyStock,
			&p.OrderMultiple,
			&p.MinimumOrderQty,
			&p.CriticalDays,
			&p.WarningDays,
			&p.CautionDays,
			&p.IsActive,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("製品データスキャンに失敗しました: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("製品一覧の読み込みに失敗しました: %w", err)
	}

	return products, nil
}

// ListBOMEdges returns every BOM line ordered by parent then component
// 部品表を全件取得
func (s *PostgreSQLStorage) ListBOMEdges(ctx context.Context) ([]planning.BOMEdge, error) {
	query := `
		SELECT parent_product_id, component_product_id, quantity_per
		FROM bom_items
		ORDER BY parent_product_id, component_product_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("BOM取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var edges []planning.BOMEdge
	for rows.Next() {
		var e planning.BOMEdge
		if err := rows.Scan(&e.ParentProductID, &e.ComponentProductID, &e.QuantityPer); err != nil {
			return nil, fmt.Errorf("BOMデータスキャンに失敗しました: %w", err)
		}
		edges = append(edges, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("BOMの読み込みに失敗しました: %w", err)
	}

	return edges, nil
}

// ListDemandForecasts returns forecasts dated in [from, to)
// 期間内の需要予測を取得
func (s *PostgreSQLStorage) ListDemandForecasts(ctx context.Context, from, to time.Time) ([]planning.DemandForecast, error) {
	query := `
		SELECT product_id, demand_date, quantity
		FROM demand_forecasts
		WHERE demand_date >= $1 AND demand_date < $2
		ORDER BY product_id, demand_date`

	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("需要予測取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var forecasts []planning.DemandForecast
	for rows.Next() {
		var f planning.DemandForecast
		if err := rows.Scan(&f.ProductID, &f.Date, &f.Quantity); err != nil {
			return nil, fmt.Errorf("需要予測データスキャンに失敗しました: %w", err)
		}
		f.Date = planning.DateOf(f.Date)
		forecasts = append(forecasts, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("需要予測の読み込みに失敗しました: %w", err)
	}

	return forecasts, nil
}

// ListInventoryBalances returns the current balance of every product
// 在庫残高を全件取得
func (s *PostgreSQLStorage) ListInventoryBalances(ctx context.Context) ([]planning.InventoryBalance, error) {
	query := `
		SELECT product_id, on_hand, allocated, last_updated
		FROM inventory_balances
		ORDER BY product_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("在庫残高取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var balances []planning.InventoryBalance
	for rows.Next() {
		var b planning.InventoryBalance
		if err := rows.Scan(&b.ProductID, &b.OnHand, &b.Allocated, &b.LastUpdated); err != nil {
			return nil, fmt.Errorf("在庫残高データスキャンに失敗しました: %w", err)
		}
		balances = append(balances, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("在庫残高の読み込みに失敗しました: %w", err)
	}

	return balances, nil
}

// ListPendingReceipts returns pending purchase orders expected in [from, to)
// 期間内の入荷待ち発注書を取得
func (s *PostgreSQLStorage) ListPendingReceipts(ctx context.Context, from, to time.Time) ([]planning.Receipt, error) {
	query := `
		SELECT id, po_number, product_id, expected_date, quantity, status, supplier
		FROM purchase_orders
		WHERE status = $1 AND expected_date >= $2 AND expected_date < $3
		ORDER BY expected_date, id`

	rows, err := s.db.QueryContext(ctx, query, string(planning.ReceiptStatusPending), from, to)
	if err != nil {
		return nil, fmt.Errorf("入荷予定取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var receipts []planning.Receipt
	for rows.Next() {
		var r planning.Receipt
		err := rows.Scan(
			&r.ID,
			&r.PONumber,
			&r.ProductID,
			&r.ExpectedDate,
			&r.Quantity,
			&r.Status,
			&r.Supplier,
		)
		if err != nil {
			return nil, fmt.Errorf("入荷予定データスキャンに失敗しました: %w", err)
		}
		r.ExpectedDate = planning.DateOf(r.ExpectedDate)
		receipts = append(receipts, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("入荷予定の読み込みに失敗しました: %w", err)
	}

	return receipts, nil
}

// ListWeeklyShipmentGoals returns the goals of the given weeks
// 指定週の出荷目標を取得
func (s *PostgreSQLStorage) ListWeeklyShipmentGoals(ctx context.Context, weekStarts []time.Time) ([]planning.WeeklyShipmentGoal, error) {
	if len(weekStarts) == 0 {
		return nil, nil
	}

	dates := make([]string, 0, len(weekStarts))
	for _, w := range weekStarts {
		dates = append(dates, planning.WeekStart(w).Format("2006-01-02"))
	}

	query := `
		SELECT product_id, week_start_date, goal
		FROM weekly_shipment_goals
		WHERE week_start_date = ANY($1::date[])
		ORDER BY product_id, week_start_date`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(dates))
	if err != nil {
		return nil, fmt.Errorf("週次出荷目標取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var goals []planning.WeeklyShipmentGoal
	for rows.Next() {
		var g planning.WeeklyShipmentGoal
		if err := rows.Scan(&g.ProductID, &g.WeekStart, &g.Goal); err != nil {
			return nil, fmt.Errorf("週次出荷目標データスキャンに失敗しました: %w", err)
		}
		g.WeekStart = planning.DateOf(g.WeekStart)
		goals = append(goals, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("週次出荷目標の読み込みに失敗しました: %w", err)
	}

	return goals, nil
}

// ReplaceResults deletes every stored result and bulk inserts results in a
// single transaction; readers see either the old set or the new one
// 計算結果を1トランザクションで全件置換
func (s *PostgreSQLStorage) ReplaceResults(ctx context.Context, results []planning.MRPResult) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error("ロールバックに失敗しました", zap.Error(rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM mrp_results`); err != nil {
		return fmt.Errorf("計算結果の削除に失敗しました: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("mrp_results",
		"run_id", "product_id", "result_date", "projected_onhand",
		"needs_ordering", "shortage_date", "calculated_at",
	))
	if err != nil {
		return fmt.Errorf("一括登録の準備に失敗しました: %w", err)
	}

	for _, r := range results {
		var shortage interface{}
		if r.ShortageDate != nil {
			shortage = *r.ShortageDate
		}
		if _, err = stmt.ExecContext(ctx,
			r.RunID,
			r.ProductID,
			r.Date,
			r.ProjectedOnHand,
			r.NeedsOrdering,
			shortage,
			r.CalculatedAt,
		); err != nil {
			stmt.Close()
			return fmt.Errorf("計算結果の登録に失敗しました: %w", err)
		}
	}

	// COPYの確定
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("計算結果の一括登録に失敗しました: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("一括登録の終了に失敗しました: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗しました: %w", err)
	}

	s.logger.Debug("計算結果を置換しました", zap.Int("rows", len(results)))
	return nil
}

// ListResults returns the stored results ordered by product and date
// 計算結果を全件取得
func (s *PostgreSQLStorage) ListResults(ctx context.Context) ([]planning.MRPResult, error) {
	query := `
		SELECT run_id, product_id, result_date, projected_onhand, needs_ordering, shortage_date, calculated_at
		FROM mrp_results
		ORDER BY product_id, result_date`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("計算結果取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []planning.MRPResult
	for rows.Next() {
		var r planning.MRPResult
		var shortage sql.NullTime
		err := rows.Scan(
			&r.RunID,
			&r.ProductID,
			&r.Date,
			&r.ProjectedOnHand,
			&r.NeedsOrdering,
			&shortage,
			&r.CalculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("計算結果データスキャンに失敗しました: %w", err)
		}
		r.Date = planning.DateOf(r.Date)
		if shortage.Valid {
			d := planning.DateOf(shortage.Time)
			r.ShortageDate = &d
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("計算結果の読み込みに失敗しました: %w", err)
	}

	return results, nil
}

// UpdateReorderPoints sets reorder_point for each product in one transaction
// and returns the number of products changed
// 発注点を1トランザクションで更新
func (s *PostgreSQLStorage) UpdateReorderPoints(ctx context.Context, points map[int64]decimal.Decimal) (updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error("ロールバックに失敗しました", zap.Error(rbErr))
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `UPDATE products SET reorder_point = $2 WHERE id = $1`)
	if err != nil {
		return 0, fmt.Errorf("発注点更新の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for productID, point := range points {
		result, err := stmt.ExecContext(ctx, productID, point)
		if err != nil {
			return 0, fmt.Errorf("発注点更新に失敗しました (product_id=%d): %w", productID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
		}
		updated += int(rowsAffected)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("コミットに失敗しました: %w", err)
	}

	return updated, nil
}

// Ping checks the database connection
// データベース接続をチェック
func (s *PostgreSQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
// データベース接続を閉じる
func (s *PostgreSQLStorage) Close() error {
	return s.db.Close()
}
