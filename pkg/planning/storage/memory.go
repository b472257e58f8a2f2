package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nemonet1337/zaiGoMRP/pkg/planning"
)

// MemoryStorage is an in-process Storage for tests, examples and dry runs
// テスト・サンプル用のメモリ上のストレージ
type MemoryStorage struct {
	mu        sync.RWMutex
	products  map[int64]planning.Product
	edges     []planning.BOMEdge
	forecasts []planning.DemandForecast
	balances  map[int64]planning.InventoryBalance
	receipts  []planning.Receipt
	goals     []planning.WeeklyShipmentGoal
	results   []planning.MRPResult
}

var _ planning.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory storage
// 空のメモリストレージを作成
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		products: make(map[int64]planning.Product),
		balances: make(map[int64]planning.InventoryBalance),
	}
}

// 登録ヘルパー

// AddProducts registers or replaces products
func (s *MemoryStorage) AddProducts(products ...planning.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
	}
}

// AddBOMEdges appends BOM lines
func (s *MemoryStorage) AddBOMEdges(edges ...planning.BOMEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges, edges...)
}

// AddDemandForecasts appends forecasts
func (s *MemoryStorage) AddDemandForecasts(forecasts ...planning.DemandForecast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts = append(s.forecasts, forecasts...)
}

// SetBalances registers or replaces inventory balances
func (s *MemoryStorage) SetBalances(balances ...planning.InventoryBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range balances {
		s.balances[b.ProductID] = b
	}
}

// AddReceipts appends purchase orders of any status
func (s *MemoryStorage) AddReceipts(receipts ...planning.Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, receipts...)
}

// AddWeeklyShipmentGoals appends weekly goals
func (s *MemoryStorage) AddWeeklyShipmentGoals(goals ...planning.WeeklyShipmentGoal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, goals...)
}

// ListProducts returns every product ordered by id
func (s *MemoryStorage) ListProducts(ctx context.Context) ([]planning.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]planning.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// ListBOMEdges returns a copy of the BOM
func (s *MemoryStorage) ListBOMEdges(ctx context.Context) ([]planning.BOMEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]planning.BOMEdge, len(s.edges))
	copy(edges, s.edges)
	return edges, nil
}

// ListDemandForecasts returns forecasts dated in [from, to)
func (s *MemoryStorage) ListDemandForecasts(ctx context.Context, from, to time.Time) ([]planning.DemandForecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	forecasts := make([]planning.DemandForecast, 0)
	for _, f := range s.forecasts {
		if inRange(f.Date, from, to) {
			forecasts = append(forecasts, f)
		}
	}
	return forecasts, nil
}

// ListInventoryBalances returns every balance ordered by product id
func (s *MemoryStorage) ListInventoryBalances(ctx context.Context) ([]planning.InventoryBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances := make([]planning.InventoryBalance, 0, len(s.balances))
	for _, b := range s.balances {
		balances = append(balances, b)
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].ProductID < balances[j].ProductID })
	return balances, nil
}

// ListPendingReceipts returns pending purchase orders expected in [from, to)
func (s *MemoryStorage) ListPendingReceipts(ctx context.Context, from, to time.Time) ([]planning.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receipts := make([]planning.Receipt, 0)
	for _, r := range s.receipts {
		if r.Status == planning.ReceiptStatusPending && inRange(r.ExpectedDate, from, to) {
			receipts = append(receipts, r)
		}
	}
	return receipts, nil
}

// ListWeeklyShipmentGoals returns the goals of the given weeks
func (s *MemoryStorage) ListWeeklyShipmentGoals(ctx context.Context, weekStarts []time.Time) ([]planning.WeeklyShipmentGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[time.Time]bool, len(weekStarts))
	for _, w := range weekStarts {
		wanted[planning.WeekStart(w)] = true
	}

	goals := make([]planning.WeeklyShipmentGoal, 0)
	for _, g := range s.goals {
		if wanted[planning.WeekStart(g.WeekStart)] {
			goals = append(goals, g)
		}
	}
	return goals, nil
}

// ReplaceResults swaps the stored result set in one step
// 計算結果を全件置換
func (s *MemoryStorage) ReplaceResults(ctx context.Context, results []planning.MRPResult) error {
	replaced := make([]planning.MRPResult, len(results))
	copy(replaced, results)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = replaced
	return nil
}

// ListResults returns a copy of the stored results
func (s *MemoryStorage) ListResults(ctx context.Context) ([]planning.MRPResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]planning.MRPResult, len(s.results))
	copy(results, s.results)
	return results, nil
}

// UpdateReorderPoints sets the reorder point of known products
// 発注点を更新
func (s *MemoryStorage) UpdateReorderPoints(ctx context.Context, points map[int64]decimal.Decimal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for productID, point := range points {
		p, ok := s.products[productID]
		if !ok {
			continue
		}
		p.ReorderPoint = point
		s.products[productID] = p
		updated++
	}
	return updated, nil
}

// Ping always succeeds
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStorage) Close() error {
	return nil
}

func inRange(t, from, to time.Time) bool {
	d := planning.DateOf(t)
	return !d.Before(planning.DateOf(from)) && d.Before(planning.DateOf(to))
}
