package planning

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Requirements is the consolidated leaf demand per component per day offset
// 構成品ごと・日オフセットごとの統合所要量
type Requirements = DailyQuantities

// Touch registers productID with no demand so that it is still projected
// 需要がなくても推移計算の対象として登録
func (q DailyQuantities) Touch(productID int64) {
	if _, ok := q[productID]; !ok {
		q[productID] = make(map[int]decimal.Decimal)
	}
}

// Merge sums other into q
// 別の集計を加算
func (q DailyQuantities) Merge(other DailyQuantities) {
	for productID, days := range other {
		q.Touch(productID)
		for offset, qty := range days {
			q.Add(productID, offset, qty)
		}
	}
}

// ProductIDs returns the registered product ids in ascending order
func (q DailyQuantities) ProductIDs() []int64 {
	ids := make([]int64, 0, len(q))
	for id := range q {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ProjectionRow is the end-of-day position of one component
// 構成品の日末在庫推移
type ProjectionRow struct {
	Date            time.Time       `json:"date"`
	Requirement     decimal.Decimal `json:"requirement"`
	Receipt         decimal.Decimal `json:"receipt"`
	ProjectedOnHand decimal.Decimal `json:"projected_onhand"`
	NeedsOrdering   bool            `json:"needs_ordering"`
	ShortageDate    *time.Time      `json:"shortage_date"`
}

// Projection is the day-by-day inventory projection of one component
// 構成品1件分の在庫推移
type Projection struct {
	ProductID      int64           `json:"product_id"`
	StartingOnHand decimal.Decimal `json:"starting_onhand"`
	Rows           []ProjectionRow `json:"rows"`
	ShortageDate   *time.Time      `json:"shortage_date"`
}

// Results converts the projection into persisted result rows
// 推移を永続化用の結果行に変換
func (p Projection) Results(runID string, calculatedAt time.Time) []MRPResult {
	results := make([]MRPResult, 0, len(p.Rows))
	for _, row := range p.Rows {
		results = append(results, MRPResult{
			RunID:           runID,
			ProductID:       p.ProductID,
			Date:            row.Date,
			ProjectedOnHand: row.ProjectedOnHand,
			NeedsOrdering:   row.NeedsOrdering,
			ShortageDate:    row.ShortageDate,
			CalculatedAt:    calculatedAt,
		})
	}
	return results
}

// Net walks the horizon day by day for every component in reqs, starting from
// its on-hand balance, subtracting requirements and adding pending receipts.
// Only the first negative day of a component carries a shortage date.
// Output is ordered by product id, then date.
// 構成品ごとに日次で所要量を差し引き入荷を加算して在庫を推移計算
func Net(h Horizon, reqs Requirements, products map[int64]Product, balances map[int64]InventoryBalance, receipts ReceiptPlan) ([]Projection, error) {
	projections := make([]Projection, 0, len(reqs))

	for _, productID := range reqs.ProductIDs() {
		product, ok := products[productID]
		if !ok {
			return nil, NewNotFoundError("product", productID)
		}

		balance := balances[productID].OnHand
		projection := Projection{
			ProductID:      productID,
			StartingOnHand: balance,
			Rows:           make([]ProjectionRow, 0, h.Days),
		}

		for offset := 0; offset < h.Days; offset++ {
			date := h.Date(offset)
			requirement := reqs.Get(productID, offset)
			receipt := receipts.Get(productID, offset)

			balance = balance.Sub(requirement).Add(receipt)

			row := ProjectionRow{
				Date:            date,
				Requirement:     requirement,
				Receipt:         receipt,
				ProjectedOnHand: balance,
				NeedsOrdering:   balance.LessThan(product.ReorderPoint),
			}
			if balance.IsNegative() && projection.ShortageDate == nil {
				shortage := date
				row.ShortageDate = &shortage
				projection.ShortageDate = &shortage
			}
			projection.Rows = append(projection.Rows, row)
		}

		projections = append(projections, projection)
	}

	return projections, nil
}
