package planning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxHorizonDays bounds the planning horizon
// 計画期間の上限（日）
const MaxHorizonDays = 365

// ValidateProduct 製品マスタをバリデーション
func ValidateProduct(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return NewValidationError("code", "製品コードが空です", p.Code)
	}
	if len(p.Code) > 50 {
		return NewValidationError("code", "製品コードが長すぎます", p.Code)
	}
	if !p.Type.Valid() {
		return NewValidationError("type", "無効な製品区分です", string(p.Type))
	}
	if p.LeadTimeDays < 0 {
		return NewValidationError("lead_time_days", "リードタイムは0以上である必要があります", fmt.Sprintf("%d", p.LeadTimeDays))
	}

	quantities := []struct {
		field string
		value decimal.Decimal
	}{
		{"reorder_point", p.ReorderPoint},
		{"reorder_qty", p.ReorderQty},
		{"safety_stock", p.SafetyStock},
		{"order_multiple", p.OrderMultiple},
		{"minimum_order_qty", p.MinimumOrderQty},
	}
	for _, q := range quantities {
		if q.value.IsNegative() {
			return NewValidationError(q.field, "負の数量は許可されていません", q.value.String())
		}
	}

	return nil
}

// ValidateBOMEdge BOM行をバリデーション
func ValidateBOMEdge(e BOMEdge) error {
	if !e.QuantityPer.IsPositive() {
		return NewValidationError("quantity_per", "所要量は正の値である必要があります", e.QuantityPer.String())
	}
	if e.ParentProductID == e.ComponentProductID {
		return NewValidationError("component_product_id", "親製品と構成品が同じです", formatID(e.ComponentProductID))
	}
	return nil
}

// ValidateHorizonDays 計画期間をバリデーション
func ValidateHorizonDays(days int) error {
	if days <= 0 || days > MaxHorizonDays {
		return NewValidationError("days", fmt.Sprintf("計画期間は1〜%d日である必要があります", MaxHorizonDays), fmt.Sprintf("%d", days))
	}
	return nil
}

// BOMValidationResult collects every problem found in a BOM edge set
// BOM検証結果
type BOMValidationResult struct {
	InvalidEdges              []BOMEdge `json:"invalid_edges"`
	DuplicateEdges            []BOMEdge `json:"duplicate_edges"`
	UnknownProducts           []int64   `json:"unknown_products"`
	FinishedGoodsAsComponents []int64   `json:"finished_goods_as_components"`
	CycleMembers              []int64   `json:"cycle_members"`
	Errors                    []string  `json:"errors"`
}

// Valid reports whether no problem was found
// 問題がなければtrue
func (r *BOMValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Err folds the result into a single ValidationError, or nil
// 検証結果をValidationErrorにまとめる
func (r *BOMValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return NewValidationError("bom", strings.Join(r.Errors, "; "), fmt.Sprintf("%d件", len(r.Errors)))
}

// ValidateBOM checks an edge set at the data-entry boundary: malformed lines,
// duplicate parent/component pairs, unknown products, finished goods used as
// components, and cycles among sub-assemblies.
// データ登録時にBOM全体を検証
func ValidateBOM(products map[int64]Product, edges []BOMEdge) *BOMValidationResult {
	result := &BOMValidationResult{
		InvalidEdges:              make([]BOMEdge, 0),
		DuplicateEdges:            make([]BOMEdge, 0),
		UnknownProducts:           make([]int64, 0),
		FinishedGoodsAsComponents: make([]int64, 0),
		CycleMembers:              make([]int64, 0),
		Errors:                    make([]string, 0),
	}

	type pair struct{ parent, component int64 }
	seen := make(map[pair]bool)
	unknown := make(map[int64]bool)

	for _, edge := range edges {
		if err := ValidateBOMEdge(edge); err != nil {
			result.InvalidEdges = append(result.InvalidEdges, edge)
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		key := pair{edge.ParentProductID, edge.ComponentProductID}
		if seen[key] {
			result.DuplicateEdges = append(result.DuplicateEdges, edge)
			result.Errors = append(result.Errors, fmt.Sprintf("重複したBOM行: %d -> %d", edge.ParentProductID, edge.ComponentProductID))
			continue
		}
		seen[key] = true

		for _, id := range []int64{edge.ParentProductID, edge.ComponentProductID} {
			if _, ok := products[id]; !ok && !unknown[id] {
				unknown[id] = true
				result.UnknownProducts = append(result.UnknownProducts, id)
				result.Errors = append(result.Errors, fmt.Sprintf("製品が見つかりません: %d", id))
			}
		}

		if component, ok := products[edge.ComponentProductID]; ok && component.Type == ProductTypeFinishedGood {
			result.FinishedGoodsAsComponents = append(result.FinishedGoodsAsComponents, component.ID)
			result.Errors = append(result.Errors, fmt.Sprintf("完成品は構成品にできません: %s", component.Code))
		}
	}

	result.CycleMembers = findSubAssemblyCycles(products, edges)
	if len(result.CycleMembers) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("中間組立品に循環参照があります: %v", result.CycleMembers))
	}

	return result
}

// MergeBOMEdges overlays submitted lines on the stored BOM. A submitted line
// replaces every stored line with the same parent/component pair; stored order
// is kept and submitted lines follow it.
// 登録予定のBOM行を既存BOMに重ねる（同じ親・構成品の組は置換）
func MergeBOMEdges(stored, submitted []BOMEdge) []BOMEdge {
	type pair struct{ parent, component int64 }
	replaced := make(map[pair]bool, len(submitted))
	for _, edge := range submitted {
		replaced[pair{edge.ParentProductID, edge.ComponentProductID}] = true
	}

	merged := make([]BOMEdge, 0, len(stored)+len(submitted))
	for _, edge := range stored {
		if replaced[pair{edge.ParentProductID, edge.ComponentProductID}] {
			continue
		}
		merged = append(merged, edge)
	}
	return append(merged, submitted...)
}

// findSubAssemblyCycles runs Kahn's topological sort over the subgraph whose
// parents and components are both sub-assemblies. Nodes left with a nonzero
// in-degree are on, or downstream of, a cycle.
func findSubAssemblyCycles(products map[int64]Product, edges []BOMEdge) []int64 {
	isSub := func(id int64) bool {
		p, ok := products[id]
		return ok && p.Type == ProductTypeSubAssembly
	}

	inDegree := make(map[int64]int)
	adjacency := make(map[int64][]int64)
	for _, edge := range edges {
		if !isSub(edge.ParentProductID) || !isSub(edge.ComponentProductID) {
			continue
		}
		if edge.ParentProductID == edge.ComponentProductID {
			continue
		}
		adjacency[edge.ParentProductID] = append(adjacency[edge.ParentProductID], edge.ComponentProductID)
		inDegree[edge.ComponentProductID]++
		if _, ok := inDegree[edge.ParentProductID]; !ok {
			inDegree[edge.ParentProductID] = 0
		}
	}

	queue := make([]int64, 0)
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range adjacency[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	remaining := make([]int64, 0)
	for id, degree := range inDegree {
		if degree > 0 {
			remaining = append(remaining, id)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })
	return remaining
}
