package planning

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ReorderLookaheadWeeks is the number of weeks of shipment goals a dynamic
// reorder point covers
// 推奨発注点で参照する週数
const ReorderLookaheadWeeks = 6

// AveragingPolicy selects the denominator for average weekly usage
// 週平均使用量の分母の決め方
type AveragingPolicy string

const (
	// AveragingNonzeroWeeks divides by the weeks that have any usage
	// 使用量のある週数で割る
	AveragingNonzeroWeeks AveragingPolicy = "nonzero_weeks"
	// AveragingAllWeeks divides by every week of the lookahead
	// 参照週数すべてで割る
	AveragingAllWeeks AveragingPolicy = "all_weeks"
)

// ParseAveragingPolicy parses a policy name; empty means AveragingNonzeroWeeks
func ParseAveragingPolicy(s string) (AveragingPolicy, error) {
	switch AveragingPolicy(s) {
	case "", AveragingNonzeroWeeks:
		return AveragingNonzeroWeeks, nil
	case AveragingAllWeeks:
		return AveragingAllWeeks, nil
	}
	return "", NewValidationError("weekly_averaging", "無効な平均化方式です", s)
}

// LookaheadWeeks returns the Mondays of the current and following weeks
// 今週から参照週数分の月曜日
func LookaheadWeeks(today time.Time) []time.Time {
	first := WeekStart(today)
	weeks := make([]time.Time, 0, ReorderLookaheadWeeks)
	for i := 0; i < ReorderLookaheadWeeks; i++ {
		weeks = append(weeks, first.AddDate(0, 0, 7*i))
	}
	return weeks
}

// CalculateDynamicReorderPoints derives an advisory reorder point for every
// active leaf product consumed by at least one BOM edge:
//
//	weekly usage[w] = sum over direct parents of goal(parent, w) * quantity_per
//	average         = sum(usage) / weeks (per policy)
//	reorder point   = average * 6 + safety stock
//
// Results are sorted by reorder point, highest first.
// 出荷目標とBOMから推奨発注点を算出
func CalculateDynamicReorderPoints(today time.Time, products map[int64]Product, edges []BOMEdge, goals []WeeklyShipmentGoal, policy AveragingPolicy) ([]DynamicReorderPoint, error) {
	graph, err := NewBOMGraph(products, edges)
	if err != nil {
		return nil, err
	}

	weeks := LookaheadWeeks(today)
	weekIndex := make(map[time.Time]int, len(weeks))
	for i, w := range weeks {
		weekIndex[w] = i
	}

	// 親製品ごとの週次目標
	goalsByProduct := make(map[int64][]decimal.Decimal)
	for _, g := range goals {
		i, ok := weekIndex[WeekStart(g.WeekStart)]
		if !ok {
			continue
		}
		series, ok := goalsByProduct[g.ProductID]
		if !ok {
			series = make([]decimal.Decimal, len(weeks))
			goalsByProduct[g.ProductID] = series
		}
		series[i] = series[i].Add(g.Goal)
	}

	ids := make([]int64, 0, len(products))
	for id, p := range products {
		if p.IsActive && p.Type.IsLeaf() && graph.IsUsed(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	lookahead := decimal.NewFromInt(ReorderLookaheadWeeks)
	points := make([]DynamicReorderPoint, 0, len(ids))
	for _, id := range ids {
		component := products[id]

		usage := make([]decimal.Decimal, len(weeks))
		usedIn := make([]ProductUsage, 0)
		for _, edge := range graph.DirectParents(id) {
			parent, err := graph.Product(edge.ParentProductID)
			if err != nil {
				return nil, err
			}
			usedIn = append(usedIn, ProductUsage{
				ProductID:   parent.ID,
				Code:        parent.Code,
				Name:        parent.Name,
				QuantityPer: edge.QuantityPer,
			})
			for i, goal := range goalsByProduct[parent.ID] {
				usage[i] = usage[i].Add(goal.Mul(edge.QuantityPer))
			}
		}

		average, err := averageWeeklyUsage(usage, policy)
		if err != nil {
			return nil, err
		}
		sixWeek := average.Mul(lookahead)

		points = append(points, DynamicReorderPoint{
			ProductID:           component.ID,
			ProductCode:         component.Code,
			ProductName:         component.Name,
			CurrentReorderPoint: component.ReorderPoint,
			DynamicReorderPoint: sixWeek.Add(component.SafetyStock).Round(2),
			AverageWeeklyUsage:  average.Round(2),
			SixWeekUsage:        sixWeek.Round(2),
			SafetyStock:         component.SafetyStock,
			UsedInProducts:      usedIn,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].DynamicReorderPoint.GreaterThan(points[j].DynamicReorderPoint)
	})

	return points, nil
}

func averageWeeklyUsage(usage []decimal.Decimal, policy AveragingPolicy) (decimal.Decimal, error) {
	total := decimal.Zero
	nonzero := 0
	for _, u := range usage {
		total = total.Add(u)
		if !u.IsZero() {
			nonzero++
		}
	}

	var weeks int
	switch policy {
	case AveragingNonzeroWeeks, "":
		weeks = nonzero
	case AveragingAllWeeks:
		weeks = len(usage)
	default:
		return decimal.Zero, fmt.Errorf("未対応の平均化方式です: %s", policy)
	}

	if weeks == 0 {
		return decimal.Zero, nil
	}
	return total.Div(decimal.NewFromInt(int64(weeks))), nil
}

// ReorderPointUpdates maps each report entry to its new reorder point
// 推奨発注点を製品IDごとの更新値に変換
func ReorderPointUpdates(points []DynamicReorderPoint) map[int64]decimal.Decimal {
	updates := make(map[int64]decimal.Decimal, len(points))
	for _, p := range points {
		updates[p.ProductID] = p.DynamicReorderPoint
	}
	return updates
}
