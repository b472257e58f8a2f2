package planning

import (
	"time"

	"github.com/shopspring/decimal"
)

// Horizon is the window of consecutive days a run projects
// 計画期間（連続した日数）
type Horizon struct {
	Start time.Time // 開始日（UTC 0時）
	Days  int       // 日数
}

// NewHorizon creates a horizon of days starting on start's calendar day
// 開始日から指定日数の計画期間を作成
func NewHorizon(start time.Time, days int) Horizon {
	return Horizon{Start: DateOf(start), Days: days}
}

// Date returns the calendar day at offset
func (h Horizon) Date(offset int) time.Time {
	return h.Start.AddDate(0, 0, offset)
}

// End returns the first day after the horizon
func (h Horizon) End() time.Time {
	return h.Start.AddDate(0, 0, h.Days)
}

// Offset maps a date to its day offset, reporting false outside the horizon
// 日付を期間内の日オフセットに変換
func (h Horizon) Offset(date time.Time) (int, bool) {
	d := DateOf(date)
	if d.Before(h.Start) || !d.Before(h.End()) {
		return 0, false
	}
	return int(d.Sub(h.Start).Hours() / 24), true
}

// DailyQuantities maps a product to its per-day-offset quantities
// 製品ごと・日オフセットごとの数量
type DailyQuantities map[int64]map[int]decimal.Decimal

// Add accumulates qty for productID on offset
func (q DailyQuantities) Add(productID int64, offset int, qty decimal.Decimal) {
	days, ok := q[productID]
	if !ok {
		days = make(map[int]decimal.Decimal)
		q[productID] = days
	}
	days[offset] = days[offset].Add(qty)
}

// Get returns the quantity for productID on offset, zero when absent
func (q DailyQuantities) Get(productID int64, offset int) decimal.Decimal {
	return q[productID][offset]
}

// DemandPlan is finished-good demand per day offset
// 完成品の日別需要
type DemandPlan = DailyQuantities

// ReceiptPlan is pending receipt quantity per component per day offset
// 構成品の日別入荷予定
type ReceiptPlan = DailyQuantities

// AggregateDemand snapshots forecast demand inside the horizon.
// Days without a forecast row have zero demand.
// 期間内の需要予測を集計
func AggregateDemand(h Horizon, forecasts []DemandForecast) DemandPlan {
	plan := make(DemandPlan)
	for _, f := range forecasts {
		offset, ok := h.Offset(f.Date)
		if !ok {
			continue
		}
		plan.Add(f.ProductID, offset, f.Quantity)
	}
	return plan
}

// AggregateReceipts sums pending receipts by expected date inside the horizon
// 期間内の入荷待ち発注を集計
func AggregateReceipts(h Horizon, receipts []Receipt) ReceiptPlan {
	plan := make(ReceiptPlan)
	for _, r := range receipts {
		if r.Status != ReceiptStatusPending {
			continue
		}
		offset, ok := h.Offset(r.ExpectedDate)
		if !ok {
			continue
		}
		plan.Add(r.ProductID, offset, r.Quantity)
	}
	return plan
}

// weekdaysPerWeek is the number of build days a weekly goal is spread over
const weekdaysPerWeek = 5

// DemandFromWeeklyGoals derives daily demand from weekly shipment goals by
// spreading each goal evenly over Monday to Friday; weekends get nothing.
// 週次出荷目標を平日（月〜金）に均等配分して日別需要を作成
func DemandFromWeeklyGoals(h Horizon, goals []WeeklyShipmentGoal) DemandPlan {
	byWeek := make(map[int64]map[time.Time]decimal.Decimal)
	for _, g := range goals {
		weeks, ok := byWeek[g.ProductID]
		if !ok {
			weeks = make(map[time.Time]decimal.Decimal)
			byWeek[g.ProductID] = weeks
		}
		week := WeekStart(g.WeekStart)
		weeks[week] = weeks[week].Add(g.Goal)
	}

	perDay := decimal.NewFromInt(weekdaysPerWeek)
	plan := make(DemandPlan)
	for productID, weeks := range byWeek {
		for offset := 0; offset < h.Days; offset++ {
			d := h.Date(offset)
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				continue
			}
			goal, ok := weeks[WeekStart(d)]
			if !ok || goal.IsZero() {
				continue
			}
			plan.Add(productID, offset, goal.Div(perDay))
		}
	}
	return plan
}

// WeekStartsInHorizon lists the Mondays of every week the horizon touches
// 期間に含まれる週の月曜日一覧
func WeekStartsInHorizon(h Horizon) []time.Time {
	weeks := make([]time.Time, 0, h.Days/7+2)
	seen := make(map[time.Time]bool)
	for offset := 0; offset < h.Days; offset++ {
		w := WeekStart(h.Date(offset))
		if !seen[w] {
			seen[w] = true
			weeks = append(weeks, w)
		}
	}
	return weeks
}
