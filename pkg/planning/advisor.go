package planning

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Default urgency thresholds in days, used when a product leaves them unset
// 緊急度閾値のデフォルト（日）
const (
	DefaultCriticalDays = 7
	DefaultWarningDays  = 14
	DefaultCautionDays  = 30
)

// RoundUpToLotSize raises qty to minimum and then up to the next multiple of lotSize.
// A non-positive qty means nothing to order.
// 最小発注数量と発注単位に合わせて数量を切り上げ
func RoundUpToLotSize(qty, lotSize, minimum decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() {
		return decimal.Zero
	}

	if qty.LessThan(minimum) {
		qty = minimum
	}

	if lotSize.IsPositive() {
		lots, remainder := qty.QuoRem(lotSize, 0)
		if !remainder.IsZero() {
			lots = lots.Add(decimal.NewFromInt(1))
		}
		return lots.Mul(lotSize)
	}

	return qty
}

// UrgencyThresholds returns the product's critical, warning and caution days,
// falling back to the defaults for unset values
// 製品の緊急度閾値（未設定はデフォルト）
func UrgencyThresholds(p Product) (critical, warning, caution int) {
	critical, warning, caution = p.CriticalDays, p.WarningDays, p.CautionDays
	if critical <= 0 {
		critical = DefaultCriticalDays
	}
	if warning <= 0 {
		warning = DefaultWarningDays
	}
	if caution <= 0 {
		caution = DefaultCautionDays
	}
	return critical, warning, caution
}

// ClassifyUrgency grades the days left until a shortage against the product's thresholds
// 欠品までの日数から緊急度を判定
func ClassifyUrgency(daysUntilShortage int, p Product) Urgency {
	critical, warning, caution := UrgencyThresholds(p)

	switch {
	case daysUntilShortage < critical:
		return UrgencyCritical
	case daysUntilShortage < warning:
		return UrgencyWarning
	case daysUntilShortage < caution:
		return UrgencyCaution
	default:
		return UrgencyInfo
	}
}

// BuildShortageAlerts turns flagged result rows into order recommendations.
// Only the earliest shortage per component within today+days is reported, and
// only when its order-by date (shortage minus lead time) falls in the same
// window. Alerts are sorted by order-by date; ties keep result order.
// 結果行から欠品アラート（発注推奨）を作成
func BuildShortageAlerts(today time.Time, days int, results []MRPResult, products map[int64]Product, balances map[int64]InventoryBalance) ([]ShortageAlert, error) {
	today = DateOf(today)
	cutoff := today.AddDate(0, 0, days)

	earliest := make(map[int64]time.Time)
	order := make([]int64, 0)
	for _, r := range results {
		if r.ShortageDate == nil {
			continue
		}
		shortage := DateOf(*r.ShortageDate)
		if shortage.After(cutoff) {
			continue
		}
		current, ok := earliest[r.ProductID]
		if !ok {
			order = append(order, r.ProductID)
			earliest[r.ProductID] = shortage
			continue
		}
		if shortage.Before(current) {
			earliest[r.ProductID] = shortage
		}
	}

	alerts := make([]ShortageAlert, 0, len(order))
	for _, productID := range order {
		product, ok := products[productID]
		if !ok {
			return nil, NewNotFoundError("product", productID)
		}

		shortage := earliest[productID]
		orderBy := shortage.AddDate(0, 0, -product.LeadTimeDays)
		if orderBy.After(cutoff) {
			continue
		}

		daysUntil := int(shortage.Sub(today).Hours() / 24)
		alerts = append(alerts, ShortageAlert{
			ProductID:           product.ID,
			ProductCode:         product.Code,
			ProductName:         product.Name,
			OnHand:              balances[productID].OnHand,
			ShortageDate:        shortage,
			OrderByDate:         orderBy,
			ReorderPoint:        product.ReorderPoint,
			ReorderQty:          product.ReorderQty,
			RecommendedOrderQty: RoundUpToLotSize(product.ReorderQty, product.EffectiveOrderMultiple(), product.MinimumOrderQty),
			LeadTimeDays:        product.LeadTimeDays,
			Urgency:             ClassifyUrgency(daysUntil, product),
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].OrderByDate.Before(alerts[j].OrderByDate)
	})

	return alerts, nil
}
