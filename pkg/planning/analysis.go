package planning

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultBuildAnalysisDays is the projection length used when none is given
	// 構成品消費分析の既定日数
	DefaultBuildAnalysisDays = 90

	// StagnantDays is the cover a component without consumption needs to be
	// reported as stagnant
	// 滞留判定の在庫日数
	StagnantDays = 90

	// DashboardDays is the projection length behind the dashboard shortages
	DashboardDays = 90

	// DashboardShortageLimit caps the shortages listed on the dashboard
	DashboardShortageLimit = 15
)

// ComponentBuildAnalysis is the daily consumption and run-out outlook of one
// component, driven by the weekly shipment goals of its direct parents
// 構成品ごとの日次消費と在庫切れ見通し
type ComponentBuildAnalysis struct {
	ProductID          int64           `json:"component_id"`
	ProductCode        string          `json:"component_code"`
	ProductName        string          `json:"component_name"`
	CurrentStock       decimal.Decimal `json:"current_stock"`
	RunOutDate         *time.Time      `json:"run_out_date"`
	DaysOfInventory    int             `json:"days_of_inventory"` // 在庫切れなしの場合は分析日数
	TotalConsumption   decimal.Decimal `json:"total_consumption"`
	UsedInProducts     []ProductUsage  `json:"used_in_products"`
	Daily              []ProjectionRow `json:"daily_data"`
	PendingReceipts    []Receipt       `json:"pending_pos"` // 期限超過分を含む
	HasPendingReceipts bool            `json:"has_pending_po"`
	ReorderPoint       decimal.Decimal `json:"reorder_point"`
	ReorderQty         decimal.Decimal `json:"reorder_qty"`
	LeadTimeDays       int             `json:"lead_time_days"`
	OrderMultiple      decimal.Decimal `json:"order_multiple"`
	MinimumOrderQty    decimal.Decimal `json:"minimum_order_qty"`
	CriticalDays       int             `json:"critical_days"`
	WarningDays        int             `json:"warning_days"`
	CautionDays        int             `json:"caution_days"`
	IsStagnant         bool            `json:"is_stagnant"`
}

// BuildAnalysis is the component-centric consumption report
// 構成品消費分析レポート
type BuildAnalysis struct {
	StartDate  time.Time                `json:"start_date"`
	Days       int                      `json:"days"`
	Components []ComponentBuildAnalysis `json:"components"`
}

// AnalyzeBuilds projects every active leaf product used in the BOM over h.
// Each weekly goal is built Monday to Friday, consumption is summed over all
// direct parents, and pending receipts arrive on their expected day. Components
// are ordered by days of inventory, soonest run-out first.
// 週次出荷目標とBOMから構成品ごとの日次消費と在庫切れ日を算出
func AnalyzeBuilds(h Horizon, products map[int64]Product, edges []BOMEdge, goals []WeeklyShipmentGoal, balances map[int64]InventoryBalance, receipts []Receipt) (*BuildAnalysis, error) {
	graph, err := NewBOMGraph(products, edges)
	if err != nil {
		return nil, err
	}

	builds := DemandFromWeeklyGoals(h, goals)

	reqs := make(Requirements)
	usedIn := make(map[int64][]ProductUsage)
	for id, p := range products {
		if !p.IsActive || !p.Type.IsLeaf() || !graph.IsUsed(id) {
			continue
		}
		reqs.Touch(id)
		for _, edge := range graph.DirectParents(id) {
			parent := products[edge.ParentProductID]
			usedIn[id] = append(usedIn[id], ProductUsage{
				ProductID:   parent.ID,
				Code:        parent.Code,
				Name:        parent.Name,
				QuantityPer: edge.QuantityPer,
			})
			for offset := 0; offset < h.Days; offset++ {
				qty := builds.Get(parent.ID, offset)
				if qty.IsZero() {
					continue
				}
				reqs.Add(id, offset, qty.Mul(edge.QuantityPer))
			}
		}
	}

	pending := make(map[int64][]Receipt)
	for _, r := range receipts {
		if r.Status == ReceiptStatusPending {
			pending[r.ProductID] = append(pending[r.ProductID], r)
		}
	}

	projections, err := Net(h, reqs, products, balances, AggregateReceipts(h, receipts))
	if err != nil {
		return nil, err
	}

	components := make([]ComponentBuildAnalysis, 0, len(projections))
	for _, projection := range projections {
		p := products[projection.ProductID]

		total := decimal.Zero
		for _, row := range projection.Rows {
			total = total.Add(row.Requirement)
		}

		daysOfInventory := h.Days
		if projection.ShortageDate != nil {
			if offset, ok := h.Offset(*projection.ShortageDate); ok {
				daysOfInventory = offset
			}
		}

		critical, warning, caution := UrgencyThresholds(p)
		componentReceipts := pending[p.ID]
		if componentReceipts == nil {
			componentReceipts = make([]Receipt, 0)
		}

		components = append(components, ComponentBuildAnalysis{
			ProductID:          p.ID,
			ProductCode:        p.Code,
			ProductName:        p.Name,
			CurrentStock:       projection.StartingOnHand,
			RunOutDate:         projection.ShortageDate,
			DaysOfInventory:    daysOfInventory,
			TotalConsumption:   total,
			UsedInProducts:     usedIn[p.ID],
			Daily:              projection.Rows,
			PendingReceipts:    componentReceipts,
			HasPendingReceipts: len(componentReceipts) > 0,
			ReorderPoint:       p.ReorderPoint,
			ReorderQty:         p.ReorderQty,
			LeadTimeDays:       p.LeadTimeDays,
			OrderMultiple:      p.EffectiveOrderMultiple(),
			MinimumOrderQty:    p.MinimumOrderQty,
			CriticalDays:       critical,
			WarningDays:        warning,
			CautionDays:        caution,
			IsStagnant:         total.IsZero() && daysOfInventory >= StagnantDays,
		})
	}

	sort.SliceStable(components, func(i, j int) bool {
		return components[i].DaysOfInventory < components[j].DaysOfInventory
	})

	return &BuildAnalysis{
		StartDate:  h.Start,
		Days:       h.Days,
		Components: components,
	}, nil
}

// DashboardShortage is one projected run-out shown on the dashboard
// ダッシュボード用の欠品見通し
type DashboardShortage struct {
	ProductID         int64           `json:"product_id"`
	ProductCode       string          `json:"product_code"`
	ProductName       string          `json:"product_name"`
	CurrentStock      decimal.Decimal `json:"current_stock"`
	ShortageDate      time.Time       `json:"projected_shortage_date"`
	DaysUntilShortage int             `json:"days_until_shortage"`
	Severity          Urgency         `json:"severity"`
}

// Dashboard summarises the product master and the most urgent run-outs
// ダッシュボード集計
type Dashboard struct {
	FinishedGoods  int                 `json:"total_products"`
	Components     int                 `json:"total_components"`
	InventoryItems int                 `json:"inventory_items"`
	LowStockCount  int                 `json:"low_stock_count"`
	Shortages      []DashboardShortage `json:"shortages"`
}

// BuildDashboard counts active products, balances below their reorder point
// and lists the most urgent run-outs of the analysis
// ダッシュボード集計を作成
func BuildDashboard(products map[int64]Product, balances map[int64]InventoryBalance, analysis *BuildAnalysis) *Dashboard {
	dashboard := &Dashboard{Shortages: make([]DashboardShortage, 0)}

	for id, p := range products {
		if !p.IsActive {
			continue
		}
		switch {
		case p.Type == ProductTypeFinishedGood:
			dashboard.FinishedGoods++
		case p.Type.IsLeaf():
			dashboard.Components++
		}

		balance, ok := balances[id]
		if !ok {
			continue
		}
		dashboard.InventoryItems++
		if p.ReorderPoint.IsPositive() && balance.OnHand.LessThan(p.ReorderPoint) {
			dashboard.LowStockCount++
		}
	}

	// analysis.Components is already ordered by days of inventory
	for _, c := range analysis.Components {
		if c.RunOutDate == nil {
			continue
		}
		if len(dashboard.Shortages) == DashboardShortageLimit {
			break
		}
		dashboard.Shortages = append(dashboard.Shortages, DashboardShortage{
			ProductID:         c.ProductID,
			ProductCode:       c.ProductCode,
			ProductName:       c.ProductName,
			CurrentStock:      c.CurrentStock,
			ShortageDate:      *c.RunOutDate,
			DaysUntilShortage: c.DaysOfInventory,
			Severity:          ClassifyUrgency(c.DaysOfInventory, products[c.ProductID]),
		})
	}

	return dashboard
}
