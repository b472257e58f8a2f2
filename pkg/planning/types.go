// Package planning provides time-phased materials requirements planning (MRP)
// 時系列の資材所要量計画（MRP）機能を提供
package planning

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductType classifies a product for BOM explosion
// BOM展開のための製品区分
type ProductType string

const (
	ProductTypeFinishedGood ProductType = "finished_good" // 完成品
	ProductTypeSubAssembly  ProductType = "sub_assembly"  // 中間組立品
	ProductTypeComponent    ProductType = "component"     // 部品
	ProductTypeRawMaterial  ProductType = "raw_material"  // 原材料
)

// Valid reports whether t is a known product type
// 既知の製品区分かチェック
func (t ProductType) Valid() bool {
	switch t {
	case ProductTypeFinishedGood, ProductTypeSubAssembly, ProductTypeComponent, ProductTypeRawMaterial:
		return true
	}
	return false
}

// IsLeaf reports whether explosion stops at this type
// 展開の末端となる区分かチェック
func (t ProductType) IsLeaf() bool {
	return t == ProductTypeComponent || t == ProductTypeRawMaterial
}

// Product represents a manufactured or purchased item
// 製造品または購入品を表現
type Product struct {
	ID              int64           `json:"id" db:"id"`                               // 製品ID
	Code            string          `json:"code" db:"code"`                           // 製品コード
	Name            string          `json:"name" db:"name"`                           // 製品名
	Type            ProductType     `json:"type" db:"type"`                           // 製品区分
	LeadTimeDays    int             `json:"lead_time_days" db:"lead_time_days"`       // リードタイム（日）
	ReorderPoint    decimal.Decimal `json:"reorder_point" db:"reorder_point"`         // 発注点
	ReorderQty      decimal.Decimal `json:"reorder_qty" db:"reorder_qty"`             // 発注数量
	SafetyStock     decimal.Decimal `json:"safety_stock" db:"safety_stock"`           // 安全在庫
	OrderMultiple   decimal.Decimal `json:"order_multiple" db:"order_multiple"`       // 発注単位
	MinimumOrderQty decimal.Decimal `json:"minimum_order_qty" db:"minimum_order_qty"` // 最小発注数量
	CriticalDays    int             `json:"critical_days" db:"critical_days"`         // 緊急閾値（日）
	WarningDays     int             `json:"warning_days" db:"warning_days"`           // 警告閾値（日）
	CautionDays     int             `json:"caution_days" db:"caution_days"`           // 注意閾値（日）
	IsActive        bool            `json:"is_active" db:"is_active"`                 // アクティブ状態
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`               // 作成日時
}

// EffectiveOrderMultiple returns the lot size, defaulting to 1
// 発注単位を返す（未設定の場合は1）
func (p *Product) EffectiveOrderMultiple() decimal.Decimal {
	if p.OrderMultiple.IsPositive() {
		return p.OrderMultiple
	}
	return decimal.NewFromInt(1)
}

// BOMEdge is one line of a bill of materials
// 部品表の1行を表現
type BOMEdge struct {
	ParentProductID    int64           `json:"parent_product_id" db:"parent_product_id"`       // 親製品ID
	ComponentProductID int64           `json:"component_product_id" db:"component_product_id"` // 構成品ID
	QuantityPer        decimal.Decimal `json:"quantity_per" db:"quantity_per"`                 // 親1単位あたりの所要量
}

// DemandForecast is the forecast demand of a product on one calendar day
// 1日あたりの需要予測
type DemandForecast struct {
	ProductID int64           `json:"product_id" db:"product_id"`
	Date      time.Time       `json:"date" db:"demand_date"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
}

// InventoryBalance is the current physical balance of a product
// 製品の現在在庫
type InventoryBalance struct {
	ProductID   int64           `json:"product_id" db:"product_id"`     // 製品ID
	OnHand      decimal.Decimal `json:"on_hand" db:"on_hand"`           // 手持在庫
	Allocated   decimal.Decimal `json:"allocated" db:"allocated"`       // 引当済み
	LastUpdated time.Time       `json:"last_updated" db:"last_updated"` // 最終更新日時
}

// Available returns on hand minus allocated
// 利用可能数量（手持 - 引当）
func (b InventoryBalance) Available() decimal.Decimal {
	return b.OnHand.Sub(b.Allocated)
}

// ReceiptStatus is the lifecycle state of a purchase order
// 発注書のステータス
type ReceiptStatus string

const (
	ReceiptStatusPending   ReceiptStatus = "pending"   // 入荷待ち
	ReceiptStatusReceived  ReceiptStatus = "received"  // 入荷済み
	ReceiptStatusCancelled ReceiptStatus = "cancelled" // 取消
)

// Receipt represents an incoming purchase order
// 入荷予定の発注書を表現
type Receipt struct {
	ID           int64           `json:"id" db:"id"`
	PONumber     string          `json:"po_number" db:"po_number"`
	ProductID    int64           `json:"product_id" db:"product_id"`
	ExpectedDate time.Time       `json:"expected_date" db:"expected_date"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	Status       ReceiptStatus   `json:"status" db:"status"`
	Supplier     string          `json:"supplier" db:"supplier"`
}

// WeeklyShipmentGoal is the planned shipment of a finished good for a week
// 週次出荷目標
type WeeklyShipmentGoal struct {
	ProductID int64           `json:"product_id" db:"product_id"`
	WeekStart time.Time       `json:"week_start_date" db:"week_start_date"` // 月曜日
	Goal      decimal.Decimal `json:"goal" db:"goal"`
}

// MRPResult is one projected day of one component
// 構成品1日分の在庫推移結果
type MRPResult struct {
	RunID           string          `json:"run_id" db:"run_id"`                     // 計算実行ID
	ProductID       int64           `json:"product_id" db:"product_id"`             // 製品ID
	Date            time.Time       `json:"result_date" db:"result_date"`           // 対象日
	ProjectedOnHand decimal.Decimal `json:"projected_onhand" db:"projected_onhand"` // 予測在庫
	NeedsOrdering   bool            `json:"needs_ordering" db:"needs_ordering"`     // 発注要否
	ShortageDate    *time.Time      `json:"shortage_date" db:"shortage_date"`       // 欠品日（初回のみ）
	CalculatedAt    time.Time       `json:"calculated_at" db:"calculated_at"`       // 計算日時
}

// Urgency grades how soon a shortage will happen
// 欠品までの緊急度
type Urgency string

const (
	UrgencyCritical Urgency = "critical" // 緊急
	UrgencyWarning  Urgency = "warning"  // 警告
	UrgencyCaution  Urgency = "caution"  // 注意
	UrgencyInfo     Urgency = "info"     // 情報
)

// ShortageAlert recommends an order for a component that will run short
// 欠品予定の構成品に対する発注推奨
type ShortageAlert struct {
	ProductID           int64           `json:"product_id"`
	ProductCode         string          `json:"product_code"`
	ProductName         string          `json:"product_name"`
	OnHand              decimal.Decimal `json:"on_hand"`
	ShortageDate        time.Time       `json:"shortage_date"`
	OrderByDate         time.Time       `json:"order_by_date"`
	ReorderPoint        decimal.Decimal `json:"reorder_point"`
	ReorderQty          decimal.Decimal `json:"reorder_qty"`
	RecommendedOrderQty decimal.Decimal `json:"recommended_order_qty"`
	LeadTimeDays        int             `json:"lead_time_days"`
	Urgency             Urgency         `json:"urgency"`
}

// ProductUsage names a direct parent that consumes a component
// 構成品を使用する直接の親製品
type ProductUsage struct {
	ProductID   int64           `json:"product_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	QuantityPer decimal.Decimal `json:"quantity_per"`
}

// DynamicReorderPoint is the advisory reorder point derived from shipment goals
// 出荷目標から算出した推奨発注点
type DynamicReorderPoint struct {
	ProductID           int64           `json:"product_id"`
	ProductCode         string          `json:"product_code"`
	ProductName         string          `json:"product_name"`
	CurrentReorderPoint decimal.Decimal `json:"current_reorder_point"`
	DynamicReorderPoint decimal.Decimal `json:"dynamic_reorder_point"`
	AverageWeeklyUsage  decimal.Decimal `json:"average_weekly_usage"`
	SixWeekUsage        decimal.Decimal `json:"six_week_usage"`
	SafetyStock         decimal.Decimal `json:"safety_stock"`
	UsedInProducts      []ProductUsage  `json:"used_in_products"`
}

// ShortageEvent is the first negative day of a component found by a run
// 計算で検出された欠品（初回）
type ShortageEvent struct {
	ProductID       int64           `json:"product_id"`
	ProductCode     string          `json:"product_code"`
	ShortageDate    time.Time       `json:"shortage_date"`
	ProjectedOnHand decimal.Decimal `json:"projected_onhand"`
	ReorderPoint    decimal.Decimal `json:"reorder_point"`
	ReorderQty      decimal.Decimal `json:"reorder_qty"`
}

// RunSummary describes a completed planning run
// 計画実行の結果概要
type RunSummary struct {
	RunID              string          `json:"run_id"`
	StartDate          time.Time       `json:"start_date"`
	Days               int             `json:"days"`
	ProductsProcessed  int             `json:"products_processed"`
	ComponentsAnalyzed int             `json:"components_analyzed"`
	ResultRows         int             `json:"result_rows"`
	Shortages          []ShortageEvent `json:"shortages"`
	CalculatedAt       time.Time       `json:"calculated_at"`
	Duration           time.Duration   `json:"duration"`
}

// NewRunID generates a new planning run ID
// 新しい計画実行IDを生成
func NewRunID() string {
	return uuid.New().String()
}

// DateOf truncates t to midnight UTC of its calendar day
// 時刻を切り捨ててUTCの日付に正規化
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the week containing d
// 週の開始日（月曜日）を返す
func WeekStart(d time.Time) time.Time {
	d = DateOf(d)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
