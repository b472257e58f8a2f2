package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiGoMRP/pkg/planning"
	"github.com/nemonet1337/zaiGoMRP/pkg/planning/storage"
)

func TestRun_PrintsSummaryAndAlerts(t *testing.T) {
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	store := storage.NewMemoryStorage()
	store.AddProducts(
		planning.Product{ID: 1, Code: "FG", Type: planning.ProductTypeFinishedGood, IsActive: true},
		planning.Product{ID: 2, Code: "C", Type: planning.ProductTypeComponent, ReorderQty: decimal.NewFromInt(10), IsActive: true},
	)
	store.AddBOMEdges(planning.BOMEdge{ParentProductID: 1, ComponentProductID: 2, QuantityPer: decimal.NewFromInt(1)})
	store.AddDemandForecasts(planning.DemandForecast{ProductID: 1, Date: today.AddDate(0, 0, 2), Quantity: decimal.NewFromInt(5)})
	store.AddWeeklyShipmentGoals(planning.WeeklyShipmentGoal{ProductID: 1, WeekStart: today, Goal: decimal.NewFromInt(6)})

	engine := planning.NewEngine(store, zap.NewNop(), nil, nil,
		planning.WithClock(func() time.Time { return today }))

	var out bytes.Buffer
	err := run(context.Background(), engine, 7, 7, true, &out)
	require.NoError(t, err)

	var printed struct {
		Summary   planning.RunSummary      `json:"summary"`
		Shortages []planning.ShortageAlert `json:"shortages"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))

	assert.Equal(t, 7, printed.Summary.ResultRows)
	require.Len(t, printed.Shortages, 1)
	assert.Equal(t, "C", printed.Shortages[0].ProductCode)
	assert.True(t, printed.Shortages[0].RecommendedOrderQty.Equal(decimal.NewFromInt(10)))

	products, err := store.ListProducts(context.Background())
	require.NoError(t, err)
	// 週6個 × 6週（使用週のみ平均）→ 6*6 = 36
	assert.True(t, products[1].ReorderPoint.Equal(decimal.NewFromInt(36)))
}

func TestRun_PropagatesCalculateError(t *testing.T) {
	engine := planning.NewEngine(storage.NewMemoryStorage(), zap.NewNop(), nil, nil)

	err := run(context.Background(), engine, 1000, 7, false, &bytes.Buffer{})

	assert.Error(t, err)
}
