package planning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reorderFixture() (map[int64]Product, []BOMEdge, []WeeklyShipmentGoal) {
	c10 := product(10, "C10", ProductTypeComponent)
	c10.SafetyStock, c10.ReorderPoint = dec("5"), dec("3")
	r11 := product(11, "R11", ProductTypeRawMaterial)
	c13 := product(13, "C13", ProductTypeComponent)
	c13.SafetyStock = dec("50")

	products := productMap(
		product(1, "FG1", ProductTypeFinishedGood),
		product(2, "FG2", ProductTypeFinishedGood),
		product(3, "FG3", ProductTypeFinishedGood),
		c10, r11,
		product(12, "C12", ProductTypeComponent),
		c13,
	)
	edges := []BOMEdge{
		edge(1, 10, "2"),
		edge(2, 10, "1"),
		edge(1, 11, "0.5"),
		edge(3, 13, "4"),
	}
	goals := []WeeklyShipmentGoal{
		{ProductID: 1, WeekStart: day(0), Goal: dec("10")},
		{ProductID: 1, WeekStart: day(7), Goal: dec("10")},
		{ProductID: 2, WeekStart: day(0), Goal: dec("5")},
		{ProductID: 2, WeekStart: day(35), Goal: dec("7")},
		{ProductID: 2, WeekStart: day(42), Goal: dec("1000")}, // 参照期間外
	}
	return products, edges, goals
}

func TestCalculateDynamicReorderPoints_NonzeroWeeks(t *testing.T) {
	products, edges, goals := reorderFixture()

	points, err := CalculateDynamicReorderPoints(day(2), products, edges, goals, AveragingNonzeroWeeks)
	require.NoError(t, err)
	require.Len(t, points, 3)

	// 推奨発注点の降順
	assert.Equal(t, int64(10), points[0].ProductID)
	assert.Equal(t, int64(13), points[1].ProductID)
	assert.Equal(t, int64(11), points[2].ProductID)

	// C10: 週使用量 25, 20, 0, 0, 0, 7 → 52 / 3週
	c10 := points[0]
	assertDecimal(t, "17.33", c10.AverageWeeklyUsage)
	assertDecimal(t, "104", c10.SixWeekUsage)
	assertDecimal(t, "109", c10.DynamicReorderPoint)
	assertDecimal(t, "3", c10.CurrentReorderPoint)
	assertDecimal(t, "5", c10.SafetyStock)
	require.Len(t, c10.UsedInProducts, 2)
	assert.Equal(t, int64(1), c10.UsedInProducts[0].ProductID)
	assertDecimal(t, "2", c10.UsedInProducts[0].QuantityPer)
	assert.Equal(t, int64(2), c10.UsedInProducts[1].ProductID)

	// C13: 出荷目標なし → 安全在庫のみ
	assertDecimal(t, "0", points[1].AverageWeeklyUsage)
	assertDecimal(t, "50", points[1].DynamicReorderPoint)

	// R11: 5, 5 → 平均5
	assertDecimal(t, "5", points[2].AverageWeeklyUsage)
	assertDecimal(t, "30", points[2].DynamicReorderPoint)
}

func TestCalculateDynamicReorderPoints_AllWeeks(t *testing.T) {
	products, edges, goals := reorderFixture()

	points, err := CalculateDynamicReorderPoints(testToday, products, edges, goals, AveragingAllWeeks)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, int64(10), points[0].ProductID)
	assertDecimal(t, "8.67", points[0].AverageWeeklyUsage)
	assertDecimal(t, "52", points[0].SixWeekUsage)
	assertDecimal(t, "57", points[0].DynamicReorderPoint)

	assert.Equal(t, int64(13), points[1].ProductID)

	assert.Equal(t, int64(11), points[2].ProductID)
	assertDecimal(t, "1.67", points[2].AverageWeeklyUsage)
	assertDecimal(t, "10", points[2].DynamicReorderPoint)
}

func TestCalculateDynamicReorderPoints_TiesByProductID(t *testing.T) {
	products := productMap(
		product(1, "FG", ProductTypeFinishedGood),
		product(8, "C8", ProductTypeComponent),
		product(4, "C4", ProductTypeComponent),
	)
	edges := []BOMEdge{edge(1, 8, "1"), edge(1, 4, "1")}
	goals := []WeeklyShipmentGoal{{ProductID: 1, WeekStart: testToday, Goal: dec("3")}}

	points, err := CalculateDynamicReorderPoints(testToday, products, edges, goals, AveragingNonzeroWeeks)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(4), points[0].ProductID)
	assert.Equal(t, int64(8), points[1].ProductID)
}

func TestCalculateDynamicReorderPoints_SkipsInactive(t *testing.T) {
	products, edges, goals := reorderFixture()
	c10 := products[10]
	c10.IsActive = false
	products[10] = c10

	points, err := CalculateDynamicReorderPoints(testToday, products, edges, goals, AveragingNonzeroWeeks)
	require.NoError(t, err)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.NotEqual(t, int64(10), p.ProductID)
	}
}

func TestParseAveragingPolicy(t *testing.T) {
	policy, err := ParseAveragingPolicy("")
	require.NoError(t, err)
	assert.Equal(t, AveragingNonzeroWeeks, policy)

	policy, err = ParseAveragingPolicy("all_weeks")
	require.NoError(t, err)
	assert.Equal(t, AveragingAllWeeks, policy)

	_, err = ParseAveragingPolicy("median")
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestLookaheadWeeks(t *testing.T) {
	weeks := LookaheadWeeks(day(4))

	require.Len(t, weeks, ReorderLookaheadWeeks)
	assert.Equal(t, testToday, weeks[0])
	assert.Equal(t, day(35), weeks[5])
}

func TestReorderPointUpdates(t *testing.T) {
	updates := ReorderPointUpdates([]DynamicReorderPoint{
		{ProductID: 1, DynamicReorderPoint: dec("12.5")},
		{ProductID: 2, DynamicReorderPoint: dec("0")},
	})

	assert.Len(t, updates, 2)
	assertDecimal(t, "12.5", updates[1])
	assertDecimal(t, "0", updates[2])
}
