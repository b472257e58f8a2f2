package planning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProduct(t *testing.T) {
	valid := product(1, "P-001", ProductTypeComponent)
	assert.NoError(t, ValidateProduct(valid))

	tests := []struct {
		name   string
		mutate func(p *Product)
		field  string
	}{
		{"空のコード", func(p *Product) { p.Code = " " }, "code"},
		{"無効な区分", func(p *Product) { p.Type = "service" }, "type"},
		{"負のリードタイム", func(p *Product) { p.LeadTimeDays = -1 }, "lead_time_days"},
		{"負の発注点", func(p *Product) { p.ReorderPoint = dec("-1") }, "reorder_point"},
		{"負の最小発注数量", func(p *Product) { p.MinimumOrderQty = dec("-0.5") }, "minimum_order_qty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)

			err := ValidateProduct(p)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestValidateBOMEdge(t *testing.T) {
	assert.NoError(t, ValidateBOMEdge(edge(1, 2, "0.25")))
	assert.Error(t, ValidateBOMEdge(edge(1, 2, "0")))
	assert.Error(t, ValidateBOMEdge(edge(1, 1, "1")))
}

func TestValidateHorizonDays(t *testing.T) {
	assert.NoError(t, ValidateHorizonDays(1))
	assert.NoError(t, ValidateHorizonDays(MaxHorizonDays))
	assert.Error(t, ValidateHorizonDays(0))
	assert.Error(t, ValidateHorizonDays(-3))
	assert.Error(t, ValidateHorizonDays(MaxHorizonDays+1))
}

func TestValidateBOM_Valid(t *testing.T) {
	result := ValidateBOM(bikeProducts(), bikeEdges())

	assert.True(t, result.Valid())
	assert.NoError(t, result.Err())
	assert.Empty(t, result.CycleMembers)
}

func TestValidateBOM_DetectsCycle(t *testing.T) {
	products := productMap(
		product(1, "FG", ProductTypeFinishedGood),
		product(2, "SA2", ProductTypeSubAssembly),
		product(3, "SA3", ProductTypeSubAssembly),
		product(4, "SA4", ProductTypeSubAssembly),
		product(5, "SA5", ProductTypeSubAssembly),
	)
	edges := []BOMEdge{
		edge(1, 2, "1"),
		edge(2, 3, "1"),
		edge(3, 4, "1"),
		edge(4, 2, "1"),
		edge(1, 5, "1"),
	}

	result := ValidateBOM(products, edges)

	assert.False(t, result.Valid())
	assert.Equal(t, []int64{2, 3, 4}, result.CycleMembers)

	var validationErr *ValidationError
	require.True(t, errors.As(result.Err(), &validationErr))
	assert.Equal(t, "bom", validationErr.Field)
}

func TestValidateBOM_DuplicatesAndUnknowns(t *testing.T) {
	edges := []BOMEdge{
		edge(1, 3, "1"),
		edge(1, 3, "2"),
		edge(1, 42, "1"),
		edge(2, 2, "1"),
	}

	result := ValidateBOM(bikeProducts(), edges)

	assert.False(t, result.Valid())
	assert.Len(t, result.DuplicateEdges, 1)
	assert.Equal(t, []int64{42}, result.UnknownProducts)
	assert.Len(t, result.InvalidEdges, 1)
	assert.Len(t, result.Errors, 3)
}

func TestValidateBOM_FinishedGoodAsComponent(t *testing.T) {
	products := productMap(
		product(1, "FG1", ProductTypeFinishedGood),
		product(2, "FG2", ProductTypeFinishedGood),
	)

	result := ValidateBOM(products, []BOMEdge{edge(1, 2, "1")})

	assert.False(t, result.Valid())
	assert.Equal(t, []int64{2}, result.FinishedGoodsAsComponents)
}

func TestMergeBOMEdges(t *testing.T) {
	stored := []BOMEdge{edge(1, 2, "1"), edge(2, 3, "4"), edge(1, 5, "1")}
	submitted := []BOMEdge{edge(2, 3, "6"), edge(3, 2, "1")}

	merged := MergeBOMEdges(stored, submitted)

	require.Len(t, merged, 4)
	assert.Equal(t, edge(1, 2, "1"), merged[0])
	assert.Equal(t, edge(1, 5, "1"), merged[1])
	assert.Equal(t, int64(2), merged[2].ParentProductID)
	assertDecimal(t, "6", merged[2].QuantityPer)
	assert.Equal(t, edge(3, 2, "1"), merged[3])

	assert.Equal(t, stored, MergeBOMEdges(stored, nil))
}

func TestValidateBOM_CycleClosedByMergedLine(t *testing.T) {
	products := productMap(
		product(2, "SA2", ProductTypeSubAssembly),
		product(3, "SA3", ProductTypeSubAssembly),
	)

	result := ValidateBOM(products, MergeBOMEdges([]BOMEdge{edge(2, 3, "1")}, []BOMEdge{edge(3, 2, "1")}))

	assert.False(t, result.Valid())
	assert.Equal(t, []int64{2, 3}, result.CycleMembers)
}
