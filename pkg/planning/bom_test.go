package planning

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bikeProducts() map[int64]Product {
	return productMap(
		product(1, "FG", ProductTypeFinishedGood),
		product(2, "SA", ProductTypeSubAssembly),
		product(3, "C3", ProductTypeComponent),
		product(4, "C4", ProductTypeComponent),
		product(5, "R5", ProductTypeRawMaterial),
	)
}

func bikeEdges() []BOMEdge {
	return []BOMEdge{
		edge(1, 2, "2"),
		edge(1, 3, "1"),
		edge(2, 4, "3"),
		edge(2, 5, "0.5"),
	}
}

// chainBOM は完成品 → 中間組立品 n 段 → 部品 の直列BOMを作成
func chainBOM(n int) (map[int64]Product, []BOMEdge) {
	products := productMap(product(1, "FG", ProductTypeFinishedGood), product(999, "LEAF", ProductTypeComponent))
	edges := make([]BOMEdge, 0, n+1)
	parent := int64(1)
	for i := 1; i <= n; i++ {
		id := int64(100 + i)
		products[id] = product(id, "SA", ProductTypeSubAssembly)
		edges = append(edges, edge(parent, id, "1"))
		parent = id
	}
	edges = append(edges, edge(parent, 999, "1"))
	return products, edges
}

func TestBOMGraph_Explode(t *testing.T) {
	graph, err := NewBOMGraph(bikeProducts(), bikeEdges())
	require.NoError(t, err)

	reqs, err := graph.Explode(1, decimal.NewFromInt(10))
	require.NoError(t, err)

	// 中間組立品そのものは結果に含まれない
	assert.Len(t, reqs, 3)
	assertDecimal(t, "10", reqs[3])
	assertDecimal(t, "60", reqs[4])
	assertDecimal(t, "10", reqs[5])
}

func TestBOMGraph_ExplodeIsAdditive(t *testing.T) {
	graph, err := NewBOMGraph(bikeProducts(), bikeEdges())
	require.NoError(t, err)

	a, err := graph.Explode(1, dec("4"))
	require.NoError(t, err)
	b, err := graph.Explode(1, dec("6.5"))
	require.NoError(t, err)
	sum, err := graph.Explode(1, dec("10.5"))
	require.NoError(t, err)

	for id, qty := range sum {
		assert.True(t, a[id].Add(b[id]).Equal(qty), "component %d", id)
	}
}

func TestBOMGraph_ExplodeSumsAcrossPaths(t *testing.T) {
	products := productMap(
		product(1, "FG", ProductTypeFinishedGood),
		product(2, "SA2", ProductTypeSubAssembly),
		product(3, "SA3", ProductTypeSubAssembly),
		product(4, "C4", ProductTypeComponent),
	)
	edges := []BOMEdge{
		edge(1, 2, "1"),
		edge(1, 3, "2"),
		edge(2, 4, "2"),
		edge(3, 4, "3"),
		edge(1, 4, "1"),
	}
	graph, err := NewBOMGraph(products, edges)
	require.NoError(t, err)

	reqs, err := graph.Explode(1, decimal.NewFromInt(1))
	require.NoError(t, err)

	// 2 + 2*3 + 1
	assertDecimal(t, "9", reqs[4])
}

func TestBOMGraph_DepthLimit(t *testing.T) {
	t.Run("10段は展開できる", func(t *testing.T) {
		products, edges := chainBOM(MaxBOMDepth)
		graph, err := NewBOMGraph(products, edges)
		require.NoError(t, err)

		reqs, err := graph.Explode(1, decimal.NewFromInt(3))
		require.NoError(t, err)
		assertDecimal(t, "3", reqs[999])
	})

	t.Run("11段は階層超過", func(t *testing.T) {
		products, edges := chainBOM(MaxBOMDepth + 1)
		graph, err := NewBOMGraph(products, edges)
		require.NoError(t, err)

		_, err = graph.Explode(1, decimal.NewFromInt(3))
		require.Error(t, err)

		var depthErr *DepthExceededError
		require.True(t, errors.As(err, &depthErr))
		assert.Equal(t, MaxBOMDepth+1, depthErr.Depth)
		assert.Equal(t, MaxBOMDepth, depthErr.Limit)
		assert.Equal(t, int64(100+MaxBOMDepth+1), depthErr.ProductID)
	})
}

func TestBOMGraph_CycleHitsDepthLimit(t *testing.T) {
	products := productMap(
		product(1, "FG", ProductTypeFinishedGood),
		product(2, "SA2", ProductTypeSubAssembly),
		product(3, "SA3", ProductTypeSubAssembly),
	)
	edges := []BOMEdge{
		edge(1, 2, "1"),
		edge(2, 3, "1"),
		edge(3, 2, "1"),
	}
	graph, err := NewBOMGraph(products, edges)
	require.NoError(t, err)

	_, err = graph.Explode(1, decimal.NewFromInt(1))

	var depthErr *DepthExceededError
	assert.True(t, errors.As(err, &depthErr))
}

func TestNewBOMGraph_Rejects(t *testing.T) {
	t.Run("未登録の構成品", func(t *testing.T) {
		_, err := NewBOMGraph(bikeProducts(), []BOMEdge{edge(1, 42, "1")})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("所要量が0", func(t *testing.T) {
		_, err := NewBOMGraph(bikeProducts(), []BOMEdge{edge(1, 3, "0")})
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "quantity_per", validationErr.Field)
	})

	t.Run("所要量が負", func(t *testing.T) {
		_, err := NewBOMGraph(bikeProducts(), []BOMEdge{edge(1, 3, "-1")})
		var validationErr *ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func TestBOMGraph_DirectParents(t *testing.T) {
	products := productMap(
		product(1, "FG1", ProductTypeFinishedGood),
		product(2, "FG2", ProductTypeFinishedGood),
		product(3, "C3", ProductTypeComponent),
	)
	graph, err := NewBOMGraph(products, []BOMEdge{edge(2, 3, "4"), edge(1, 3, "2")})
	require.NoError(t, err)

	parents := graph.DirectParents(3)
	require.Len(t, parents, 2)
	assert.Equal(t, int64(1), parents[0].ParentProductID)
	assert.Equal(t, int64(2), parents[1].ParentProductID)
	assert.True(t, graph.IsUsed(3))
	assert.False(t, graph.IsUsed(1))

	_, err = graph.Product(77)
	assert.ErrorIs(t, err, ErrNotFound)
}
