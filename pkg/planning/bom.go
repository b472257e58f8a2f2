package planning

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// MaxBOMDepth is the deepest sub-assembly level Explode will expand
// 展開する中間組立品の最大階層
const MaxBOMDepth = 10

// BOMGraph is an immutable index of BOM edges by parent
// 親製品ごとのBOM索引（不変）
type BOMGraph struct {
	products map[int64]Product
	children map[int64][]BOMEdge
	parents  map[int64][]BOMEdge
}

// NewBOMGraph indexes edges and rejects malformed ones
// BOMを索引化し、不正な行を拒否
func NewBOMGraph(products map[int64]Product, edges []BOMEdge) (*BOMGraph, error) {
	g := &BOMGraph{
		products: products,
		children: make(map[int64][]BOMEdge),
		parents:  make(map[int64][]BOMEdge),
	}

	for _, edge := range edges {
		if err := ValidateBOMEdge(edge); err != nil {
			return nil, err
		}
		if _, ok := products[edge.ParentProductID]; !ok {
			return nil, NewNotFoundError("product", edge.ParentProductID)
		}
		if _, ok := products[edge.ComponentProductID]; !ok {
			return nil, NewNotFoundError("product", edge.ComponentProductID)
		}
		g.children[edge.ParentProductID] = append(g.children[edge.ParentProductID], edge)
		g.parents[edge.ComponentProductID] = append(g.parents[edge.ComponentProductID], edge)
	}

	// 展開順序を入力順に依存させない
	for id := range g.children {
		lines := g.children[id]
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].ComponentProductID < lines[j].ComponentProductID })
	}
	for id := range g.parents {
		lines := g.parents[id]
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].ParentProductID < lines[j].ParentProductID })
	}

	return g, nil
}

type explodeFrame struct {
	productID int64
	quantity  decimal.Decimal
	depth     int
}

// Explode expands quantity units of productID into leaf component quantities.
// Sub-assemblies are expanded in place; leaves reached by several paths are summed.
// 指定数量をBOM展開し、末端構成品ごとの所要量を返す
func (g *BOMGraph) Explode(productID int64, quantity decimal.Decimal) (map[int64]decimal.Decimal, error) {
	requirements := make(map[int64]decimal.Decimal)
	stack := []explodeFrame{{productID: productID, quantity: quantity, depth: 0}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if frame.depth > MaxBOMDepth {
			return nil, NewDepthExceededError(frame.productID, frame.depth)
		}

		for _, line := range g.children[frame.productID] {
			component, ok := g.products[line.ComponentProductID]
			if !ok {
				return nil, NewNotFoundError("product", line.ComponentProductID)
			}

			required := frame.quantity.Mul(line.QuantityPer)
			if component.Type == ProductTypeSubAssembly {
				stack = append(stack, explodeFrame{
					productID: component.ID,
					quantity:  required,
					depth:     frame.depth + 1,
				})
				continue
			}

			requirements[component.ID] = requirements[component.ID].Add(required)
		}
	}

	return requirements, nil
}

// DirectParents returns the BOM edges that consume componentID, ordered by parent
// 構成品を直接使用するBOM行を返す
func (g *BOMGraph) DirectParents(componentID int64) []BOMEdge {
	return g.parents[componentID]
}

// IsUsed reports whether any BOM edge consumes productID
// いずれかのBOMで使用されているかチェック
func (g *BOMGraph) IsUsed(productID int64) bool {
	return len(g.parents[productID]) > 0
}

// Product looks up a product known to the graph
// 製品を取得
func (g *BOMGraph) Product(id int64) (Product, error) {
	p, ok := g.products[id]
	if !ok {
		return Product{}, NewNotFoundError("product", id)
	}
	return p, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
