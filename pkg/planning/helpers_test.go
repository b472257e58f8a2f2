package planning

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// testToday は月曜日
var testToday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(offset int) time.Time {
	return testToday.AddDate(0, 0, offset)
}

func product(id int64, code string, typ ProductType) Product {
	return Product{ID: id, Code: code, Name: code, Type: typ, IsActive: true}
}

func productMap(products ...Product) map[int64]Product {
	m := make(map[int64]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}

func edge(parent, component int64, qty string) BOMEdge {
	return BOMEdge{ParentProductID: parent, ComponentProductID: component, QuantityPer: dec(qty)}
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}
