package finance

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestOrderDerivesDiscountedTotals(t *testing.T) {
	items := []LineInput{
		{Qty: 2, UnitPrice: 30, UnitCost: 15},
		{Qty: 1, UnitPrice: 50, UnitCost: 20},
	}

	res := Order(items, 10)

	if !almostEqual(res.Total, 110) {
		t.Fatalf("total = %v, want 110", res.Total)
	}
	if !almostEqual(res.TotalWithDiscount, 99) {
		t.Fatalf("total with discount = %v, want 99", res.TotalWithDiscount)
	}
	if !almostEqual(res.Cost, 50) {
		t.Fatalf("cost = %v, want 50", res.Cost)
	}
	if !almostEqual(res.Profit, 49) {
		t.Fatalf("profit = %v, want 49", res.Profit)
	}
	if math.Abs(res.Margin-49.494949494949) > 1e-6 {
		t.Fatalf("margin = %v, want ~49.4949", res.Margin)
	}
}

func TestLineComputesUndiscountedFigures(t *testing.T) {
	line := Line(LineInput{Qty: 2, UnitPrice: 30, UnitCost: 15})
	if !almostEqual(line.Subtotal, 60) || !almostEqual(line.Cost, 30) || !almostEqual(line.Profit, 30) {
		t.Fatalf("unexpected line result: %+v", line)
	}
	if !almostEqual(line.Margin, 50) {
		t.Fatalf("line margin = %v, want 50", line.Margin)
	}
}

func TestZeroSubtotalYieldsZeroMargin(t *testing.T) {
	line := Line(LineInput{Qty: 0, UnitPrice: 30, UnitCost: 15})
	if line.Margin != 0 {
		t.Fatalf("line margin = %v, want 0", line.Margin)
	}

	res := Order([]LineInput{{Qty: 1, UnitPrice: 0, UnitCost: 0}}, 0)
	if res.Margin != 0 {
		t.Fatalf("order margin = %v, want 0", res.Margin)
	}
}

func TestFullDiscountKeepsProfitNegative(t *testing.T) {
	res := Order([]LineInput{{Qty: 1, UnitPrice: 40, UnitCost: 25}}, 100)
	if !almostEqual(res.TotalWithDiscount, 0) {
		t.Fatalf("total with discount = %v, want 0", res.TotalWithDiscount)
	}
	if !almostEqual(res.Profit, -25) {
		t.Fatalf("profit = %v, want -25", res.Profit)
	}
	if res.Margin != 0 {
		t.Fatalf("margin = %v, want 0 when discounted total is 0", res.Margin)
	}
}

func TestNoItemsProducesZeroOrder(t *testing.T) {
	res := Order(nil, 10)
	if res.Total != 0 || res.TotalWithDiscount != 0 || res.Cost != 0 || res.Profit != 0 || res.Margin != 0 {
		t.Fatalf("expected all-zero result, got %+v", res)
	}
}
