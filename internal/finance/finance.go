// Package finance derives order financials from line items and a discount.
// It is pure: no I/O, no clock, no store access. The ledger persists the
// derived values so later price or cost changes never rewrite history.
package finance

type LineInput struct {
	Qty       int
	UnitPrice float64
	UnitCost  float64
}

type LineResult struct {
	Subtotal float64
	Cost     float64
	Profit   float64
	Margin   float64
}

type OrderResult struct {
	Lines             []LineResult
	Total             float64
	TotalWithDiscount float64
	Cost              float64
	Profit            float64
	Margin            float64
}

// Line computes a single line's financials. Margin is a percentage of the
// line subtotal and is 0 when the subtotal is 0.
func Line(in LineInput) LineResult {
	res := LineResult{
		Subtotal: float64(in.Qty) * in.UnitPrice,
		Cost:     float64(in.Qty) * in.UnitCost,
	}
	res.Profit = res.Subtotal - res.Cost
	if res.Subtotal != 0 {
		res.Margin = res.Profit / res.Subtotal * 100
	}
	return res
}

// Order computes order-level financials. The discount applies to the order
// total only; line-level figures stay undiscounted. Margin is a percentage of
// the discounted total and is 0 when that total is 0.
func Order(items []LineInput, discountPct float64) OrderResult {
	res := OrderResult{Lines: make([]LineResult, 0, len(items))}
	for _, it := range items {
		line := Line(it)
		res.Lines = append(res.Lines, line)
		res.Total += line.Subtotal
		res.Cost += line.Cost
	}
	res.TotalWithDiscount = res.Total * (1 - discountPct/100)
	res.Profit = res.TotalWithDiscount - res.Cost
	if res.TotalWithDiscount != 0 {
		res.Margin = res.Profit / res.TotalWithDiscount * 100
	}
	return res
}
