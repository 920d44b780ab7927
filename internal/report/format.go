package report

import "github.com/shopspring/decimal"

var (
	threshold1  = decimal.NewFromInt(1)
	threshold01 = decimal.RequireFromString("0.1")
	cent        = decimal.RequireFromString("0.01")
	mil         = decimal.RequireFromString("0.001")
)

// FormatPrice renders a price with precision that scales inversely with
// magnitude, so small-cap token prices stay distinguishable instead of
// collapsing to zero. Rounding is half away from zero.
func FormatPrice(p decimal.Decimal) string {
	abs := p.Abs()

	var places int32
	switch {
	case abs.GreaterThanOrEqual(threshold1):
		places = 4
	case abs.GreaterThanOrEqual(threshold01):
		places = 6
	case abs.GreaterThanOrEqual(cent):
		places = 8
	case abs.GreaterThanOrEqual(mil):
		places = 9
	default:
		places = 10
	}

	return p.StringFixed(places)
}
