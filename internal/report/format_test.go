package report

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatPriceMagnitudeScaling(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2.0", "2.0000"},
		{"1", "1.0000"},
		{"0.5", "0.500000"},
		{"0.1", "0.100000"},
		{"0.05", "0.05000000"},
		{"0.005", "0.005000000"},
		{"0.00005", "0.0000500000"},
		{"0", "0.0000000000"},
	}

	for _, tc := range cases {
		got := FormatPrice(decimal.RequireFromString(tc.in))
		if got != tc.want {
			t.Fatalf("FormatPrice(%s): 期望 %q, 实际 %q", tc.in, tc.want, got)
		}
	}
}

func TestFormatPriceRoundsHalfAwayFromZero(t *testing.T) {
	if got := FormatPrice(decimal.RequireFromString("1.00005")); got != "1.0001" {
		t.Fatalf("四舍五入应远离零: 实际 %q", got)
	}
	if got := FormatPrice(decimal.RequireFromString("-1.00005")); got != "-1.0001" {
		t.Fatalf("负数同样远离零: 实际 %q", got)
	}
}

func TestFormatPriceNegativeMagnitude(t *testing.T) {
	if got := FormatPrice(decimal.RequireFromString("-0.5")); got != "-0.500000" {
		t.Fatalf("负价格精度应按绝对值取档: 实际 %q", got)
	}
}
