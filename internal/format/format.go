// Package format renders numbers for display. Missing values render as
// NotAvailable; ordering code reads the same values as 0 (see models.Asset.Metric).
package format

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NotAvailable is shown wherever the feed omitted a value.
const NotAvailable = "N/A"

var thousand = decimal.NewFromInt(1000)

var compactUnits = []struct {
	suffix string
	size   decimal.Decimal
}{
	{"", decimal.NewFromInt(1)},
	{"K", decimal.NewFromInt(1_000)},
	{"M", decimal.NewFromInt(1_000_000)},
	{"B", decimal.NewFromInt(1_000_000_000)},
	{"T", decimal.NewFromInt(1_000_000_000_000)},
}

// USD formats v as US dollars with two decimals and thousands grouping,
// e.g. 1234.5 -> "$1,234.50", -0.5 -> "-$0.50".
func USD(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "$" + group(d.StringFixed(2))
}

// USDOf is USD for an optional value.
func USDOf(p *float64) string {
	if p == nil {
		return NotAvailable
	}
	return USD(*p)
}

// Compact formats v with a K/M/B/T suffix and at most one decimal,
// e.g. 1234 -> "1.2K", 2.5e9 -> "2.5B", 999 -> "999".
func Compact(v float64) string {
	d := decimal.NewFromFloat(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	i := 0
	for i+1 < len(compactUnits) && d.GreaterThanOrEqual(compactUnits[i+1].size) {
		i++
	}
	scaled := d.Div(compactUnits[i].size).Round(1)
	// 999.96K rounds to 1000K; promote it to 1M
	if scaled.GreaterThanOrEqual(thousand) && i+1 < len(compactUnits) {
		i++
		scaled = d.Div(compactUnits[i].size).Round(1)
	}
	return sign + scaled.String() + compactUnits[i].suffix
}

// CompactOf is Compact for an optional value.
func CompactOf(p *float64) string {
	if p == nil {
		return NotAvailable
	}
	return Compact(*p)
}

// PercentOf formats a signed percentage with two decimals, e.g. "+2.35%".
func PercentOf(p *float64) string {
	if p == nil {
		return NotAvailable
	}
	d := decimal.NewFromFloat(*p).Round(2)
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		s = "+" + s
	}
	return s
}

// RankOf formats a market-cap rank as "#N", or "#N/A" when unknown.
func RankOf(p *int) string {
	if p == nil || *p <= 0 {
		return "#" + NotAvailable
	}
	return "#" + strconv.Itoa(*p)
}

// group inserts thousands separators into the integer part of a plain
// decimal string such as "1234567.89".
func group(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
