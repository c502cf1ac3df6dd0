// Package baseline aggregates raw cost rows into per-day totals and a
// trailing rolling average.
package baseline

import (
	"github.com/shopspring/decimal"

	"costpilot/core/types"
)

// WindowDays is the trailing baseline window, ending at the billing
// date inclusive.
const WindowDays = 7

// Report holds the aggregate view of a user's costs at one billing
// date.
type Report struct {
	// TotalsByDate maps each date with data to its summed cost
	TotalsByDate map[types.Date]decimal.Decimal

	// LatestTotal is the total at the billing date (0 if no data)
	LatestTotal decimal.Decimal

	// PreviousTotal is the total one day earlier (0 if no data)
	PreviousTotal decimal.Decimal

	// Baseline is the mean of totals over the trailing window, using
	// only dates that actually have data. 0 when no window date has
	// data - missing days are excluded, never counted as zero.
	Baseline decimal.Decimal

	// Difference is LatestTotal - PreviousTotal (may be negative)
	Difference decimal.Decimal
}

// Compute aggregates cost rows up to and including the billing date.
// Rows after the billing date are ignored.
func Compute(records []types.DailyCostRecord, billingDate types.Date) Report {
	totals := make(map[types.Date]decimal.Decimal)
	for _, row := range records {
		if row.Date.After(billingDate) {
			continue
		}
		totals[row.Date] = totals[row.Date].Add(row.Cost)
	}

	latest := totals[billingDate]
	previous := totals[billingDate.AddDays(-1)]

	sum := decimal.Zero
	count := 0
	for offset := 0; offset < WindowDays; offset++ {
		if total, ok := totals[billingDate.AddDays(-offset)]; ok {
			sum = sum.Add(total)
			count++
		}
	}
	base := decimal.Zero
	if count > 0 {
		base = sum.Div(decimal.NewFromInt(int64(count)))
	}

	return Report{
		TotalsByDate:  totals,
		LatestTotal:   latest,
		PreviousTotal: previous,
		Baseline:      base,
		Difference:    latest.Sub(previous),
	}
}
