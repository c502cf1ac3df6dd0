// Package billingdate resolves the most recent calendar date with
// complete billing data. Billing providers commit data with lag, so
// the newest day on record is often a partial ingestion; this package
// guards against reading it as a real day.
package billingdate

import (
	"math"

	"github.com/shopspring/decimal"

	"costpilot/core/types"
)

// completenessRatio is the fraction of the prior day's total (and
// distinct resource count) below which yesterday is treated as an
// incomplete ingestion.
var completenessRatio = decimal.RequireFromString("0.4")

// Resolve returns the latest complete billing date for a user's cost
// rows, considering only dates strictly before currentDate. The second
// return value is false when the user has no rows at all.
//
// If yesterday has data, it wins unless both its total cost and its
// distinct resource count fall below 40% of the day before's - that
// combination signals a partial-day read, and the day before is
// returned instead. If yesterday has no data, the newest date with any
// data wins without a further completeness check.
func Resolve(records []types.DailyCostRecord, currentDate types.Date) (types.Date, bool) {
	yesterday := currentDate.AddDays(-1)
	dayBefore := currentDate.AddDays(-2)

	totals := make(map[types.Date]decimal.Decimal)
	resources := make(map[types.Date]map[string]struct{})
	var newest types.Date
	seen := false
	for _, row := range records {
		if row.Date.After(yesterday) {
			continue
		}
		totals[row.Date] = totals[row.Date].Add(row.Cost)
		ids, ok := resources[row.Date]
		if !ok {
			ids = make(map[string]struct{})
			resources[row.Date] = ids
		}
		ids[types.NormalizeResourceID(row.ResourceID)] = struct{}{}
		if !seen || row.Date.After(newest) {
			newest = row.Date
			seen = true
		}
	}

	if !seen {
		return types.Date{}, false
	}

	if _, ok := totals[yesterday]; !ok {
		return newest, true
	}
	if _, ok := totals[dayBefore]; !ok {
		return yesterday, true
	}

	yesterdayTotal := totals[yesterday]
	dayBeforeTotal := totals[dayBefore]
	yesterdayCount := len(resources[yesterday])
	dayBeforeCount := len(resources[dayBefore])

	totalsSuggestIncomplete := dayBeforeTotal.IsPositive() &&
		yesterdayTotal.LessThan(dayBeforeTotal.Mul(completenessRatio))
	countFloor := int(math.Floor(float64(dayBeforeCount) * 0.4))
	if countFloor < 1 {
		countFloor = 1
	}
	resourcesSuggestIncomplete := dayBeforeCount > 0 && yesterdayCount < countFloor

	if totalsSuggestIncomplete && resourcesSuggestIncomplete {
		return dayBefore, true
	}
	return yesterday, true
}
