package baseline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"costpilot/core/types"
)

var billing = types.NewDate(2026, time.March, 9)

func row(date types.Date, cost string) types.DailyCostRecord {
	return types.DailyCostRecord{
		Date:       date,
		ResourceID: "/r/a",
		Cost:       decimal.RequireFromString(cost),
	}
}

func TestComputeEmpty(t *testing.T) {
	report := Compute(nil, billing)
	assert.True(t, report.Baseline.IsZero())
	assert.True(t, report.LatestTotal.IsZero())
	assert.True(t, report.Difference.IsZero())
}

func TestComputeAveragesOnlyDatesWithData(t *testing.T) {
	// Three of the seven window dates have data; the mean divides by
	// three, not seven.
	records := []types.DailyCostRecord{
		row(billing, "12"),
		row(billing.AddDays(-2), "9"),
		row(billing.AddDays(-6), "9"),
	}
	report := Compute(records, billing)
	assert.True(t, report.Baseline.Equal(decimal.NewFromInt(10)), "got %s", report.Baseline)
}

func TestComputeWindowIsSevenDaysInclusive(t *testing.T) {
	records := []types.DailyCostRecord{
		row(billing, "10"),
		row(billing.AddDays(-6), "10"),
		// One day outside the window.
		row(billing.AddDays(-7), "1000"),
	}
	report := Compute(records, billing)
	assert.True(t, report.Baseline.Equal(decimal.NewFromInt(10)), "got %s", report.Baseline)
}

func TestComputeIgnoresRowsAfterBillingDate(t *testing.T) {
	records := []types.DailyCostRecord{
		row(billing, "10"),
		row(billing.AddDays(1), "500"),
	}
	report := Compute(records, billing)
	assert.True(t, report.LatestTotal.Equal(decimal.NewFromInt(10)))
	assert.True(t, report.Baseline.Equal(decimal.NewFromInt(10)))
}

func TestComputeSumsResourcesPerDay(t *testing.T) {
	records := []types.DailyCostRecord{
		{Date: billing, ResourceID: "/r/a", Cost: decimal.NewFromInt(3)},
		{Date: billing, ResourceID: "/r/b", Cost: decimal.NewFromInt(4)},
		{Date: billing.AddDays(-1), ResourceID: "/r/a", Cost: decimal.NewFromInt(10)},
	}
	report := Compute(records, billing)
	assert.True(t, report.LatestTotal.Equal(decimal.NewFromInt(7)))
	assert.True(t, report.PreviousTotal.Equal(decimal.NewFromInt(10)))
	assert.True(t, report.Difference.Equal(decimal.NewFromInt(-3)))
}

func TestComputeDifferenceWithMissingPreviousDay(t *testing.T) {
	records := []types.DailyCostRecord{
		row(billing, "10"),
	}
	report := Compute(records, billing)
	assert.True(t, report.PreviousTotal.IsZero())
	assert.True(t, report.Difference.Equal(decimal.NewFromInt(10)))
}
