// Package attribution computes per-resource day-over-day cost deltas
// and selects the single dominant contributor to an increase.
package attribution

import (
	"sort"

	"github.com/shopspring/decimal"

	"costpilot/core/types"
)

// DayTotals holds per-resource costs for one date. Keys are normalized
// resource identifiers; Display maps each back to the raw identifier
// first seen for it.
type DayTotals struct {
	Cost    map[string]decimal.Decimal
	Display map[string]string
}

// Delta is one resource's day-over-day cost increase
type Delta struct {
	ResourceID string
	Increase   decimal.Decimal
}

// TotalsFor aggregates a user's cost rows for a single date
func TotalsFor(records []types.DailyCostRecord, date types.Date) DayTotals {
	totals := DayTotals{
		Cost:    make(map[string]decimal.Decimal),
		Display: make(map[string]string),
	}
	for _, row := range records {
		if row.Date != date {
			continue
		}
		key := types.NormalizeResourceID(row.ResourceID)
		totals.Cost[key] = totals.Cost[key].Add(row.Cost)
		if _, ok := totals.Display[key]; !ok {
			totals.Display[key] = row.ResourceID
		}
	}
	return totals
}

// PositiveDeltas computes the strictly positive deltas across the
// union of resources seen on either date (a resource missing from one
// day counts as cost 0 for that day), sorted by increase descending.
// Resources with exactly equal increases sort in an arbitrary order.
func PositiveDeltas(latest, previous DayTotals) []Delta {
	keys := make(map[string]struct{}, len(latest.Cost)+len(previous.Cost))
	for key := range latest.Cost {
		keys[key] = struct{}{}
	}
	for key := range previous.Cost {
		keys[key] = struct{}{}
	}

	var deltas []Delta
	for key := range keys {
		increase := latest.Cost[key].Sub(previous.Cost[key])
		if !increase.IsPositive() {
			continue
		}
		display, ok := latest.Display[key]
		if !ok {
			display = previous.Display[key]
		}
		deltas = append(deltas, Delta{ResourceID: display, Increase: increase})
	}

	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i].Increase.GreaterThan(deltas[j].Increase)
	})
	return deltas
}

// TopCause returns the attribution for the largest positive delta,
// or nil when no resource increased. The name and type are parsed
// from the winning identifier.
func TopCause(deltas []Delta) *types.CauseAttribution {
	if len(deltas) == 0 {
		return nil
	}
	top := deltas[0]
	return &types.CauseAttribution{
		ResourceID:     top.ResourceID,
		ResourceName:   types.ParseResourceName(top.ResourceID),
		ResourceType:   types.ParseResourceType(top.ResourceID),
		IncreaseAmount: top.Increase,
	}
}
