// Package spike applies the threshold rules that flag a day-over-day
// cost spike and score how confidently the increase can be pinned on
// a single resource. The rules are fixed multiplicative/additive
// thresholds on purpose: every flag must be explainable to the user.
package spike

import (
	"strings"

	"github.com/shopspring/decimal"

	"costpilot/core/attribution"
	"costpilot/core/types"
)

// DefaultThreshold is the minimum day-over-day difference, in currency
// units, required for a spike.
var DefaultThreshold = decimal.NewFromInt(5)

// baselineMultiplier: the latest total must exceed baseline * 1.5
var baselineMultiplier = decimal.RequireFromString("1.5")

// dominanceFloor: the top delta must reach 5 currency units for High
// confidence.
var dominanceFloor = decimal.NewFromInt(5)

// dominanceShare: the top delta owning >= 65% of all positive deltas
// also qualifies as dominant.
var dominanceShare = decimal.RequireFromString("0.65")

// Threshold sanitizes a caller-supplied spike threshold. Overrides
// must be strictly positive; anything else falls back to the default.
func Threshold(override decimal.Decimal) decimal.Decimal {
	if override.IsPositive() {
		return override
	}
	return DefaultThreshold
}

// Detect reports whether the latest total is a spike. All three
// conditions are individually necessary: a positive baseline, the
// latest total above 1.5x baseline, and the raw difference above the
// threshold. A zero baseline means no spike is possible.
func Detect(baseline, latestTotal, difference, threshold decimal.Decimal) bool {
	return baseline.IsPositive() &&
		latestTotal.GreaterThan(baseline.Mul(baselineMultiplier)) &&
		difference.GreaterThan(threshold)
}

// Score assigns a confidence label from the positive per-resource
// deltas, sorted descending (as returned by attribution.PositiveDeltas).
//
// High means one resource dominates the increase: the top delta is at
// least 5 and either no second delta exists, the top is at least twice
// the second, or the top owns at least 65% of the summed positive
// deltas. Medium means several resources contributed. Low means no
// clear increase or a single ambiguous signal.
//
// Note the share is computed over all positive deltas even when only
// two exist; the rule is preserved literally.
func Score(deltas []attribution.Delta) types.Confidence {
	if len(deltas) == 0 {
		return types.ConfidenceLow
	}

	top := deltas[0].Increase
	second := decimal.Zero
	if len(deltas) > 1 {
		second = deltas[1].Increase
	}
	totalPositive := decimal.Zero
	for _, delta := range deltas {
		totalPositive = totalPositive.Add(delta.Increase)
	}
	topShare := decimal.Zero
	if totalPositive.IsPositive() {
		topShare = top.Div(totalPositive)
	}

	dominant := top.GreaterThanOrEqual(dominanceFloor) &&
		(!second.IsPositive() ||
			top.GreaterThanOrEqual(second.Mul(decimal.NewFromInt(2))) ||
			topShare.GreaterThanOrEqual(dominanceShare))
	if dominant {
		return types.ConfidenceHigh
	}
	if len(deltas) >= 2 {
		return types.ConfidenceMedium
	}
	return types.ConfidenceLow
}

// Suggestion builds the human-readable follow-up text for a summary.
// The resourceID is the top cause identifier, empty when there is
// none.
func Suggestion(resourceID string, spikeFlag bool) string {
	if !spikeFlag {
		return "No spike detected today."
	}

	resourceType := strings.ToLower(types.ParseResourceType(resourceID))
	switch {
	case strings.Contains(resourceType, "microsoft.compute/virtualmachines"):
		return "VM cost increased. Check VM size, uptime schedule, and autoscaling settings."
	case strings.Contains(resourceType, "microsoft.compute/disks"):
		return "Disk cost increased. Check unattached disks and premium tier allocations."
	case strings.Contains(resourceType, "microsoft.network/publicipaddresses"):
		return "Public IP cost increased. Review unattached or idle public IPs."
	case strings.Contains(resourceType, "microsoft.web/serverfarms"),
		strings.Contains(resourceType, "microsoft.web/sites"):
		return "App Service cost increased. Verify plan tier changes and scaling activity."
	default:
		return "Review this resource in Azure Cost Analysis and compare today versus yesterday usage."
	}
}
