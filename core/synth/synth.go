// Package synth generates deterministic synthetic billing data for
// development and demos. Each scenario shapes the same six resource
// templates into a different cost pattern: stable, spiking, noisy,
// gappy, or idle.
package synth

import (
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"costpilot/core/types"
	"costpilot/internal/errors"
)

// Scenario selects the cost pattern to generate
type Scenario string

const (
	ScenarioNormal         Scenario = "normal"
	ScenarioSpike          Scenario = "spike"
	ScenarioNoisyIncreases Scenario = "noisy_increases"
	ScenarioMissingData    Scenario = "missing_data"
	ScenarioIdleResources  Scenario = "idle_resources"
)

// Day-count bounds for a seed window
const (
	MinDays = 7
	MaxDays = 60
)

// FallbackSubscriptionID is used when the user has no linked
// subscription.
const FallbackSubscriptionID = "11111111-1111-1111-1111-111111111111"

// Template is one synthetic resource with its steady-state cost shape
type Template struct {
	Key                string
	BaseDailyCost      decimal.Decimal
	Volatility         decimal.Decimal
	ResourceIDTemplate string
}

// Templates are the six resources every scenario generates
var Templates = []Template{
	{
		Key:                "vm",
		BaseDailyCost:      decimal.RequireFromString("2.80"),
		Volatility:         decimal.RequireFromString("0.08"),
		ResourceIDTemplate: "/subscriptions/{subscriptionId}/resourceGroups/azcost-app-rg/providers/Microsoft.Compute/virtualMachines/app-vm-01",
	},
	{
		Key:                "sql",
		BaseDailyCost:      decimal.RequireFromString("3.90"),
		Volatility:         decimal.RequireFromString("0.07"),
		ResourceIDTemplate: "/subscriptions/{subscriptionId}/resourceGroups/azcost-data-rg/providers/Microsoft.Sql/servers/sql-prod-01/databases/appdb",
	},
	{
		Key:                "appservice",
		BaseDailyCost:      decimal.RequireFromString("1.45"),
		Volatility:         decimal.RequireFromString("0.10"),
		ResourceIDTemplate: "/subscriptions/{subscriptionId}/resourceGroups/azcost-app-rg/providers/Microsoft.Web/sites/api-app-01",
	},
	{
		Key:                "storage",
		BaseDailyCost:      decimal.RequireFromString("0.95"),
		Volatility:         decimal.RequireFromString("0.06"),
		ResourceIDTemplate: "/subscriptions/{subscriptionId}/resourceGroups/azcost-storage-rg/providers/Microsoft.Storage/storageAccounts/appstorage01",
	},
	{
		Key:                "monitor",
		BaseDailyCost:      decimal.RequireFromString("0.70"),
		Volatility:         decimal.RequireFromString("0.12"),
		ResourceIDTemplate: "/subscriptions/{subscriptionId}/resourceGroups/azcost-monitor-rg/providers/Microsoft.OperationalInsights/workspaces/app-law",
	},
	{
		Key:                "publicip",
		BaseDailyCost:      decimal.RequireFromString("0.18"),
		Volatility:         decimal.RequireFromString("0.15"),
		ResourceIDTemplate: "/subscriptions/{subscriptionId}/resourceGroups/azcost-net-rg/providers/Microsoft.Network/publicIPAddresses/app-pip-01",
	},
}

// NormalizeScenario maps caller input, including the short aliases, to
// a canonical scenario. Unknown names are a validation error.
func NormalizeScenario(name string) (Scenario, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch normalized {
	case "normal":
		return ScenarioNormal, nil
	case "spike":
		return ScenarioSpike, nil
	case "noisy", "noisy_increases":
		return ScenarioNoisyIncreases, nil
	case "missing", "missing_data":
		return ScenarioMissingData, nil
	case "idle", "idle_resources":
		return ScenarioIdleResources, nil
	default:
		return "", errors.Validation("scenario must be one of: normal, spike, noisy_increases, missing_data, idle_resources")
	}
}

// ClampDays bounds a requested day count to the supported window
func ClampDays(days int) int {
	if days < MinDays {
		return MinDays
	}
	if days > MaxDays {
		return MaxDays
	}
	return days
}

// Note describes what a scenario produced, for the seed result
func Note(scenario Scenario) string {
	switch scenario {
	case ScenarioNormal:
		return "Stable weekday/weekend pattern with normal variance."
	case ScenarioSpike:
		return "Latest complete billing day has a sharp SQL cost increase to trigger spike detection."
	case ScenarioNoisyIncreases:
		return "Multiple resources increase together, producing a noisy upward trend."
	case ScenarioMissingData:
		return "Latest day is intentionally missing to simulate delayed or incomplete ingestion."
	case ScenarioIdleResources:
		return "Costs are near-zero and idle resource findings are created for savings tests."
	default:
		return "Synthetic data generated."
	}
}

// BuildRows generates the cost rows for one scenario over the window
// [fromDate, toDate]. Zero-cost days and scenario-specific gaps are
// simply absent from the result.
func BuildRows(
	userID uuid.UUID,
	subscriptionID string,
	scenario Scenario,
	fromDate, toDate types.Date,
	rng *rand.Rand,
) []types.DailyCostRecord {
	var rows []types.DailyCostRecord
	dayCount := toDate.DaysSince(fromDate) + 1

	for offset := 0; offset < dayCount; offset++ {
		date := fromDate.AddDays(offset)
		for _, template := range Templates {
			if scenario == ScenarioMissingData && skipForMissingData(date, toDate, template.Key) {
				continue
			}

			resourceID := strings.ReplaceAll(template.ResourceIDTemplate, "{subscriptionId}", subscriptionID)
			cost := scenarioCost(scenario, date, toDate, offset, template, rng)
			if !cost.IsPositive() {
				continue
			}

			rows = append(rows, types.DailyCostRecord{
				UserID:         userID,
				SubscriptionID: subscriptionID,
				Date:           date,
				ResourceID:     resourceID,
				Cost:           cost.Round(4),
				Currency:       "USD",
			})
		}
	}
	return rows
}

// BuildFindings generates the fixed idle-resource findings; only the
// idle_resources scenario produces any.
func BuildFindings(userID uuid.UUID, subscriptionID string, scenario Scenario, now time.Time) []types.WasteFinding {
	if scenario != ScenarioIdleResources {
		return nil
	}

	finding := func(findingType types.FindingType, path, name, estimate string, detectedAt time.Time) types.WasteFinding {
		cost := decimal.RequireFromString(estimate)
		return types.WasteFinding{
			ID:                   uuid.New(),
			UserID:               userID,
			SubscriptionID:       subscriptionID,
			FindingType:          findingType,
			ResourceID:           "/subscriptions/" + subscriptionID + "/resourceGroups/azcost-idle-rg/providers/" + path,
			ResourceName:         name,
			EstimatedMonthlyCost: &cost,
			Status:               "open",
			DetectedAtUtc:        detectedAt,
		}
	}

	return []types.WasteFinding{
		finding(types.FindingStoppedVM, "Microsoft.Compute/virtualMachines/stopped-vm-01", "stopped-vm-01", "14.80", now.Add(-15*time.Minute)),
		finding(types.FindingUnattachedDisk, "Microsoft.Compute/disks/orphaned-disk-01", "orphaned-disk-01", "8.40", now.Add(-12*time.Minute)),
		finding(types.FindingUnusedPublicIP, "Microsoft.Network/publicIPAddresses/unused-ip-01", "unused-ip-01", "3.70", now.Add(-10*time.Minute)),
	}
}

func scenarioCost(
	scenario Scenario,
	date, toDate types.Date,
	offset int,
	template Template,
	rng *rand.Rand,
) decimal.Decimal {
	base := template.BaseDailyCost.
		Mul(weekFactor(date.Time().Weekday())).
		Mul(noiseFactor(rng, template.Volatility))

	switch scenario {
	case ScenarioSpike:
		return spikeCost(base, date, toDate, template, rng)
	case ScenarioNoisyIncreases:
		return noisyIncreaseCost(base, date, toDate, rng)
	case ScenarioMissingData:
		return missingDataCost(base, date, toDate, offset)
	case ScenarioIdleResources:
		return idleCost(template, rng)
	default:
		return base
	}
}

// spikeCost injects a sharp SQL increase on the latest complete day
// and a smaller echo three days earlier, with a mild monitor bump so
// attribution still has a clear winner.
func spikeCost(base decimal.Decimal, date, toDate types.Date, template Template, rng *rand.Rand) decimal.Decimal {
	latestCompleteDay := toDate.AddDays(-1)
	secondarySpikeDay := toDate.AddDays(-4)
	if date != latestCompleteDay && date != secondarySpikeDay {
		return base
	}

	switch template.Key {
	case "sql":
		multiplier := decimal.RequireFromString("3.1")
		additive := decimal.NewFromInt(7)
		if date == latestCompleteDay {
			multiplier = decimal.RequireFromString("4.8")
			additive = decimal.NewFromInt(15)
		}
		return base.Mul(multiplier).Add(additive)
	case "monitor":
		if date == latestCompleteDay {
			return base.Mul(decimal.RequireFromString("1.7"))
		}
		return base.Mul(decimal.RequireFromString("1.35"))
	default:
		bump := decimal.RequireFromString("1.05").
			Add(decimal.NewFromFloat(rng.Float64()).Mul(decimal.RequireFromString("0.08")))
		return base.Mul(bump)
	}
}

func noisyIncreaseCost(base decimal.Decimal, date, toDate types.Date, rng *rand.Rand) decimal.Decimal {
	ramp := func(floor, spread string) decimal.Decimal {
		factor := decimal.RequireFromString(floor).
			Add(decimal.NewFromFloat(rng.Float64()).Mul(decimal.RequireFromString(spread)))
		return base.Mul(factor)
	}

	switch {
	case date == toDate:
		return ramp("1.55", "0.2")
	case date == toDate.AddDays(-1):
		return ramp("1.25", "0.15")
	case !date.Before(toDate.AddDays(-3)):
		return ramp("1.08", "0.1")
	default:
		return base
	}
}

func missingDataCost(base decimal.Decimal, date, toDate types.Date, offset int) decimal.Decimal {
	if date == toDate {
		return decimal.Zero
	}
	if offset%11 == 0 {
		return base.Mul(decimal.RequireFromString("0.85"))
	}
	return base
}

func idleCost(template Template, rng *rand.Rand) decimal.Decimal {
	var idleBase decimal.Decimal
	switch template.Key {
	case "vm":
		idleBase = decimal.RequireFromString("0.09")
	case "sql":
		idleBase = decimal.RequireFromString("0.05")
	case "appservice":
		idleBase = decimal.RequireFromString("0.04")
	case "storage":
		idleBase = decimal.RequireFromString("0.12")
	case "monitor":
		idleBase = decimal.RequireFromString("0.03")
	case "publicip":
		idleBase = decimal.RequireFromString("0.07")
	default:
		idleBase = decimal.RequireFromString("0.02")
	}

	factor := decimal.RequireFromString("0.8").
		Add(decimal.NewFromFloat(rng.Float64()).Mul(decimal.RequireFromString("0.25")))
	return idleBase.Mul(factor)
}

// skipForMissingData drops whole (date, resource) cells to simulate
// ingestion gaps: the newest day entirely, plus two scattered holes.
func skipForMissingData(date, toDate types.Date, resourceKey string) bool {
	if date == toDate {
		return true
	}
	switch resourceKey {
	case "appservice":
		return date == toDate.AddDays(-3)
	case "storage":
		return date == toDate.AddDays(-8)
	default:
		return false
	}
}

func weekFactor(day time.Weekday) decimal.Decimal {
	switch day {
	case time.Monday:
		return decimal.RequireFromString("1.06")
	case time.Tuesday:
		return decimal.RequireFromString("1.08")
	case time.Wednesday:
		return decimal.RequireFromString("1.04")
	case time.Thursday:
		return decimal.RequireFromString("1.03")
	case time.Friday:
		return decimal.RequireFromString("0.97")
	case time.Saturday:
		return decimal.RequireFromString("0.86")
	case time.Sunday:
		return decimal.RequireFromString("0.83")
	default:
		return decimal.NewFromInt(1)
	}
}

// noiseFactor returns 1 + u*volatility for u uniform in [-1, 1)
func noiseFactor(rng *rand.Rand, volatility decimal.Decimal) decimal.Decimal {
	signed := decimal.NewFromFloat(rng.Float64()).
		Mul(decimal.NewFromInt(2)).
		Sub(decimal.NewFromInt(1))
	return decimal.NewFromInt(1).Add(signed.Mul(volatility))
}
