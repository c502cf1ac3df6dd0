// Package waste classifies idle and unattached resources into waste
// findings. Inventory signals (unattached disks, unused public IPs,
// powered-off VMs) are matched against historical cost activity to
// produce a classification, a confidence level, and a monthly cost
// estimate per finding.
package waste

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"costpilot/core/types"
	"costpilot/store"
)

const (
	// lookbackDays is the cost-activity window for stopped VMs
	lookbackDays = 30

	// cycleWindowDays and cycleActiveDays define the stop/start
	// suppression rule: a VM cost-active on >= 6 of the last 14 days
	// is a scheduled workload, not waste.
	cycleWindowDays = 14
	cycleActiveDays = 6

	// minInactiveDays avoids false positives on freshly-stopped VMs
	minInactiveDays = 2

	// likelyUnusedDays upgrades a finding to "Likely unused"
	likelyUnusedDays = 7

	// estimateWindowDays is the trailing window for actual-cost
	// estimates.
	estimateWindowDays = 7
)

var (
	diskRatePremium     = decimal.RequireFromString("0.15")
	diskRateStandardSSD = decimal.RequireFromString("0.08")
	diskRateStandard    = decimal.RequireFromString("0.05")
	diskRateDefault     = decimal.RequireFromString("0.07")
	diskFlatEstimate    = decimal.NewFromInt(10)

	ipEstimateStandard = decimal.RequireFromString("3.5")
	ipEstimateStatic   = decimal.RequireFromString("2.5")
	ipEstimateDynamic  = decimal.NewFromInt(2)

	vmFlatEstimate = decimal.NewFromInt(20)

	monthlyProjectionNumerator   = decimal.NewFromInt(30)
	monthlyProjectionDenominator = decimal.NewFromInt(7)
)

// Input bundles everything one per-target classification needs. It is
// a read-only snapshot: the classifier never touches the store.
type Input struct {
	Target        store.Target
	Today         types.Date
	Now           time.Time
	Inventory     types.InventorySnapshot
	CostHistory   []types.DailyCostRecord
	PriorFindings []types.WasteFinding
}

// Classify computes the waste findings for one scan target
func Classify(in Input) []types.WasteFinding {
	profiles := buildActivityProfiles(in.CostHistory, in.Today)
	prior := indexPriorFindings(in.PriorFindings)

	var findings []types.WasteFinding
	for _, disk := range in.Inventory.Disks {
		if finding, ok := classifyDisk(in, profiles, disk); ok {
			findings = append(findings, finding)
		}
	}
	for _, ip := range in.Inventory.PublicIPs {
		if finding, ok := classifyPublicIP(in, profiles, ip); ok {
			findings = append(findings, finding)
		}
	}
	for _, vm := range in.Inventory.StoppedVMs {
		if finding, ok := classifyStoppedVM(in, profiles, prior, vm); ok {
			findings = append(findings, finding)
		}
	}
	return findings
}

// activityProfile summarizes one resource's recent cost activity
type activityProfile struct {
	lastActiveDate  types.Date
	hasLastActive   bool
	activeDaysIn14  int
	trailing7DaySum decimal.Decimal
}

func buildActivityProfiles(history []types.DailyCostRecord, today types.Date) map[string]activityProfile {
	lookbackStart := today.AddDays(-(lookbackDays - 1))
	cycleStart := today.AddDays(-(cycleWindowDays - 1))
	estimateStart := today.AddDays(-(estimateWindowDays - 1))

	activeDates := make(map[string]map[types.Date]struct{})
	profiles := make(map[string]activityProfile)
	for _, row := range history {
		if row.Date.After(today) || row.Date.Before(lookbackStart) {
			continue
		}
		key := types.NormalizeResourceID(row.ResourceID)
		profile := profiles[key]
		if row.Cost.IsPositive() {
			if !profile.hasLastActive || row.Date.After(profile.lastActiveDate) {
				profile.lastActiveDate = row.Date
				profile.hasLastActive = true
			}
			if !row.Date.Before(cycleStart) {
				dates, ok := activeDates[key]
				if !ok {
					dates = make(map[types.Date]struct{})
					activeDates[key] = dates
				}
				dates[row.Date] = struct{}{}
			}
		}
		if !row.Date.Before(estimateStart) {
			profile.trailing7DaySum = profile.trailing7DaySum.Add(row.Cost)
		}
		profiles[key] = profile
	}

	for key, dates := range activeDates {
		profile := profiles[key]
		profile.activeDaysIn14 = len(dates)
		profiles[key] = profile
	}
	return profiles
}

func indexPriorFindings(findings []types.WasteFinding) map[string]types.WasteFinding {
	prior := make(map[string]types.WasteFinding, len(findings))
	for _, finding := range findings {
		prior[types.NormalizeResourceID(finding.ResourceID)] = finding
	}
	return prior
}

// ResolveEstimate is the two-step monthly cost resolver: prefer a
// 30-day projection of real trailing cost, fall back to the
// type-specific heuristic only when no cost signal exists. All
// estimates round to 2 decimal places.
func ResolveEstimate(trailing7DaySum decimal.Decimal, heuristic *decimal.Decimal) *decimal.Decimal {
	if trailing7DaySum.IsPositive() {
		projected := trailing7DaySum.
			Mul(monthlyProjectionNumerator).
			Div(monthlyProjectionDenominator).
			Round(2)
		return &projected
	}
	if heuristic == nil {
		return nil
	}
	rounded := heuristic.Round(2)
	return &rounded
}

func classifyDisk(in Input, profiles map[string]activityProfile, disk types.UnattachedDisk) (types.WasteFinding, bool) {
	if strings.TrimSpace(disk.ResourceID) == "" {
		return types.WasteFinding{}, false
	}
	heuristic := estimateUnattachedDisk(disk.SizeGB, disk.SKU)
	return newFinding(in, types.FindingUnattachedDisk, disk.ResourceID, disk.Name, profiles, &heuristic), true
}

func classifyPublicIP(in Input, profiles map[string]activityProfile, ip types.UnusedPublicIP) (types.WasteFinding, bool) {
	if strings.TrimSpace(ip.ResourceID) == "" {
		return types.WasteFinding{}, false
	}
	heuristic := estimateUnusedPublicIP(ip.SKU, ip.AllocationMethod)
	return newFinding(in, types.FindingUnusedPublicIP, ip.ResourceID, ip.Name, profiles, &heuristic), true
}

func classifyStoppedVM(
	in Input,
	profiles map[string]activityProfile,
	prior map[string]types.WasteFinding,
	vm types.StoppedVM,
) (types.WasteFinding, bool) {
	if strings.TrimSpace(vm.ResourceID) == "" {
		return types.WasteFinding{}, false
	}
	key := types.NormalizeResourceID(vm.ResourceID)
	profile := profiles[key]
	priorFinding, hasPrior := prior[key]

	// Scheduled stop/start cycles are not waste.
	if profile.activeDaysIn14 >= cycleActiveDays {
		return types.WasteFinding{}, false
	}

	var lastSeenActive *time.Time
	var inactiveDays *decimal.Decimal
	switch {
	case profile.hasLastActive:
		active := profile.lastActiveDate.Time()
		lastSeenActive = &active
		inactiveDays = wholeDays(in.Today.DaysSince(profile.lastActiveDate))
	case hasPrior && priorFinding.LastSeenActiveUtc != nil:
		lastSeenActive = priorFinding.LastSeenActiveUtc
		inactiveDays = wholeDays(in.Today.DaysSince(types.DateOf(*priorFinding.LastSeenActiveUtc)))
	case hasPrior:
		inactiveDays = wholeDays(in.Today.DaysSince(types.DateOf(priorFinding.DetectedAtUtc)))
	}

	if inactiveDays == nil || inactiveDays.LessThan(decimal.NewFromInt(minInactiveDays)) {
		return types.WasteFinding{}, false
	}

	classification := types.ClassificationPossiblyUnused
	confidence := types.ConfidenceMedium
	switch {
	case !profile.hasLastActive && lastSeenActive == nil:
		// No strong historical signal at all.
		confidence = types.ConfidenceLow
	case inactiveDays.GreaterThan(decimal.NewFromInt(likelyUnusedDays)):
		classification = types.ClassificationLikelyUnused
		confidence = types.ConfidenceHigh
	}

	heuristic := vmFlatEstimate
	finding := newFinding(in, types.FindingStoppedVM, vm.ResourceID, vm.Name, profiles, &heuristic)
	finding.Classification = classification
	finding.WasteConfidenceLevel = confidence
	finding.InactiveDurationDays = inactiveDays
	finding.LastSeenActiveUtc = lastSeenActive
	return finding, true
}

func newFinding(
	in Input,
	findingType types.FindingType,
	resourceID, resourceName string,
	profiles map[string]activityProfile,
	heuristic *decimal.Decimal,
) types.WasteFinding {
	profile := profiles[types.NormalizeResourceID(resourceID)]
	name := strings.TrimSpace(resourceName)
	if name == "" {
		name = types.ParseResourceName(resourceID)
	}
	return types.WasteFinding{
		ID:                   uuid.New(),
		UserID:               in.Target.UserID,
		SubscriptionID:       in.Target.SubscriptionID,
		FindingType:          findingType,
		ResourceID:           types.TruncateResourceID(strings.TrimSpace(resourceID)),
		ResourceName:         name,
		EstimatedMonthlyCost: ResolveEstimate(profile.trailing7DaySum, heuristic),
		Status:               "Open",
		DetectedAtUtc:        in.Now,
	}
}

func estimateUnattachedDisk(sizeGB int, sku string) decimal.Decimal {
	if sizeGB <= 0 {
		return diskFlatEstimate
	}
	normalized := strings.ToLower(sku)
	var rate decimal.Decimal
	switch {
	case strings.Contains(normalized, "premium"):
		rate = diskRatePremium
	case strings.Contains(normalized, "standardssd"), strings.Contains(normalized, "standard_ssd"):
		rate = diskRateStandardSSD
	case strings.Contains(normalized, "standard"):
		rate = diskRateStandard
	default:
		rate = diskRateDefault
	}
	return decimal.NewFromInt(int64(sizeGB)).Mul(rate)
}

func estimateUnusedPublicIP(sku, allocationMethod string) decimal.Decimal {
	if strings.Contains(strings.ToLower(sku), "standard") {
		return ipEstimateStandard
	}
	if strings.Contains(strings.ToLower(allocationMethod), "static") {
		return ipEstimateStatic
	}
	return ipEstimateDynamic
}

func wholeDays(days int) *decimal.Decimal {
	value := decimal.NewFromInt(int64(days))
	return &value
}
