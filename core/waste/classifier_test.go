package waste

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costpilot/core/types"
	"costpilot/store"
)

var (
	testUser   = uuid.MustParse("6f1d6c4e-0000-0000-0000-000000000001")
	testTarget = store.Target{UserID: testUser, SubscriptionID: "sub-1"}
	today      = types.NewDate(2026, time.March, 10)
	now        = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
)

func baseInput() Input {
	return Input{
		Target: testTarget,
		Today:  today,
		Now:    now,
	}
}

func costRow(date types.Date, resourceID, cost string) types.DailyCostRecord {
	return types.DailyCostRecord{
		UserID:         testUser,
		SubscriptionID: "sub-1",
		Date:           date,
		ResourceID:     resourceID,
		Cost:           decimal.RequireFromString(cost),
	}
}

func requireEstimate(t *testing.T, finding types.WasteFinding, expected string) {
	t.Helper()
	require.NotNil(t, finding.EstimatedMonthlyCost)
	assert.True(t, finding.EstimatedMonthlyCost.Equal(decimal.RequireFromString(expected)),
		"estimate %s, want %s", finding.EstimatedMonthlyCost, expected)
}

func TestDiskHeuristicEstimates(t *testing.T) {
	cases := []struct {
		name     string
		sizeGB   int
		sku      string
		expected string
	}{
		{"premium per gb", 100, "Premium_LRS", "15"},
		{"standard ssd per gb", 100, "StandardSSD_LRS", "8"},
		{"standard hdd per gb", 100, "Standard_LRS", "5"},
		{"unknown sku per gb", 100, "UltraSSD_LRS", "7"},
		{"unknown size flat", 0, "Premium_LRS", "10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput()
			in.Inventory.Disks = []types.UnattachedDisk{{
				ResourceID: "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Compute/disks/d1",
				Name:       "d1",
				SKU:        tc.sku,
				SizeGB:     tc.sizeGB,
			}}
			findings := Classify(in)
			require.Len(t, findings, 1)
			assert.Equal(t, types.FindingUnattachedDisk, findings[0].FindingType)
			requireEstimate(t, findings[0], tc.expected)
		})
	}
}

func TestPublicIPHeuristicEstimates(t *testing.T) {
	cases := []struct {
		name       string
		sku        string
		allocation string
		expected   string
	}{
		{"standard sku", "Standard", "Dynamic", "3.5"},
		{"basic static", "Basic", "Static", "2.5"},
		{"basic dynamic", "Basic", "Dynamic", "2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput()
			in.Inventory.PublicIPs = []types.UnusedPublicIP{{
				ResourceID:       "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Network/publicIPAddresses/ip1",
				Name:             "ip1",
				SKU:              tc.sku,
				AllocationMethod: tc.allocation,
			}}
			findings := Classify(in)
			require.Len(t, findings, 1)
			requireEstimate(t, findings[0], tc.expected)
		})
	}
}

func TestEstimatePrefersTrailingCostOverHeuristic(t *testing.T) {
	diskID := "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Compute/disks/d1"
	in := baseInput()
	in.Inventory.Disks = []types.UnattachedDisk{{ResourceID: diskID, Name: "d1", SKU: "Premium_LRS", SizeGB: 100}}
	// 0.2/day over the trailing week: 1.4 * 30 / 7 = 6.00.
	for offset := 0; offset < 7; offset++ {
		in.CostHistory = append(in.CostHistory, costRow(today.AddDays(-offset), diskID, "0.2"))
	}

	findings := Classify(in)
	require.Len(t, findings, 1)
	requireEstimate(t, findings[0], "6.00")
}

func TestResolveEstimateNilHeuristic(t *testing.T) {
	assert.Nil(t, ResolveEstimate(decimal.Zero, nil))
}

func vmInput(vmID string) Input {
	in := baseInput()
	in.Inventory.StoppedVMs = []types.StoppedVM{{
		ResourceID: vmID,
		Name:       "vm1",
		PowerState: "PowerState/deallocated",
	}}
	return in
}

const vmID = "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/vm1"

func TestStoppedVMLongInactiveIsLikelyUnused(t *testing.T) {
	in := vmInput(vmID)
	in.CostHistory = []types.DailyCostRecord{
		costRow(today.AddDays(-9), vmID, "1.5"),
	}

	findings := Classify(in)
	require.Len(t, findings, 1)
	finding := findings[0]
	assert.Equal(t, types.ClassificationLikelyUnused, finding.Classification)
	assert.Equal(t, types.ConfidenceHigh, finding.WasteConfidenceLevel)
	require.NotNil(t, finding.InactiveDurationDays)
	assert.True(t, finding.InactiveDurationDays.Equal(decimal.NewFromInt(9)))
	require.NotNil(t, finding.LastSeenActiveUtc)
	assert.Equal(t, today.AddDays(-9).Time(), *finding.LastSeenActiveUtc)
}

func TestStoppedVMRecentlyInactiveIsPossiblyUnused(t *testing.T) {
	in := vmInput(vmID)
	in.CostHistory = []types.DailyCostRecord{
		costRow(today.AddDays(-3), vmID, "1.5"),
	}

	findings := Classify(in)
	require.Len(t, findings, 1)
	assert.Equal(t, types.ClassificationPossiblyUnused, findings[0].Classification)
	assert.Equal(t, types.ConfidenceMedium, findings[0].WasteConfidenceLevel)
}

func TestStoppedVMInactiveOneDayIsSkipped(t *testing.T) {
	in := vmInput(vmID)
	in.CostHistory = []types.DailyCostRecord{
		costRow(today.AddDays(-1), vmID, "1.5"),
	}
	assert.Empty(t, Classify(in))
}

func TestStoppedVMInactiveTwoDaysIsReported(t *testing.T) {
	in := vmInput(vmID)
	in.CostHistory = []types.DailyCostRecord{
		costRow(today.AddDays(-2), vmID, "1.5"),
	}
	findings := Classify(in)
	require.Len(t, findings, 1)
	assert.Equal(t, types.ConfidenceMedium, findings[0].WasteConfidenceLevel)
}

func TestStoppedVMUnknownInactivityIsSkipped(t *testing.T) {
	// No cost history and no prior finding: inactivity cannot be
	// established, so no finding is produced.
	assert.Empty(t, Classify(vmInput(vmID)))
}

func TestStoppedVMCycleSuppression(t *testing.T) {
	activeOn := func(days int) Input {
		in := vmInput(vmID)
		// Activity spread over the cycle window, newest 9 days back so
		// the minimum-inactivity check passes when not suppressed.
		for i := 0; i < days; i++ {
			in.CostHistory = append(in.CostHistory, costRow(today.AddDays(-(13 - i)), vmID, "1"))
		}
		return in
	}

	// Six active days of the last fourteen reads as a stop/start
	// schedule and is suppressed; five is not.
	assert.Empty(t, Classify(activeOn(6)))
	assert.Len(t, Classify(activeOn(5)), 1)
}

func TestStoppedVMCarriesForwardPriorActivity(t *testing.T) {
	lastActive := today.AddDays(-5).Time()
	in := vmInput(vmID)
	in.PriorFindings = []types.WasteFinding{{
		UserID:            testUser,
		FindingType:       types.FindingStoppedVM,
		ResourceID:        vmID,
		LastSeenActiveUtc: &lastActive,
		DetectedAtUtc:     now.Add(-24 * time.Hour),
	}}

	findings := Classify(in)
	require.Len(t, findings, 1)
	finding := findings[0]
	require.NotNil(t, finding.LastSeenActiveUtc)
	assert.Equal(t, lastActive, *finding.LastSeenActiveUtc)
	require.NotNil(t, finding.InactiveDurationDays)
	assert.True(t, finding.InactiveDurationDays.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, types.ConfidenceMedium, finding.WasteConfidenceLevel)
}

func TestStoppedVMPriorDetectionOnlyIsLowConfidence(t *testing.T) {
	in := vmInput(vmID)
	in.PriorFindings = []types.WasteFinding{{
		UserID:        testUser,
		FindingType:   types.FindingStoppedVM,
		ResourceID:    vmID,
		DetectedAtUtc: now.Add(-10 * 24 * time.Hour),
	}}

	findings := Classify(in)
	require.Len(t, findings, 1)
	finding := findings[0]
	// Inactivity is inferred from the prior detection alone, so even a
	// long gap stays a low-confidence "possibly unused".
	assert.Equal(t, types.ClassificationPossiblyUnused, finding.Classification)
	assert.Equal(t, types.ConfidenceLow, finding.WasteConfidenceLevel)
	assert.Nil(t, finding.LastSeenActiveUtc)
}

func TestStoppedVMFlatEstimateWithoutCostSignal(t *testing.T) {
	in := vmInput(vmID)
	in.PriorFindings = []types.WasteFinding{{
		UserID:        testUser,
		FindingType:   types.FindingStoppedVM,
		ResourceID:    vmID,
		DetectedAtUtc: now.Add(-5 * 24 * time.Hour),
	}}

	findings := Classify(in)
	require.Len(t, findings, 1)
	requireEstimate(t, findings[0], "20")
}

func TestFindingIdentityFields(t *testing.T) {
	in := baseInput()
	in.Inventory.Disks = []types.UnattachedDisk{{
		ResourceID: "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Compute/disks/d1",
		SKU:        "Standard_LRS",
		SizeGB:     10,
	}}

	findings := Classify(in)
	require.Len(t, findings, 1)
	finding := findings[0]
	assert.Equal(t, testUser, finding.UserID)
	assert.Equal(t, "sub-1", finding.SubscriptionID)
	// Name falls back to the identifier's last segment.
	assert.Equal(t, "d1", finding.ResourceName)
	assert.Equal(t, "Open", finding.Status)
	assert.Equal(t, now, finding.DetectedAtUtc)
}
