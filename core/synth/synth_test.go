package synth

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costpilot/core/types"
	"costpilot/internal/errors"
)

var (
	seedUser = uuid.MustParse("6f1d6c4e-0000-0000-0000-000000000002")
	toDate   = types.NewDate(2026, time.March, 10)
)

func generate(t *testing.T, scenario Scenario, days int) []types.DailyCostRecord {
	t.Helper()
	fromDate := toDate.AddDays(-(days - 1))
	return BuildRows(seedUser, FallbackSubscriptionID, scenario, fromDate, toDate, rand.New(rand.NewSource(42)))
}

func TestNormalizeScenarioAliases(t *testing.T) {
	cases := map[string]Scenario{
		"normal":          ScenarioNormal,
		"SPIKE":           ScenarioSpike,
		"noisy":           ScenarioNoisyIncreases,
		"noisy-increases": ScenarioNoisyIncreases,
		"missing":         ScenarioMissingData,
		"missing data":    ScenarioMissingData,
		"idle":            ScenarioIdleResources,
		" idle_resources": ScenarioIdleResources,
	}
	for input, expected := range cases {
		scenario, err := NormalizeScenario(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, scenario, input)
	}
}

func TestNormalizeScenarioRejectsUnknown(t *testing.T) {
	_, err := NormalizeScenario("chaos")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeValidation))
}

func TestClampDays(t *testing.T) {
	assert.Equal(t, MinDays, ClampDays(0))
	assert.Equal(t, MinDays, ClampDays(7))
	assert.Equal(t, 30, ClampDays(30))
	assert.Equal(t, MaxDays, ClampDays(400))
}

func TestBuildRowsNormalCoversEveryResourceAndDay(t *testing.T) {
	days := 14
	rows := generate(t, ScenarioNormal, days)
	assert.Len(t, rows, days*len(Templates))

	for _, row := range rows {
		assert.True(t, row.Cost.IsPositive())
		assert.Equal(t, "USD", row.Currency)
		assert.Equal(t, FallbackSubscriptionID, row.SubscriptionID)
		assert.Contains(t, row.ResourceID, "/subscriptions/"+FallbackSubscriptionID+"/")
		assert.True(t, row.Cost.Round(4).Equal(row.Cost), "cost %s is not rounded to 4 decimals", row.Cost)
	}
}

func TestBuildRowsDeterministicForSeed(t *testing.T) {
	first := generate(t, ScenarioNormal, 10)
	second := generate(t, ScenarioNormal, 10)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Cost.Equal(second[i].Cost))
	}
}

func TestBuildRowsSpikeInflatesSQLOnLatestCompleteDay(t *testing.T) {
	rows := generate(t, ScenarioSpike, 30)
	spikeDay := toDate.AddDays(-1)

	var sqlSpike, sqlQuiet decimal.Decimal
	for _, row := range rows {
		if !strings.Contains(row.ResourceID, "Microsoft.Sql") {
			continue
		}
		switch row.Date {
		case spikeDay:
			sqlSpike = row.Cost
		case toDate.AddDays(-10):
			sqlQuiet = row.Cost
		}
	}
	require.False(t, sqlSpike.IsZero())
	require.False(t, sqlQuiet.IsZero())
	// The spiked day carries a 4.8x multiplier plus a flat 15.
	assert.True(t, sqlSpike.GreaterThan(sqlQuiet.Mul(decimal.NewFromInt(4))),
		"spike %s vs quiet %s", sqlSpike, sqlQuiet)
}

func TestBuildRowsMissingDataGaps(t *testing.T) {
	rows := generate(t, ScenarioMissingData, 30)
	for _, row := range rows {
		assert.NotEqual(t, toDate, row.Date, "newest day must be absent")
		if strings.Contains(row.ResourceID, "Microsoft.Web/sites") {
			assert.NotEqual(t, toDate.AddDays(-3), row.Date)
		}
		if strings.Contains(row.ResourceID, "Microsoft.Storage") {
			assert.NotEqual(t, toDate.AddDays(-8), row.Date)
		}
	}
}

func TestBuildRowsIdleCostsAreNearZero(t *testing.T) {
	rows := generate(t, ScenarioIdleResources, 14)
	ceiling := decimal.RequireFromString("0.2")
	for _, row := range rows {
		assert.True(t, row.Cost.LessThan(ceiling), "idle cost %s", row.Cost)
	}
}

func TestBuildFindingsOnlyForIdleScenario(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	assert.Empty(t, BuildFindings(seedUser, FallbackSubscriptionID, ScenarioSpike, now))

	findings := BuildFindings(seedUser, FallbackSubscriptionID, ScenarioIdleResources, now)
	require.Len(t, findings, 3)

	byType := make(map[types.FindingType]types.WasteFinding)
	for _, finding := range findings {
		assert.Equal(t, "open", finding.Status)
		assert.Contains(t, finding.ResourceID, "azcost-idle-rg")
		byType[finding.FindingType] = finding
	}

	vm := byType[types.FindingStoppedVM]
	assert.Equal(t, "stopped-vm-01", vm.ResourceName)
	require.NotNil(t, vm.EstimatedMonthlyCost)
	assert.True(t, vm.EstimatedMonthlyCost.Equal(decimal.RequireFromString("14.80")))
	assert.Equal(t, now.Add(-15*time.Minute), vm.DetectedAtUtc)

	disk := byType[types.FindingUnattachedDisk]
	assert.Equal(t, "orphaned-disk-01", disk.ResourceName)
	require.NotNil(t, disk.EstimatedMonthlyCost)
	assert.True(t, disk.EstimatedMonthlyCost.Equal(decimal.RequireFromString("8.40")))

	ip := byType[types.FindingUnusedPublicIP]
	assert.Equal(t, "unused-ip-01", ip.ResourceName)
	require.NotNil(t, ip.EstimatedMonthlyCost)
	assert.True(t, ip.EstimatedMonthlyCost.Equal(decimal.RequireFromString("3.70")))
}

func TestNoteCoversEveryScenario(t *testing.T) {
	for _, scenario := range []Scenario{
		ScenarioNormal, ScenarioSpike, ScenarioNoisyIncreases,
		ScenarioMissingData, ScenarioIdleResources,
	} {
		assert.NotEmpty(t, Note(scenario))
	}
}
