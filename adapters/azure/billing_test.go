package azure

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costpilot/core/types"
	"costpilot/internal/errors"
	"costpilot/store"
)

func TestParseCostRowsNumericDates(t *testing.T) {
	payload := []byte(`{
		"properties": {
			"columns": [
				{"name": "Cost", "type": "Number"},
				{"name": "UsageDate", "type": "Number"},
				{"name": "ResourceId", "type": "String"},
				{"name": "Currency", "type": "String"}
			],
			"rows": [
				[1.5, 20260309, "/subscriptions/s/rg/vm-1", "USD"],
				[2.25, 20260310, "/subscriptions/s/rg/vm-1", "USD"]
			]
		}
	}`)

	points, err := ParseCostRows(payload)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, types.NewDate(2026, time.March, 9), points[0].Date)
	assert.True(t, points[0].Cost.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, types.NewDate(2026, time.March, 10), points[1].Date)
	assert.Equal(t, "USD", points[1].Currency)
}

func TestParseCostRowsStringAndTimestampDates(t *testing.T) {
	payload := []byte(`{
		"properties": {
			"columns": [
				{"name": "PreTaxCost", "type": "Number"},
				{"name": "UsageDate", "type": "String"},
				{"name": "ResourceId", "type": "String"}
			],
			"rows": [
				[1, "20260309", "/r/a"],
				[2, "2026-03-09", "/r/b"],
				[3, "2026-03-09T00:00:00Z", "/r/c"]
			]
		}
	}`)

	points, err := ParseCostRows(payload)
	require.NoError(t, err)
	require.Len(t, points, 3)
	for _, point := range points {
		assert.Equal(t, types.NewDate(2026, time.March, 9), point.Date)
	}
}

func TestParseCostRowsAggregatesCaseVariants(t *testing.T) {
	// The same resource under differing identifier casing keeps two
	// points; casing normalization happens downstream. Same-key cells
	// are summed.
	payload := []byte(`{
		"properties": {
			"columns": [
				{"name": "Cost", "type": "Number"},
				{"name": "UsageDate", "type": "Number"},
				{"name": "ResourceId", "type": "String"}
			],
			"rows": [
				[1, 20260309, "/r/a"],
				[2, 20260309, "/r/a"],
				[4, 20260309, "/r/b"]
			]
		}
	}`)

	points, err := ParseCostRows(payload)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "/r/a", points[0].ResourceID)
	assert.True(t, points[0].Cost.Equal(decimal.NewFromInt(3)))
	assert.True(t, points[1].Cost.Equal(decimal.NewFromInt(4)))
}

func TestParseCostRowsFallsBackToUnassigned(t *testing.T) {
	payload := []byte(`{
		"properties": {
			"columns": [
				{"name": "CostUSD", "type": "Number"},
				{"name": "UsageDate", "type": "Number"},
				{"name": "ResourceId", "type": "String"}
			],
			"rows": [
				[5, 20260309, ""],
				[7, 20260309, null]
			]
		}
	}`)

	points, err := ParseCostRows(payload)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, UnassignedResourceID, points[0].ResourceID)
	assert.True(t, points[0].Cost.Equal(decimal.NewFromInt(12)))
}

func TestParseCostRowsCostColumnPreference(t *testing.T) {
	// Both Cost and CostInBillingCurrency are present; the earlier
	// candidate wins.
	payload := []byte(`{
		"properties": {
			"columns": [
				{"name": "CostInBillingCurrency", "type": "Number"},
				{"name": "Cost", "type": "Number"},
				{"name": "UsageDate", "type": "Number"},
				{"name": "ResourceId", "type": "String"}
			],
			"rows": [
				[100, 1, 20260309, "/r/a"]
			]
		}
	}`)

	points, err := ParseCostRows(payload)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Cost.Equal(decimal.NewFromInt(1)))
}

func TestParseCostRowsMissingColumns(t *testing.T) {
	cases := map[string]string{
		"no usage date": `{"properties": {"columns": [
			{"name": "Cost", "type": "Number"},
			{"name": "ResourceId", "type": "String"}
		], "rows": [[1, "/r/a"]]}}`,
		"no resource id": `{"properties": {"columns": [
			{"name": "Cost", "type": "Number"},
			{"name": "UsageDate", "type": "Number"}
		], "rows": [[1, 20260309]]}}`,
		"no cost column": `{"properties": {"columns": [
			{"name": "UsageDate", "type": "Number"},
			{"name": "ResourceId", "type": "String"}
		], "rows": [[20260309, "/r/a"]]}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCostRows([]byte(payload))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.TypeDataShape))
		})
	}
}

func TestParseCostRowsEmptyResponse(t *testing.T) {
	points, err := ParseCostRows([]byte(`{"properties": {"columns": [], "rows": []}}`))
	require.NoError(t, err)
	assert.Nil(t, points)
}

func TestParseCostRowsUnparseableCostDegradesToZero(t *testing.T) {
	payload := []byte(`{
		"properties": {
			"columns": [
				{"name": "Cost", "type": "Number"},
				{"name": "UsageDate", "type": "Number"},
				{"name": "ResourceId", "type": "String"}
			],
			"rows": [
				["not-a-number", 20260309, "/r/a"],
				["2.5", 20260309, "/r/a"]
			]
		}
	}`)

	points, err := ParseCostRows(payload)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Cost.Equal(decimal.RequireFromString("2.5")))
}

func TestBillingAdapterDailyCosts(t *testing.T) {
	userID := uuid.MustParse("6f1d6c4e-0000-0000-0000-000000000005")
	target := store.Target{UserID: userID, SubscriptionID: "sub-1"}

	fetch := func(_ context.Context, subscriptionID string, from, to types.Date) ([]byte, error) {
		assert.Equal(t, "sub-1", subscriptionID)
		return []byte(`{
			"properties": {
				"columns": [
					{"name": "Cost", "type": "Number"},
					{"name": "UsageDate", "type": "Number"},
					{"name": "ResourceId", "type": "String"}
				],
				"rows": [[3.5, 20260309, "/r/a"]]
			}
		}`), nil
	}

	records, err := NewBillingAdapter(fetch).DailyCosts(context.Background(), target,
		types.NewDate(2026, time.March, 1), types.NewDate(2026, time.March, 10))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, userID, records[0].UserID)
	assert.Equal(t, "sub-1", records[0].SubscriptionID)
	assert.Equal(t, "/r/a", records[0].ResourceID)
	assert.True(t, records[0].Cost.Equal(decimal.RequireFromString("3.5")))
}

func TestBillingAdapterFetchFailureIsUpstream(t *testing.T) {
	fetch := func(_ context.Context, _ string, _, _ types.Date) ([]byte, error) {
		return nil, assert.AnError
	}
	_, err := NewBillingAdapter(fetch).DailyCosts(context.Background(), store.Target{},
		types.NewDate(2026, time.March, 1), types.NewDate(2026, time.March, 10))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeUpstream))
}
