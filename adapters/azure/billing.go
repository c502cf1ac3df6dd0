// Package azure parses Azure Cost Management and Resource Graph query
// payloads into domain rows. Transport is injected: callers supply a
// fetch function, the adapter owns request shape and response parsing.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"costpilot/core/types"
	"costpilot/internal/errors"
	"costpilot/store"
)

// UnassignedResourceID stands in for cost rows the provider could not
// attribute to a resource.
const UnassignedResourceID = "[unassigned]"

// costColumnCandidates are the cost column names seen across Cost
// Management API versions, in preference order.
var costColumnCandidates = []string{
	"Cost",
	"PreTaxCost",
	"CostUSD",
	"CostInBillingCurrency",
}

// CostPoint is one parsed and aggregated cost cell
type CostPoint struct {
	Date       types.Date
	ResourceID string
	Cost       decimal.Decimal
	Currency   string
}

type costQueryResponse struct {
	Properties struct {
		Columns []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"columns"`
		Rows [][]json.RawMessage `json:"rows"`
	} `json:"properties"`
}

// ParseCostRows parses a Cost Management query response into
// aggregated daily cost points, sorted by date then resource
// identifier. Missing UsageDate, ResourceId, or cost columns are a
// data shape error; unexpected cell values degrade to zero cost and
// are aggregated away.
func ParseCostRows(payload []byte) ([]CostPoint, error) {
	var response costQueryResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, errors.Wrap(errors.TypeDataShape, "decoding cost query response", err)
	}

	columns := response.Properties.Columns
	rows := response.Properties.Rows
	if len(columns) == 0 || len(rows) == 0 {
		return nil, nil
	}

	indexes := make(map[string]int, len(columns))
	for i, column := range columns {
		indexes[strings.ToLower(column.Name)] = i
	}
	usageDateIndex, ok := indexes["usagedate"]
	if !ok {
		return nil, errors.DataShape("cost query response did not contain UsageDate column")
	}
	resourceIDIndex, ok := indexes["resourceid"]
	if !ok {
		return nil, errors.DataShape("cost query response did not contain ResourceId column")
	}
	costIndex := -1
	for _, candidate := range costColumnCandidates {
		if i, ok := indexes[strings.ToLower(candidate)]; ok {
			costIndex = i
			break
		}
	}
	if costIndex < 0 {
		return nil, errors.DataShape("cost query response did not contain a known cost column")
	}
	currencyIndex, hasCurrency := indexes["currency"]

	type aggregateKey struct {
		Date       types.Date
		ResourceID string
		Currency   string
	}
	aggregate := make(map[aggregateKey]decimal.Decimal)
	for _, row := range rows {
		if len(row) <= maxIndex(usageDateIndex, resourceIDIndex, costIndex) {
			continue
		}

		date, err := parseUsageDate(row[usageDateIndex])
		if err != nil {
			return nil, err
		}
		resourceID := parseStringCell(row[resourceIDIndex], UnassignedResourceID)
		currency := "USD"
		if hasCurrency && currencyIndex < len(row) {
			currency = parseStringCell(row[currencyIndex], "USD")
		}
		cost := parseDecimalCell(row[costIndex])

		key := aggregateKey{Date: date, ResourceID: resourceID, Currency: currency}
		aggregate[key] = aggregate[key].Add(cost)
	}

	points := make([]CostPoint, 0, len(aggregate))
	for key, cost := range aggregate {
		points = append(points, CostPoint{
			Date:       key.Date,
			ResourceID: key.ResourceID,
			Cost:       cost.Round(4),
			Currency:   key.Currency,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Date != points[j].Date {
			return points[i].Date.Before(points[j].Date)
		}
		return strings.ToLower(points[i].ResourceID) < strings.ToLower(points[j].ResourceID)
	})
	return points, nil
}

// BillingFetchFunc performs one Cost Management query and returns the
// raw response body.
type BillingFetchFunc func(ctx context.Context, subscriptionID string, from, to types.Date) ([]byte, error)

// BillingAdapter turns Cost Management responses into daily cost
// records for one scan target.
type BillingAdapter struct {
	fetch BillingFetchFunc
}

// NewBillingAdapter creates a billing adapter over the given fetch
// function.
func NewBillingAdapter(fetch BillingFetchFunc) *BillingAdapter {
	return &BillingAdapter{fetch: fetch}
}

// DailyCosts fetches and parses the target's cost rows for the window
func (a *BillingAdapter) DailyCosts(ctx context.Context, target store.Target, from, to types.Date) ([]types.DailyCostRecord, error) {
	payload, err := a.fetch(ctx, target.SubscriptionID, from, to)
	if err != nil {
		return nil, errors.Upstream("cost query failed", err)
	}

	points, err := ParseCostRows(payload)
	if err != nil {
		return nil, err
	}

	records := make([]types.DailyCostRecord, 0, len(points))
	for _, point := range points {
		records = append(records, types.DailyCostRecord{
			UserID:         target.UserID,
			SubscriptionID: target.SubscriptionID,
			Date:           point.Date,
			ResourceID:     types.TruncateResourceID(point.ResourceID),
			Cost:           point.Cost,
			Currency:       point.Currency,
		})
	}
	return records, nil
}

func maxIndex(indexes ...int) int {
	max := indexes[0]
	for _, index := range indexes[1:] {
		if index > max {
			max = index
		}
	}
	return max
}

// parseUsageDate accepts the formats Cost Management has been seen to
// return: numeric yyyymmdd, the same as a string, an ISO date, or a
// full timestamp.
func parseUsageDate(raw json.RawMessage) (types.Date, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return types.Date{}, errors.DataShape("UsageDate column returned an empty value")
	}

	if raw[0] != '"' {
		numeric, err := strconv.Atoi(string(raw))
		if err != nil {
			return types.Date{}, errors.DataShape("UsageDate column returned an unsupported format")
		}
		return numericDate(numeric), nil
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return types.Date{}, errors.Wrap(errors.TypeDataShape, "decoding UsageDate cell", err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return types.Date{}, errors.DataShape("UsageDate column returned an empty value")
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return numericDate(numeric), nil
	}
	if date, err := types.ParseDate(value); err == nil {
		return date, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return types.DateOf(parsed.UTC()), nil
	}
	return types.Date{}, errors.DataShape("UsageDate column returned an unsupported format")
}

func numericDate(yyyymmdd int) types.Date {
	return types.NewDate(yyyymmdd/10000, time.Month((yyyymmdd/100)%100), yyyymmdd%100)
}

func parseStringCell(raw json.RawMessage, fallback string) string {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return fallback
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

// parseDecimalCell degrades unparseable cost cells to zero rather
// than failing the whole response.
func parseDecimalCell(raw json.RawMessage) decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return decimal.Zero
	}
	if raw[0] == '"' {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return decimal.Zero
		}
		parsed, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return decimal.Zero
		}
		return parsed
	}
	parsed, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero
	}
	return parsed
}
