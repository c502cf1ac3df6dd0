package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"costpilot/core/attribution"
	"costpilot/core/baseline"
	"costpilot/core/billingdate"
	"costpilot/core/spike"
	"costpilot/core/types"
	"costpilot/internal/errors"
	"costpilot/store"
)

// maxWasteFindings caps the waste list read model
const maxWasteFindings = 100

// emptySummaryText is shown when a user has no cost data at all
const emptySummaryText = "No cost event yet. Run worker ingestion to generate a daily summary."

// SummaryView is the consumer-facing snapshot of a user's latest
// complete billing date, computed on demand from raw rows.
type SummaryView struct {
	Date             types.Date              `json:"date"`
	TotalYesterday   decimal.Decimal         `json:"total_yesterday"`
	TotalToday       decimal.Decimal         `json:"total_today"`
	Difference       decimal.Decimal         `json:"difference"`
	Baseline         decimal.Decimal         `json:"baseline"`
	MonthToDateTotal decimal.Decimal         `json:"month_to_date_total"`
	SpikeFlag        bool                    `json:"spike_flag"`
	Confidence       types.Confidence        `json:"confidence"`
	TopCause         *types.CauseAttribution `json:"top_cause,omitempty"`
	SuggestionText   string                  `json:"suggestion_text"`
}

// HistoryItem is one spike-or-threshold-exceeding day in the trailing
// week.
type HistoryItem struct {
	Date           types.Date              `json:"date"`
	TotalYesterday decimal.Decimal         `json:"total_yesterday"`
	TotalToday     decimal.Decimal         `json:"total_today"`
	Difference     decimal.Decimal         `json:"difference"`
	SpikeFlag      bool                    `json:"spike_flag"`
	TopCause       *types.CauseAttribution `json:"top_cause,omitempty"`
}

// Summary builds the dashboard snapshot for a user as of currentDate.
// A user with no data gets a zeroed view with an explanatory text, not
// an error.
func (e *Engine) Summary(ctx context.Context, userID uuid.UUID, currentDate types.Date) (SummaryView, error) {
	rows, err := e.store.QueryDailyCosts(ctx, userID, "", store.DateRange{
		From: currentDate.AddDays(-userFetchWindowDays),
		To:   currentDate,
	})
	if err != nil {
		return SummaryView{}, errors.Storage("reading cost rows", err)
	}

	monthStart := types.NewDate(currentDate.Year, currentDate.Month, 1)
	monthToDate := decimal.Zero
	for _, row := range rows {
		if !row.Date.Before(monthStart) && !row.Date.After(currentDate) {
			monthToDate = monthToDate.Add(row.Cost)
		}
	}

	billingDate, ok := billingdate.Resolve(rows, currentDate)
	if !ok {
		return SummaryView{
			Date:             currentDate,
			MonthToDateTotal: monthToDate.Round(4),
			Confidence:       types.ConfidenceLow,
			SuggestionText:   emptySummaryText,
		}, nil
	}

	summary := e.evaluate(userID, billingDate, rows)
	return SummaryView{
		Date:             summary.Date,
		TotalYesterday:   summary.TotalYesterday,
		TotalToday:       summary.TotalToday,
		Difference:       summary.Difference,
		Baseline:         summary.Baseline,
		MonthToDateTotal: monthToDate.Round(4),
		SpikeFlag:        summary.SpikeFlag,
		Confidence:       summary.Confidence,
		TopCause:         summary.TopCause,
		SuggestionText:   summary.SuggestionText,
	}, nil
}

// History returns the days in the trailing week, ending at the
// resolved billing date, whose increase either tripped the spike rules
// or simply exceeded the threshold. Empty when the user has no data.
func (e *Engine) History(ctx context.Context, userID uuid.UUID, currentDate types.Date, thresholdOverride decimal.Decimal) ([]HistoryItem, error) {
	threshold := spike.Threshold(thresholdOverride)

	rows, err := e.store.QueryDailyCosts(ctx, userID, "", store.DateRange{
		From: currentDate.AddDays(-userFetchWindowDays),
		To:   currentDate,
	})
	if err != nil {
		return nil, errors.Storage("reading cost rows", err)
	}

	toDate, ok := billingdate.Resolve(rows, currentDate)
	if !ok {
		return []HistoryItem{}, nil
	}

	var history []HistoryItem
	for offset := 0; offset < baseline.WindowDays; offset++ {
		date := toDate.AddDays(-offset)
		report := baseline.Compute(rows, date)
		spikeFlag := spike.Detect(report.Baseline, report.LatestTotal, report.Difference, threshold)
		if !spikeFlag && !report.Difference.GreaterThan(threshold) {
			continue
		}

		latest := attribution.TotalsFor(rows, date)
		previous := attribution.TotalsFor(rows, date.AddDays(-1))
		topCause := attribution.TopCause(attribution.PositiveDeltas(latest, previous))
		if topCause != nil {
			topCause.IncreaseAmount = topCause.IncreaseAmount.Round(4)
		}

		history = append(history, HistoryItem{
			Date:           date,
			TotalYesterday: report.PreviousTotal.Round(4),
			TotalToday:     report.LatestTotal.Round(4),
			Difference:     report.Difference.Round(4),
			SpikeFlag:      spikeFlag,
			TopCause:       topCause,
		})
	}
	if history == nil {
		history = []HistoryItem{}
	}
	return history, nil
}

// WasteList returns a user's open waste findings, highest estimated
// monthly cost first.
func (e *Engine) WasteList(ctx context.Context, userID uuid.UUID) ([]types.WasteFinding, error) {
	findings, err := e.store.QueryWasteFindings(ctx, userID, maxWasteFindings)
	if err != nil {
		return nil, errors.Storage("reading waste findings", err)
	}
	if findings == nil {
		findings = []types.WasteFinding{}
	}
	return findings, nil
}
