// Package store defines the cost record store contract.
// The engine reads and writes everything through this narrow
// interface; PostgreSQL and in-memory implementations live in
// subpackages.
package store

import (
	"context"

	"github.com/google/uuid"

	"costpilot/core/types"
)

// DateRange bounds a query by calendar date, inclusive on both ends.
// A zero From means unbounded history; a zero To means up to now.
type DateRange struct {
	From types.Date
	To   types.Date
}

// Contains reports whether the date falls inside the range
func (r DateRange) Contains(d types.Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// Target is one billing-account scan target: a user's subscription
type Target struct {
	UserID         uuid.UUID
	SubscriptionID string
}

// Store is the cost record store
type Store interface {
	// QueryDailyCosts returns cost rows for a user, optionally
	// restricted to one subscription (empty means all).
	QueryDailyCosts(ctx context.Context, userID uuid.UUID, subscriptionID string, r DateRange) ([]types.DailyCostRecord, error)

	// UpsertDailyCosts inserts rows, replacing any with the same
	// natural key.
	UpsertDailyCosts(ctx context.Context, rows []types.DailyCostRecord) error

	// ReplaceDailyCosts deletes the (user, subscription, range) window
	// and inserts the given rows in its place.
	ReplaceDailyCosts(ctx context.Context, userID uuid.UUID, subscriptionID string, r DateRange, rows []types.DailyCostRecord) error

	// DeleteDailyCosts removes a user's rows inside the range
	DeleteDailyCosts(ctx context.Context, userID uuid.UUID, r DateRange) error

	// ReplaceCostSummary deletes any summary for (user, date) and
	// inserts the given one.
	ReplaceCostSummary(ctx context.Context, summary types.CostSummary) error

	// GetCostSummary returns the summary for (user, date), nil if none
	GetCostSummary(ctx context.Context, userID uuid.UUID, date types.Date) (*types.CostSummary, error)

	// QueryCostSummariesByDate returns all summaries for one date
	QueryCostSummariesByDate(ctx context.Context, date types.Date) ([]types.CostSummary, error)

	// DeleteCostSummaries removes a user's summaries inside the range
	DeleteCostSummaries(ctx context.Context, userID uuid.UUID, r DateRange) error

	// ReplaceWasteFindings deletes all findings of the given types for
	// the given users and inserts the fresh scan result set.
	ReplaceWasteFindings(ctx context.Context, userIDs []uuid.UUID, findingTypes []types.FindingType, rows []types.WasteFinding) error

	// QueryWasteFindings returns a user's findings sorted by estimated
	// monthly cost descending, then detection time descending.
	QueryWasteFindings(ctx context.Context, userID uuid.UUID, limit int) ([]types.WasteFinding, error)

	// DistinctUsers returns users with cost rows inside the range
	DistinctUsers(ctx context.Context, r DateRange) ([]uuid.UUID, error)

	// DistinctTargets returns (user, subscription) pairs with cost
	// rows inside the range.
	DistinctTargets(ctx context.Context, r DateRange) ([]Target, error)
}
