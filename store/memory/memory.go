// Package memory provides an in-memory cost record store, used by
// tests and local development seeding.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"costpilot/core/types"
	"costpilot/store"
)

// Store is a mutex-guarded in-memory implementation of store.Store
type Store struct {
	mu        sync.RWMutex
	costs     []types.DailyCostRecord
	summaries []types.CostSummary
	findings  []types.WasteFinding
}

// New creates an empty store
func New() *Store {
	return &Store{}
}

var _ store.Store = (*Store)(nil)

// QueryDailyCosts returns a user's cost rows inside the range
func (s *Store) QueryDailyCosts(_ context.Context, userID uuid.UUID, subscriptionID string, r store.DateRange) ([]types.DailyCostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []types.DailyCostRecord
	for _, row := range s.costs {
		if row.UserID != userID || !r.Contains(row.Date) {
			continue
		}
		if subscriptionID != "" && row.SubscriptionID != subscriptionID {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UpsertDailyCosts inserts rows, replacing any with the same natural
// key.
func (s *Store) UpsertDailyCosts(_ context.Context, rows []types.DailyCostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		replaced := false
		for i, existing := range s.costs {
			if sameCostKey(existing, row) {
				s.costs[i] = row
				replaced = true
				break
			}
		}
		if !replaced {
			s.costs = append(s.costs, row)
		}
	}
	return nil
}

// ReplaceDailyCosts swaps the (user, subscription, range) window for
// the given rows.
func (s *Store) ReplaceDailyCosts(_ context.Context, userID uuid.UUID, subscriptionID string, r store.DateRange, rows []types.DailyCostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.costs[:0]
	for _, row := range s.costs {
		drop := row.UserID == userID && r.Contains(row.Date) &&
			(subscriptionID == "" || row.SubscriptionID == subscriptionID)
		if !drop {
			kept = append(kept, row)
		}
	}
	s.costs = append(kept, rows...)
	return nil
}

// DeleteDailyCosts removes a user's rows inside the range
func (s *Store) DeleteDailyCosts(_ context.Context, userID uuid.UUID, r store.DateRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.costs[:0]
	for _, row := range s.costs {
		if row.UserID == userID && r.Contains(row.Date) {
			continue
		}
		kept = append(kept, row)
	}
	s.costs = kept
	return nil
}

// ReplaceCostSummary swaps the summary for (user, date)
func (s *Store) ReplaceCostSummary(_ context.Context, summary types.CostSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.summaries[:0]
	for _, existing := range s.summaries {
		if existing.UserID == summary.UserID && existing.Date == summary.Date {
			continue
		}
		kept = append(kept, existing)
	}
	s.summaries = append(kept, summary)
	return nil
}

// GetCostSummary returns the summary for (user, date), nil if none
func (s *Store) GetCostSummary(_ context.Context, userID uuid.UUID, date types.Date) (*types.CostSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, summary := range s.summaries {
		if summary.UserID == userID && summary.Date == date {
			copied := summary
			return &copied, nil
		}
	}
	return nil, nil
}

// QueryCostSummariesByDate returns all summaries for one date
func (s *Store) QueryCostSummariesByDate(_ context.Context, date types.Date) ([]types.CostSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summaries []types.CostSummary
	for _, summary := range s.summaries {
		if summary.Date == date {
			summaries = append(summaries, summary)
		}
	}
	return summaries, nil
}

// DeleteCostSummaries removes a user's summaries inside the range
func (s *Store) DeleteCostSummaries(_ context.Context, userID uuid.UUID, r store.DateRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.summaries[:0]
	for _, summary := range s.summaries {
		if summary.UserID == userID && r.Contains(summary.Date) {
			continue
		}
		kept = append(kept, summary)
	}
	s.summaries = kept
	return nil
}

// ReplaceWasteFindings swaps the tracked findings of the given users
// for the fresh scan result set.
func (s *Store) ReplaceWasteFindings(_ context.Context, userIDs []uuid.UUID, findingTypes []types.FindingType, rows []types.WasteFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, userID := range userIDs {
		users[userID] = struct{}{}
	}
	tracked := make(map[types.FindingType]struct{}, len(findingTypes))
	for _, findingType := range findingTypes {
		tracked[findingType] = struct{}{}
	}

	kept := s.findings[:0]
	for _, finding := range s.findings {
		_, userMatch := users[finding.UserID]
		_, typeMatch := tracked[finding.FindingType]
		if userMatch && typeMatch {
			continue
		}
		kept = append(kept, finding)
	}
	s.findings = append(kept, rows...)
	return nil
}

// QueryWasteFindings returns a user's findings sorted by estimated
// monthly cost descending, then detection time descending. A limit of
// 0 means no limit.
func (s *Store) QueryWasteFindings(_ context.Context, userID uuid.UUID, limit int) ([]types.WasteFinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var findings []types.WasteFinding
	for _, finding := range s.findings {
		if finding.UserID == userID {
			findings = append(findings, finding)
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		left, right := findings[i], findings[j]
		switch {
		case left.EstimatedMonthlyCost == nil && right.EstimatedMonthlyCost != nil:
			return false
		case left.EstimatedMonthlyCost != nil && right.EstimatedMonthlyCost == nil:
			return true
		case left.EstimatedMonthlyCost != nil && right.EstimatedMonthlyCost != nil &&
			!left.EstimatedMonthlyCost.Equal(*right.EstimatedMonthlyCost):
			return left.EstimatedMonthlyCost.GreaterThan(*right.EstimatedMonthlyCost)
		}
		return left.DetectedAtUtc.After(right.DetectedAtUtc)
	})

	if limit > 0 && len(findings) > limit {
		findings = findings[:limit]
	}
	return findings, nil
}

// DistinctUsers returns users with cost rows inside the range
func (s *Store) DistinctUsers(_ context.Context, r store.DateRange) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	var users []uuid.UUID
	for _, row := range s.costs {
		if !r.Contains(row.Date) {
			continue
		}
		if _, ok := seen[row.UserID]; ok {
			continue
		}
		seen[row.UserID] = struct{}{}
		users = append(users, row.UserID)
	}
	return users, nil
}

// DistinctTargets returns (user, subscription) pairs with cost rows
// inside the range.
func (s *Store) DistinctTargets(_ context.Context, r store.DateRange) ([]store.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[store.Target]struct{})
	var targets []store.Target
	for _, row := range s.costs {
		if !r.Contains(row.Date) {
			continue
		}
		target := store.Target{UserID: row.UserID, SubscriptionID: row.SubscriptionID}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		targets = append(targets, target)
	}
	return targets, nil
}

func sameCostKey(a, b types.DailyCostRecord) bool {
	return a.UserID == b.UserID &&
		a.SubscriptionID == b.SubscriptionID &&
		a.Date == b.Date &&
		types.NormalizeResourceID(a.ResourceID) == types.NormalizeResourceID(b.ResourceID)
}
