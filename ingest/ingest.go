// Package ingest syncs provider cost data into the store, one
// replace-window write per scan target.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"costpilot/core/types"
	"costpilot/internal/errors"
	"costpilot/store"
)

// CostSource fetches daily cost rows for one target and window
type CostSource interface {
	DailyCosts(ctx context.Context, target store.Target, from, to types.Date) ([]types.DailyCostRecord, error)
}

// TargetSource lists the scan targets a sync covers
type TargetSource interface {
	Targets(ctx context.Context) ([]store.Target, error)
}

// Service pulls each target's cost window from the source and replaces
// the stored window with it.
type Service struct {
	store   store.Store
	source  CostSource
	targets TargetSource
	log     *zap.Logger
	now     func() time.Time
}

// New creates an ingest service
func New(st store.Store, source CostSource, targets TargetSource, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   st,
		source:  source,
		targets: targets,
		log:     log,
		now:     time.Now,
	}
}

// Sync refreshes the trailing window of the given length for every
// target. A failing target is logged and skipped; the returned count
// is the number of targets whose window was replaced.
func (s *Service) Sync(ctx context.Context, days int) (int, error) {
	if days < 1 {
		days = 1
	}
	endDate := types.DateOf(s.now().UTC())
	startDate := endDate.AddDays(-(days - 1))
	window := store.DateRange{From: startDate, To: endDate}

	targets, err := s.targets.Targets(ctx)
	if err != nil {
		return 0, errors.Upstream("listing sync targets", err)
	}

	processed := 0
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return processed, errors.Internal("cost sync canceled", err)
		}

		rows, err := s.source.DailyCosts(ctx, target, startDate, endDate)
		if err != nil {
			s.log.Error("cost sync failed for subscription",
				zap.String("subscription_id", target.SubscriptionID),
				zap.String("user_id", target.UserID.String()),
				zap.Error(err))
			continue
		}

		if err := s.store.ReplaceDailyCosts(ctx, target.UserID, target.SubscriptionID, window, rows); err != nil {
			s.log.Error("cost window replace failed",
				zap.String("subscription_id", target.SubscriptionID),
				zap.String("user_id", target.UserID.String()),
				zap.Error(err))
			continue
		}
		processed++
	}

	s.log.Info("cost sync complete",
		zap.Int("processed", processed),
		zap.Int("targets", len(targets)),
		zap.String("from", startDate.String()),
		zap.String("to", endDate.String()))
	return processed, nil
}

// StoreTargets derives sync targets from the store's existing cost
// rows: every (user, subscription) pair seen in the trailing window.
type StoreTargets struct {
	Store        store.Store
	LookbackDays int
}

// Targets lists (user, subscription) pairs with recent cost rows
func (s StoreTargets) Targets(ctx context.Context) ([]store.Target, error) {
	lookback := s.LookbackDays
	if lookback < 1 {
		lookback = 30
	}
	today := types.DateOf(time.Now().UTC())
	return s.Store.DistinctTargets(ctx, store.DateRange{
		From: today.AddDays(-lookback),
		To:   today,
	})
}
