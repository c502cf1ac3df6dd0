package waste

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"costpilot/core/types"
	"costpilot/internal/errors"
	"costpilot/store"
)

// InventoryProvider fetches the current idle-resource inventory for
// one scan target.
type InventoryProvider interface {
	Snapshot(ctx context.Context, target store.Target) (types.InventorySnapshot, error)
}

// Scanner runs waste classification across scan targets and persists
// the resulting findings as one replace batch.
type Scanner struct {
	store     store.Store
	inventory InventoryProvider
	log       *zap.Logger
	now       func() time.Time
}

// NewScanner creates a waste scanner
func NewScanner(st store.Store, inventory InventoryProvider, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{
		store:     st,
		inventory: inventory,
		log:       log,
		now:       time.Now,
	}
}

// Scan classifies every target and replaces the tracked findings for
// all touched users in one write. A failing target is logged and
// skipped so the rest of the fleet still gets fresh findings; the
// write itself failing is fatal. Returns the number of findings
// persisted.
func (s *Scanner) Scan(ctx context.Context, targets []store.Target) (int, error) {
	now := s.now().UTC()
	today := types.DateOf(now)
	lookback := store.DateRange{From: today.AddDays(-(lookbackDays - 1)), To: today}

	histories := make(map[uuid.UUID][]types.DailyCostRecord)
	priors := make(map[uuid.UUID][]types.WasteFinding)
	touched := make(map[uuid.UUID]struct{})

	var findings []types.WasteFinding
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return 0, errors.Internal("waste scan canceled", err)
		}

		snapshot, err := s.inventory.Snapshot(ctx, target)
		if err != nil {
			s.log.Warn("inventory snapshot failed, skipping target",
				zap.String("user_id", target.UserID.String()),
				zap.String("subscription_id", target.SubscriptionID),
				zap.Error(err))
			continue
		}

		if _, ok := histories[target.UserID]; !ok {
			history, err := s.store.QueryDailyCosts(ctx, target.UserID, "", lookback)
			if err != nil {
				s.log.Warn("cost history read failed, skipping target",
					zap.String("user_id", target.UserID.String()),
					zap.Error(err))
				continue
			}
			prior, err := s.store.QueryWasteFindings(ctx, target.UserID, 0)
			if err != nil {
				s.log.Warn("prior findings read failed, skipping target",
					zap.String("user_id", target.UserID.String()),
					zap.Error(err))
				continue
			}
			histories[target.UserID] = history
			priors[target.UserID] = prior
		}

		targetFindings := Classify(Input{
			Target:        target,
			Today:         today,
			Now:           now,
			Inventory:     snapshot,
			CostHistory:   historyForSubscription(histories[target.UserID], target.SubscriptionID),
			PriorFindings: priors[target.UserID],
		})
		findings = append(findings, targetFindings...)
		touched[target.UserID] = struct{}{}
	}

	if len(touched) == 0 {
		return 0, nil
	}

	users := make([]uuid.UUID, 0, len(touched))
	for user := range touched {
		users = append(users, user)
	}
	if err := s.store.ReplaceWasteFindings(ctx, users, types.TrackedFindingTypes, findings); err != nil {
		return 0, errors.Storage("replacing waste findings", err)
	}

	s.log.Info("waste scan complete",
		zap.Int("targets", len(targets)),
		zap.Int("users", len(users)),
		zap.Int("findings", len(findings)))
	return len(findings), nil
}

func historyForSubscription(history []types.DailyCostRecord, subscriptionID string) []types.DailyCostRecord {
	if subscriptionID == "" {
		return history
	}
	var rows []types.DailyCostRecord
	for _, row := range history {
		if row.SubscriptionID == subscriptionID {
			rows = append(rows, row)
		}
	}
	return rows
}
