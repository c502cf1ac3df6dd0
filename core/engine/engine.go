// Package engine orchestrates the daily cost evaluation: resolve the
// billing date, aggregate totals, attribute the increase, apply the
// spike rules, and persist one summary per user and date.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"costpilot/core/attribution"
	"costpilot/core/baseline"
	"costpilot/core/billingdate"
	"costpilot/core/spike"
	"costpilot/core/types"
	"costpilot/internal/errors"
	"costpilot/store"
)

// userFetchWindowDays bounds the history read per evaluation. The
// baseline only ever looks 7 days behind the billing date, so 60 days
// is generous.
const userFetchWindowDays = 60

// runLookbackDays selects which users a batch run evaluates: anyone
// with cost rows inside this window.
const runLookbackDays = 30

// maxConcurrentEvaluations caps the per-user fan-out of a batch run
const maxConcurrentEvaluations = 4

// Engine evaluates users' daily costs against the spike rules
type Engine struct {
	store     store.Store
	threshold decimal.Decimal
	log       *zap.Logger
	now       func() time.Time
}

// New creates an engine. A non-positive threshold falls back to the
// default.
func New(st store.Store, threshold decimal.Decimal, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:     st,
		threshold: spike.Threshold(threshold),
		log:       log,
		now:       time.Now,
	}
}

// EvaluateUser runs one evaluation for a user as of currentDate and
// persists the resulting summary. Returns nil without error when the
// user has no cost rows; a user with no data is not a failure.
func (e *Engine) EvaluateUser(ctx context.Context, userID uuid.UUID, currentDate types.Date) (*types.CostSummary, error) {
	rows, err := e.store.QueryDailyCosts(ctx, userID, "", store.DateRange{
		From: currentDate.AddDays(-userFetchWindowDays),
		To:   currentDate,
	})
	if err != nil {
		return nil, errors.Storage("reading cost rows", err)
	}

	billingDate, ok := billingdate.Resolve(rows, currentDate)
	if !ok {
		e.log.Debug("no billing data for user, skipping evaluation",
			zap.String("user_id", userID.String()))
		return nil, nil
	}

	summary := e.evaluate(userID, billingDate, rows)
	if err := e.store.ReplaceCostSummary(ctx, summary); err != nil {
		return nil, errors.Storage("persisting cost summary", err)
	}

	e.log.Info("cost summary persisted",
		zap.String("user_id", userID.String()),
		zap.String("date", billingDate.String()),
		zap.Bool("spike", summary.SpikeFlag),
		zap.String("confidence", summary.Confidence.String()))
	return &summary, nil
}

func (e *Engine) evaluate(userID uuid.UUID, billingDate types.Date, rows []types.DailyCostRecord) types.CostSummary {
	report := baseline.Compute(rows, billingDate)
	latest := attribution.TotalsFor(rows, billingDate)
	previous := attribution.TotalsFor(rows, billingDate.AddDays(-1))
	deltas := attribution.PositiveDeltas(latest, previous)

	topCause := attribution.TopCause(deltas)
	if topCause != nil {
		topCause.IncreaseAmount = topCause.IncreaseAmount.Round(4)
	}
	spikeFlag := spike.Detect(report.Baseline, report.LatestTotal, report.Difference, e.threshold)

	topResourceID := ""
	if topCause != nil {
		topResourceID = topCause.ResourceID
	}

	return types.CostSummary{
		ID:             uuid.New(),
		UserID:         userID,
		Date:           billingDate,
		TotalYesterday: report.PreviousTotal.Round(4),
		TotalToday:     report.LatestTotal.Round(4),
		Difference:     report.Difference.Round(4),
		Baseline:       report.Baseline.Round(4),
		SpikeFlag:      spikeFlag,
		Confidence:     spike.Score(deltas),
		TopCause:       topCause,
		SuggestionText: spike.Suggestion(topResourceID, spikeFlag),
		CreatedAtUtc:   e.now().UTC(),
	}
}

// Run evaluates every user with recent cost rows. User failures are
// logged and do not stop the batch; the returned count is the number
// of summaries persisted.
func (e *Engine) Run(ctx context.Context) (int, error) {
	currentDate := types.DateOf(e.now().UTC())
	users, err := e.store.DistinctUsers(ctx, store.DateRange{
		From: currentDate.AddDays(-runLookbackDays),
		To:   currentDate,
	})
	if err != nil {
		return 0, errors.Storage("listing users for evaluation", err)
	}

	var mu sync.Mutex
	evaluated := 0

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentEvaluations)
	for _, userID := range users {
		userID := userID
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			summary, err := e.EvaluateUser(groupCtx, userID, currentDate)
			if err != nil {
				e.log.Warn("user evaluation failed",
					zap.String("user_id", userID.String()),
					zap.Error(err))
				return nil
			}
			if summary != nil {
				mu.Lock()
				evaluated++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return evaluated, errors.Internal("evaluation run canceled", err)
	}

	e.log.Info("evaluation run complete",
		zap.Int("users", len(users)),
		zap.Int("evaluated", evaluated))
	return evaluated, nil
}
