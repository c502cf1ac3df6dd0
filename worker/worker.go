// Package worker runs the periodic pipeline: sync costs, evaluate
// users, scan for waste, notify on spikes.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"costpilot/core/engine"
	"costpilot/core/types"
	"costpilot/core/waste"
	"costpilot/ingest"
	"costpilot/notify"
	"costpilot/store"
)

// Options configures one worker instance. Ingest, Scanner, and
// Notifier are optional; a nil stage is skipped, so the worker runs
// with whatever collaborators the deployment wires in.
type Options struct {
	Store    store.Store
	Engine   *engine.Engine
	Ingest   *ingest.Service
	Scanner  *waste.Scanner
	Notifier *notify.Notifier

	// RunInterval between pipeline cycles, minimum one hour
	RunInterval time.Duration

	// SyncDays is the trailing cost window refreshed each cycle
	SyncDays int

	Log *zap.Logger
}

// Worker drives the pipeline on a fixed interval
type Worker struct {
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

// New creates a worker
func New(opts Options) *Worker {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.RunInterval < time.Hour {
		opts.RunInterval = time.Hour
	}
	if opts.SyncDays < 1 {
		opts.SyncDays = 7
	}
	return &Worker{
		opts: opts,
		log:  opts.Log,
		now:  time.Now,
	}
}

// Run executes the pipeline immediately, then on every interval tick
// until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started",
		zap.Duration("interval", w.opts.RunInterval),
		zap.Int("sync_days", w.opts.SyncDays))

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.opts.RunInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes one pipeline cycle. Each stage failure is logged
// and the cycle continues: a broken provider must not stop evaluation
// of data already ingested.
func (w *Worker) RunOnce(ctx context.Context) {
	started := w.now()

	if w.opts.Ingest != nil {
		if processed, err := w.opts.Ingest.Sync(ctx, w.opts.SyncDays); err != nil {
			w.log.Error("cost sync stage failed", zap.Error(err))
		} else {
			w.log.Info("cost sync stage done", zap.Int("targets", processed))
		}
	}

	if evaluated, err := w.opts.Engine.Run(ctx); err != nil {
		w.log.Error("evaluation stage failed", zap.Error(err))
	} else {
		w.log.Info("evaluation stage done", zap.Int("summaries", evaluated))
	}

	if w.opts.Scanner != nil {
		if err := w.runWasteScan(ctx); err != nil {
			w.log.Error("waste scan stage failed", zap.Error(err))
		}
	}

	if w.opts.Notifier != nil {
		if sent, err := w.opts.Notifier.NotifyLatestSpikes(ctx); err != nil {
			w.log.Error("notification stage failed", zap.Error(err))
		} else if sent > 0 {
			w.log.Info("notification stage done", zap.Int("sent", sent))
		}
	}

	w.log.Info("pipeline cycle complete", zap.Duration("elapsed", w.now().Sub(started)))
}

func (w *Worker) runWasteScan(ctx context.Context) error {
	today := types.DateOf(w.now().UTC())
	targets, err := w.opts.Store.DistinctTargets(ctx, store.DateRange{
		From: today.AddDays(-30),
		To:   today,
	})
	if err != nil {
		return err
	}
	findings, err := w.opts.Scanner.Scan(ctx, targets)
	if err != nil {
		return err
	}
	w.log.Info("waste scan stage done", zap.Int("findings", findings))
	return nil
}
