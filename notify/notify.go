// Package notify delivers spike alerts for the latest complete
// billing date. Delivery is pluggable; the default sender only logs.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"costpilot/core/types"
	"costpilot/internal/errors"
	"costpilot/store"
)

// Sender delivers one composed message to a recipient
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Config controls who gets notified
type Config struct {
	Enabled bool
	// Recipients maps user id to delivery address. Users without an
	// entry are skipped.
	Recipients map[string]string
}

// Notifier sends one alert per spiking user for the latest complete
// billing date.
type Notifier struct {
	store  store.Store
	sender Sender
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

// New creates a notifier
func New(st store.Store, sender Sender, cfg Config, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		store:  st,
		sender: sender,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// NotifyLatestSpikes finds the summaries flagged as spikes on the most
// recent summarized date and sends one alert each. Per-recipient
// delivery failures are logged, not propagated. Returns the number of
// alerts sent.
func (n *Notifier) NotifyLatestSpikes(ctx context.Context) (int, error) {
	if !n.cfg.Enabled {
		return 0, nil
	}

	date, ok, err := n.latestSummarizedDate(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		n.log.Warn("spike notifications skipped: no cost summaries found")
		return 0, nil
	}

	summaries, err := n.store.QueryCostSummariesByDate(ctx, date)
	if err != nil {
		return 0, errors.Storage("reading cost summaries", err)
	}

	sent := 0
	for _, summary := range summaries {
		if !summary.SpikeFlag {
			continue
		}
		recipient := n.cfg.Recipients[summary.UserID.String()]
		if strings.TrimSpace(recipient) == "" {
			continue
		}

		subject := fmt.Sprintf("Azure Cost Spike Detected (%s)", summary.Date)
		body := composeBody(summary)
		if err := n.sender.Send(ctx, recipient, subject, body); err != nil {
			n.log.Error("failed to send spike notification",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// latestSummarizedDate walks back from yesterday looking for a date
// with at least one persisted summary.
func (n *Notifier) latestSummarizedDate(ctx context.Context) (types.Date, bool, error) {
	currentDate := types.DateOf(n.now().UTC())
	for offset := 1; offset <= 7; offset++ {
		date := currentDate.AddDays(-offset)
		summaries, err := n.store.QueryCostSummariesByDate(ctx, date)
		if err != nil {
			return types.Date{}, false, errors.Storage("reading cost summaries", err)
		}
		if len(summaries) > 0 {
			return date, true, nil
		}
	}
	return types.Date{}, false, nil
}

func composeBody(summary types.CostSummary) string {
	topResource := "Unknown resource"
	topType := "unknown type"
	increase := "n/a"
	if summary.TopCause != nil {
		if summary.TopCause.ResourceName != "" {
			topResource = summary.TopCause.ResourceName
		}
		if summary.TopCause.ResourceType != "" {
			topType = summary.TopCause.ResourceType
		}
		increase = summary.TopCause.IncreaseAmount.StringFixed(2) + " USD"
	}

	lines := []string{
		fmt.Sprintf("A cost spike was detected for %s.", summary.Date),
		fmt.Sprintf("Previous day: %s USD", summary.TotalYesterday.StringFixed(2)),
		fmt.Sprintf("Latest day: %s USD", summary.TotalToday.StringFixed(2)),
		fmt.Sprintf("Difference: %s USD", summary.Difference.StringFixed(2)),
		fmt.Sprintf("Top cause: %s (%s), increase %s", topResource, topType, increase),
		"",
		"Azure Cost Spike Explainer",
	}
	return strings.Join(lines, "\n")
}

// LogSender writes notifications to the log instead of delivering
// them. Used until a real delivery channel is configured.
type LogSender struct {
	Log *zap.Logger
}

// Send logs the notification
func (s LogSender) Send(_ context.Context, recipient, subject, body string) error {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("spike notification",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
