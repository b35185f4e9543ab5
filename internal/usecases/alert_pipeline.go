package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/abelzeko/waterwatch/internal/entities"
	"github.com/abelzeko/waterwatch/internal/metrics"
)

// ThresholdStore is the read side of the user store the pipeline needs
type ThresholdStore interface {
	ListUsersWithThresholds(ctx context.Context) ([]int64, error)
	GetUserThresholds(ctx context.Context, userID int64) (entities.UserThresholds, error)
	GetRecipients(ctx context.Context, userID int64) ([]string, error)
}

// AlertPipeline evaluates every user's thresholds against a snapshot and
// dispatches the resulting alerts.
//
// Alerts are not deduplicated across runs: a station that stays above a
// threshold alerts again on every refresh.
type AlertPipeline struct {
	store      ThresholdStore
	evaluator  *ThresholdEvaluator
	dispatcher *NotificationDispatcher
	logger     *slog.Logger
}

// NewAlertPipeline creates an alert pipeline
func NewAlertPipeline(store ThresholdStore, evaluator *ThresholdEvaluator, dispatcher *NotificationDispatcher, logger *slog.Logger) *AlertPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertPipeline{
		store:      store,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run processes all users with thresholds. A failure for one user is
// recorded and the run moves on to the next user. The returned slice holds
// every failure of the run.
func (p *AlertPipeline) Run(ctx context.Context, snap *entities.Snapshot) []error {
	metrics.PipelineRunsTotal.Inc()
	logger := p.logger.With("run_id", uuid.NewString())

	users, err := p.store.ListUsersWithThresholds(ctx)
	if err != nil {
		logger.Error("list users with thresholds", "error", err)
		return []error{fmt.Errorf("list users with thresholds: %w", err)}
	}

	var errs []error
	alerts := 0
	for _, userID := range users {
		sent, err := p.runUser(ctx, snap, userID)
		if err != nil {
			logger.Error("alert processing failed", "user_id", userID, "error", err)
			errs = append(errs, err)
			continue
		}
		if sent {
			alerts++
		}
	}

	logger.Info("alert pipeline finished",
		"users", len(users),
		"alerts", alerts,
		"failures", len(errs),
	)
	return errs
}

func (p *AlertPipeline) runUser(ctx context.Context, snap *entities.Snapshot, userID int64) (bool, error) {
	thresholds, err := p.store.GetUserThresholds(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get thresholds for user %d: %w", userID, err)
	}

	event, ok := p.evaluator.Evaluate(snap, userID, thresholds)
	if !ok {
		return false, nil
	}
	metrics.RecordDangerEvent(event.Location)
	p.logger.Warn("threshold exceeded",
		"user_id", userID,
		"location", event.Location,
		"level_cm", event.LevelCm,
		"threshold_cm", event.ThresholdCm,
	)

	recipients, err := p.store.GetRecipients(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get recipients for user %d: %w", userID, err)
	}

	if err := p.dispatcher.Dispatch(ctx, userID, recipients, event); err != nil {
		return false, err
	}
	return len(recipients) > 0, nil
}
