package worker

import (
	"context"

	"github.com/rs/zerolog"
)

// PlanReadyNotice identifies a freshly stored plan to announce.
type PlanReadyNotice struct {
	UserID string
	PlanID string
}

// Notifier delivers plan-ready notifications to the user's channels.
// Implementations must be safe for concurrent use.
type Notifier interface {
	NotifyPlanReady(ctx context.Context, notice PlanReadyNotice) error
}

// LogNotifier records notifications in the log. It stands in until a
// push or email channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyPlanReady logs the notification.
func (n *LogNotifier) NotifyPlanReady(ctx context.Context, notice PlanReadyNotice) error {
	n.logger.Info().
		Str("user_id", notice.UserID).
		Str("plan_id", notice.PlanID).
		Msg("plan ready notification")
	return nil
}
