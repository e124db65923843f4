package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/events"
)

// ErrUnknownEvent marks event types nobody handles. Consumers ack these
// so the broker stops redelivering them.
var ErrUnknownEvent = errors.New("unknown event type")

// FlagSource exposes the switches consulted per event.
type FlagSource interface {
	ArePlanNotificationsDisabled(ctx context.Context) bool
}

// Dispatcher routes consumed domain events to their jobs.
type Dispatcher struct {
	sweep    *SweepJob
	notifier Notifier
	flags    FlagSource
	logger   zerolog.Logger
}

// DispatcherConfig holds dependencies for the dispatcher.
type DispatcherConfig struct {
	// Sweep handles lease_sweep events. Optional.
	Sweep *SweepJob

	// Notifier handles plan_ready events. Optional.
	Notifier Notifier

	// Flags gates notification delivery. Optional.
	Flags FlagSource

	Logger zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		sweep:    cfg.Sweep,
		notifier: cfg.Notifier,
		flags:    cfg.Flags,
		logger:   cfg.Logger,
	}
}

// Dispatch handles one decoded event.
func (d *Dispatcher) Dispatch(ctx context.Context, msg events.Message) error {
	switch msg.Type {
	case events.TypePlanReady:
		return d.handlePlanReady(ctx, msg)
	case events.TypeLeaseSweep:
		return d.handleLeaseSweep(ctx)
	default:
		return ErrUnknownEvent
	}
}

func (d *Dispatcher) handlePlanReady(ctx context.Context, msg events.Message) error {
	if msg.UserID == "" || msg.PlanID == "" {
		return errors.New("plan_ready event missing user or plan id")
	}

	if d.flags != nil && d.flags.ArePlanNotificationsDisabled(ctx) {
		d.logger.Info().
			Str("plan_id", msg.PlanID).
			Msg("plan notifications disabled, dropping event")
		return nil
	}

	if d.notifier == nil {
		return nil
	}

	return d.notifier.NotifyPlanReady(ctx, PlanReadyNotice{
		UserID: msg.UserID,
		PlanID: msg.PlanID,
	})
}

func (d *Dispatcher) handleLeaseSweep(ctx context.Context) error {
	if d.sweep == nil {
		return nil
	}
	return d.sweep.Run(ctx).Err
}
