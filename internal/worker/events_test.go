package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroplan/macroplan/internal/events"
	"github.com/macroplan/macroplan/internal/lease"
	"github.com/macroplan/macroplan/internal/worker"
)

// recordingNotifier captures delivered notices for inspection.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []worker.PlanReadyNotice
	err     error
}

func (n *recordingNotifier) NotifyPlanReady(_ context.Context, notice worker.PlanReadyNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) recorded() []worker.PlanReadyNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]worker.PlanReadyNotice(nil), n.notices...)
}

type stubFlags struct {
	notificationsDisabled bool
}

func (f stubFlags) ArePlanNotificationsDisabled(context.Context) bool {
	return f.notificationsDisabled
}

func TestDispatcher_PlanReady(t *testing.T) {
	notifier := &recordingNotifier{}
	d := worker.NewDispatcher(worker.DispatcherConfig{
		Notifier: notifier,
		Flags:    stubFlags{},
		Logger:   zerolog.Nop(),
	})

	err := d.Dispatch(context.Background(), events.Message{
		Type:   events.TypePlanReady,
		UserID: "usr_123",
		PlanID: "plan_456",
	})

	require.NoError(t, err)
	notices := notifier.recorded()
	require.Len(t, notices, 1)
	assert.Equal(t, "usr_123", notices[0].UserID)
	assert.Equal(t, "plan_456", notices[0].PlanID)
}

func TestDispatcher_PlanReady_NotificationsDisabled(t *testing.T) {
	notifier := &recordingNotifier{}
	d := worker.NewDispatcher(worker.DispatcherConfig{
		Notifier: notifier,
		Flags:    stubFlags{notificationsDisabled: true},
		Logger:   zerolog.Nop(),
	})

	err := d.Dispatch(context.Background(), events.Message{
		Type:   events.TypePlanReady,
		UserID: "usr_123",
		PlanID: "plan_456",
	})

	// Dropped silently, not an error; the event should not be redelivered.
	require.NoError(t, err)
	assert.Empty(t, notifier.recorded())
}

func TestDispatcher_PlanReady_MissingIDs(t *testing.T) {
	notifier := &recordingNotifier{}
	d := worker.NewDispatcher(worker.DispatcherConfig{
		Notifier: notifier,
		Logger:   zerolog.Nop(),
	})

	err := d.Dispatch(context.Background(), events.Message{Type: events.TypePlanReady})

	assert.Error(t, err)
	assert.Empty(t, notifier.recorded())
}

func TestDispatcher_PlanReady_NotifierError(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("channel down")}
	d := worker.NewDispatcher(worker.DispatcherConfig{
		Notifier: notifier,
		Logger:   zerolog.Nop(),
	})

	err := d.Dispatch(context.Background(), events.Message{
		Type:   events.TypePlanReady,
		UserID: "usr_123",
		PlanID: "plan_456",
	})

	assert.Error(t, err)
}

func TestDispatcher_LeaseSweep(t *testing.T) {
	ctx := context.Background()
	store := lease.NewInMemoryStore()

	_, err := store.Acquire(ctx, "usr_gone", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	sweep := worker.NewSweepJob(worker.SweepJobConfig{
		Leases: store,
		Logger: zerolog.Nop(),
	})
	d := worker.NewDispatcher(worker.DispatcherConfig{
		Sweep:  sweep,
		Logger: zerolog.Nop(),
	})

	err = d.Dispatch(ctx, events.Message{Type: events.TypeLeaseSweep})

	require.NoError(t, err)
	assert.Equal(t, int64(1), sweep.GetMetrics().TotalSwept)
}

func TestDispatcher_UnknownEvent(t *testing.T) {
	d := worker.NewDispatcher(worker.DispatcherConfig{Logger: zerolog.Nop()})

	err := d.Dispatch(context.Background(), events.Message{Type: "price_drop"})

	assert.ErrorIs(t, err, worker.ErrUnknownEvent)
}

func TestLogNotifier_NotifyPlanReady(t *testing.T) {
	n := worker.NewLogNotifier(zerolog.Nop())

	err := n.NotifyPlanReady(context.Background(), worker.PlanReadyNotice{
		UserID: "usr_123",
		PlanID: "plan_456",
	})

	assert.NoError(t, err)
}
