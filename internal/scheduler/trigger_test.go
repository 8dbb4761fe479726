package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type recordingTrigger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *recordingTrigger) TriggerCycle(context.Context, RunCyclePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *recordingTrigger) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestTrigger_FiresImmediatelyAndOnTicks(t *testing.T) {
	rec := &recordingTrigger{}
	trigger := NewTrigger(rec, 10*time.Millisecond, logger.New("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 105*time.Millisecond)
	defer cancel()
	trigger.Run(ctx)

	if got := rec.callCount(); got < 2 {
		t.Fatalf("expected at least 2 trigger fires, got %d", got)
	}
}

func TestTrigger_ConflictIsSkippedNotFatal(t *testing.T) {
	rec := &recordingTrigger{err: asynq.ErrTaskIDConflict}
	trigger := NewTrigger(rec, 10*time.Millisecond, logger.New("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	trigger.Run(ctx)

	if got := rec.callCount(); got < 2 {
		t.Fatalf("expected the trigger to keep ticking through conflicts, got %d fires", got)
	}
}
