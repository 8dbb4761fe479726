package scheduler

import (
	"context"
	"errors"
	"time"

	"outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Trigger enqueues a cycle task on a fixed interval. The fixed task ID keeps
// overlapping triggers from stacking cycles: if the previous cycle is still
// pending or running, the tick is skipped.
type Trigger struct {
	client   CycleTrigger
	interval time.Duration
	log      *logger.Logger
}

func NewTrigger(client CycleTrigger, interval time.Duration, log *logger.Logger) *Trigger {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Trigger{client: client, interval: interval, log: log}
}

func (t *Trigger) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.fire(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire(ctx)
		}
	}
}

func (t *Trigger) fire(ctx context.Context) {
	err := t.client.TriggerCycle(ctx, RunCyclePayload{
		TriggeredAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil {
		return
	}

	if errors.Is(err, asynq.ErrTaskIDConflict) {
		t.log.Info("previous cycle still in flight, trigger skipped")
		return
	}

	t.log.Error("failed to enqueue cycle", "error", err)
}
