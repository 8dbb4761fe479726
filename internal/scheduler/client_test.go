package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreach_backend/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	return &config.Config{
		RedisURL:         "redis://" + mr.Addr(),
		AsynqQueueName:   "outreach",
		AsynqConcurrency: 1,
	}
}

func TestTriggerCycle_Enqueues(t *testing.T) {
	client, err := NewClient(testConfig(t))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer func() { _ = client.Close() }()

	err = client.TriggerCycle(context.Background(), RunCyclePayload{
		TriggeredAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("trigger cycle: %v", err)
	}
}

func TestTriggerCycle_DuplicateWhilePendingIsRejected(t *testing.T) {
	client, err := NewClient(testConfig(t))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer func() { _ = client.Close() }()

	payload := RunCyclePayload{TriggeredAt: time.Now().UTC().Format(time.RFC3339)}
	if err := client.TriggerCycle(context.Background(), payload); err != nil {
		t.Fatalf("first trigger: %v", err)
	}

	err = client.TriggerCycle(context.Background(), payload)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		t.Fatalf("expected task id conflict, got %v", err)
	}
}

func TestNewClient_RequiresRedisURL(t *testing.T) {
	if _, err := NewClient(&config.Config{}); err == nil {
		t.Fatal("expected error without a redis url")
	}
}

func TestRedisClientOpt_ParsesURL(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@redis.internal:6380/2", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Addr != "redis.internal:6380" {
		t.Fatalf("expected addr redis.internal:6380, got %q", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Fatalf("expected password parsed, got %q", opt.Password)
	}
	if opt.DB != 2 {
		t.Fatalf("expected db 2, got %d", opt.DB)
	}
	if opt.TLSConfig != nil {
		t.Fatal("expected no TLS config for redis scheme")
	}
}

func TestRedisClientOpt_TLSInsecure(t *testing.T) {
	opt, err := redisClientOpt("rediss://redis.internal:6380", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config for rediss scheme")
	}
}

func TestRunCyclePayload_RoundTrip(t *testing.T) {
	task, err := NewRunCycleTask(RunCyclePayload{TriggeredAt: "2026-08-28T12:00:00Z", Manual: true})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskRunCycle {
		t.Fatalf("expected task type %q, got %q", TaskRunCycle, task.Type())
	}

	payload, err := ParseRunCyclePayload(task)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.TriggeredAt != "2026-08-28T12:00:00Z" || !payload.Manual {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
