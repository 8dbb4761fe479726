package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/channels/email"
	"outreach_backend/internal/channels/sms"
	"outreach_backend/internal/channels/voice"
	"outreach_backend/internal/outreach/claim"
	"outreach_backend/internal/outreach/cycle"
	"outreach_backend/internal/outreach/dispatch"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/policy"
	"outreach_backend/internal/outreach/store"
	"outreach_backend/internal/scheduler"
	"outreach_backend/migrations"
	"outreach_backend/platform/clock"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg, migrations.FS); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	runner, err := buildRunner(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize cycle runner", "error", err)
		panic("failed to initialize cycle runner: " + err.Error())
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	trigger := scheduler.NewTrigger(client, cfg.GetOutreach().CycleInterval, log)
	go trigger.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, runner, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func buildRunner(cfg *config.Config, pool *pgxpool.Pool, log *logger.Logger) (*cycle.Runner, error) {
	settings := cfg.GetOutreach()
	st := store.NewPostgres(pool)
	clk := clock.System{}

	engine, err := policy.New(settings)
	if err != nil {
		return nil, err
	}

	senders, err := buildSenders(cfg)
	if err != nil {
		return nil, err
	}

	content := dispatch.StaticProvider{
		EmailSubject: cfg.MessageSubject,
		Body:         cfg.MessageBody,
		ScriptRef:    cfg.GetVoiceScriptRef(),
	}

	manager := claim.NewManager(st, clk, settings.LeaseTTL, log)
	dispatcher := dispatch.NewPool(st, manager, engine, senders, content, clk, settings, log)

	return cycle.NewRunner(st, manager, dispatcher, clk, settings, log), nil
}

func buildSenders(cfg *config.Config) (dispatch.Senders, error) {
	senders := dispatch.Senders{}

	emailSender, err := email.NewSender(cfg)
	if err != nil {
		return nil, err
	}
	senders[domain.ChannelEmail] = emailSender

	if smsClient := sms.NewClient(cfg); smsClient != nil {
		senders[domain.ChannelSMS] = smsClient
	}
	if voiceClient := voice.NewClient(cfg); voiceClient != nil {
		senders[domain.ChannelVoice] = voiceClient
	}

	return senders, nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
