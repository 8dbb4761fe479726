// Command run-cycle executes a single outreach cycle and prints the summary.
// Useful for operations and for smoke-testing a new environment; the seed
// flag loads leads from a CSV file (first_name,last_name,email,phone) first.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
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
	"outreach_backend/migrations"
	"outreach_backend/platform/clock"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
)

func main() {
	seedPath := flag.String("seed", "", "path to a CSV file of leads to insert before the cycle")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting one-shot cycle")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg, migrations.FS); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	st := store.NewPostgres(pool)

	if *seedPath != "" {
		inserted, err := seedLeads(ctx, st, *seedPath)
		if err != nil {
			log.Error("failed to seed leads", "error", err)
			panic("failed to seed leads: " + err.Error())
		}
		log.Info("seeded leads", "count", inserted)
	}

	settings := cfg.GetOutreach()
	clk := clock.System{}

	engine, err := policy.New(settings)
	if err != nil {
		log.Error("failed to build channel policy", "error", err)
		panic("failed to build channel policy: " + err.Error())
	}

	senders := dispatch.Senders{}
	emailSender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}
	senders[domain.ChannelEmail] = emailSender
	if smsClient := sms.NewClient(cfg); smsClient != nil {
		senders[domain.ChannelSMS] = smsClient
	}
	if voiceClient := voice.NewClient(cfg); voiceClient != nil {
		senders[domain.ChannelVoice] = voiceClient
	}

	content := dispatch.StaticProvider{
		EmailSubject: cfg.MessageSubject,
		Body:         cfg.MessageBody,
		ScriptRef:    cfg.GetVoiceScriptRef(),
	}

	manager := claim.NewManager(st, clk, settings.LeaseTTL, log)
	dispatcher := dispatch.NewPool(st, manager, engine, senders, content, clk, settings, log)
	runner := cycle.NewRunner(st, manager, dispatcher, clk, settings, log)

	summary, err := runner.RunCycle(ctx)
	if err != nil {
		log.Error("cycle failed", "error", err)
		panic("cycle failed: " + err.Error())
	}

	fmt.Printf("cycle %s: claimed=%d released=%d duration=%s\n",
		summary.CycleID, summary.Claimed, summary.Released, summary.Duration.Round(time.Millisecond))
	for outcome, count := range summary.ByOutcome {
		fmt.Printf("  %s: %d\n", outcome, count)
	}
	for status, count := range summary.StatusCounts {
		fmt.Printf("  leads %s: %d\n", status, count)
	}
}

func seedLeads(ctx context.Context, st store.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 4

	inserted := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return inserted, nil
		}
		if err != nil {
			return inserted, err
		}

		params := store.InsertLeadParams{
			FirstName: record[0],
			LastName:  record[1],
		}
		if record[2] != "" {
			params.Email = &record[2]
		}
		if record[3] != "" {
			params.Phone = &record[3]
		}

		if _, err := st.InsertLead(ctx, params); err != nil {
			return inserted, err
		}
		inserted++
	}
}
