// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SchedulerConfig provides settings for the asynq scheduler worker and client.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetCycleInterval() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailProvider() string
	GetBrevoAPIKey() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
}

// SMSConfig provides settings for the SMS gateway client.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	GetSMSFromNumber() string
	IsSMSEnabled() bool
}

// VoiceConfig provides settings for the voice platform client.
type VoiceConfig interface {
	GetVoiceAPIURL() string
	GetVoiceAPIKey() string
	GetVoiceScriptRef() string
	IsVoiceEnabled() bool
}

// OutreachConfig provides the orchestration engine settings.
type OutreachConfig interface {
	GetOutreach() OutreachSettings
}

// =============================================================================
// Outreach Settings
// =============================================================================

// Window is a per-channel active window in the configured timezone.
// Minutes are measured from midnight local time; a channel is active when
// StartMinute <= now < EndMinute on an active weekday.
type Window struct {
	StartMinute int
	EndMinute   int
	Days        [7]bool // indexed by time.Weekday
}

// Contains reports whether t (converted to loc) falls inside the window.
func (w Window) Contains(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	if !w.Days[int(local.Weekday())] {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= w.StartMinute && minute < w.EndMinute
}

// FallbackRule allows one explicit same-cycle fallback attempt: when a
// dispatch on OnChannel ends with OnOutcome, ThenChannel may be tried.
type FallbackRule struct {
	OnChannel   string
	OnOutcome   string
	ThenChannel string
}

// OutreachSettings holds every recognized orchestration option with
// validation enforced at load time.
type OutreachSettings struct {
	LeaseTTL          time.Duration            `validate:"gt=0"`
	BatchCapacity     int                      `validate:"min=1"`
	WorkerCount       int                      `validate:"min=1,max=64"`
	CycleInterval     time.Duration            `validate:"gt=0"`
	CycleDeadline     time.Duration            `validate:"gt=0"`
	Timezone          string                   `validate:"required"`
	ChannelPriority   []string                 `validate:"min=1,dive,oneof=sms email voice"`
	ChannelWindows    map[string]Window        `validate:"-"`
	CooldownByChannel map[string]time.Duration `validate:"-"`
	RetryMaxAttempts  int                      `validate:"min=1,max=10"`
	RetryBaseDelay    time.Duration            `validate:"gt=0"`
	SendRatePerSecond float64                  `validate:"gt=0"`
	FallbackRules     []FallbackRule           `validate:"-"`

	// Location is resolved from Timezone during Load.
	Location *time.Location `validate:"-"`
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	DatabaseURL      string
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	EmailEnabled     bool
	EmailProvider    string
	BrevoAPIKey      string
	EmailFromName    string
	EmailFromAddress string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMSGatewayURL    string
	SMSGatewayKey    string
	SMSFromNumber    string
	VoiceAPIURL      string
	VoiceAPIKey      string
	VoiceScriptRef   string
	MessageSubject   string
	MessageBody      string
	Outreach         OutreachSettings
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetCycleInterval() time.Duration    { return c.Outreach.CycleInterval }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetEmailProvider() string    { return c.EmailProvider }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string { return c.SMSGatewayKey }
func (c *Config) GetSMSFromNumber() string { return c.SMSFromNumber }
func (c *Config) IsSMSEnabled() bool       { return c.SMSGatewayURL != "" }

// VoiceConfig implementation
func (c *Config) GetVoiceAPIURL() string    { return c.VoiceAPIURL }
func (c *Config) GetVoiceAPIKey() string    { return c.VoiceAPIKey }
func (c *Config) GetVoiceScriptRef() string { return c.VoiceScriptRef }
func (c *Config) IsVoiceEnabled() bool      { return c.VoiceAPIURL != "" }

// OutreachConfig implementation
func (c *Config) GetOutreach() OutreachSettings { return c.Outreach }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	brevoAPIKey := getEnv("BREVO_API_KEY", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	outreach, err := loadOutreach()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		EmailEnabled:     emailEnabled,
		EmailProvider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "brevo")),
		BrevoAPIKey:      brevoAPIKey,
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Outreach"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMSGatewayURL:    getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:    getEnv("SMS_GATEWAY_KEY", ""),
		SMSFromNumber:    getEnv("SMS_FROM_NUMBER", ""),
		VoiceAPIURL:      getEnv("VOICE_API_URL", ""),
		VoiceAPIKey:      getEnv("VOICE_API_KEY", ""),
		VoiceScriptRef:   getEnv("VOICE_SCRIPT_REF", ""),
		MessageSubject:   getEnv("MESSAGE_SUBJECT", "We'd love to help"),
		MessageBody:      getEnv("MESSAGE_BODY", "Hi {{name}}, thanks for your interest. Reply to this message and we'll take it from there."),
		Outreach:         outreach,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.EmailProvider != "brevo" && cfg.EmailProvider != "smtp" {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be brevo or smtp, got %q", cfg.EmailProvider)
	}
	if emailEnabled && cfg.EmailProvider == "brevo" && cfg.BrevoAPIKey == "" {
		return nil, fmt.Errorf("BREVO_API_KEY is required when EMAIL_ENABLED is true and EMAIL_PROVIDER is brevo")
	}
	if emailEnabled && cfg.EmailProvider == "smtp" && cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is required when EMAIL_ENABLED is true and EMAIL_PROVIDER is smtp")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}

	return cfg, nil
}

func loadOutreach() (OutreachSettings, error) {
	settings := OutreachSettings{
		LeaseTTL:        mustDuration(getEnv("OUTREACH_LEASE_TTL", "2m")),
		BatchCapacity:   mustInt(getEnv("OUTREACH_BATCH_CAPACITY", "50")),
		WorkerCount:     mustInt(getEnv("OUTREACH_WORKER_COUNT", "5")),
		CycleInterval:   mustDuration(getEnv("OUTREACH_CYCLE_INTERVAL", "5m")),
		CycleDeadline:   mustDuration(getEnv("OUTREACH_CYCLE_DEADLINE", "4m")),
		Timezone:        getEnv("OUTREACH_TIMEZONE", "UTC"),
		ChannelPriority: splitCSV(getEnv("OUTREACH_CHANNEL_PRIORITY", "sms,email,voice")),
		ChannelWindows: map[string]Window{
			"sms":   {},
			"voice": {},
		},
		CooldownByChannel: map[string]time.Duration{
			"sms":   mustDuration(getEnv("OUTREACH_COOLDOWN_SMS", "72h")),
			"email": mustDuration(getEnv("OUTREACH_COOLDOWN_EMAIL", "168h")),
			"voice": mustDuration(getEnv("OUTREACH_COOLDOWN_VOICE", "168h")),
		},
		RetryMaxAttempts:  mustInt(getEnv("OUTREACH_RETRY_MAX_ATTEMPTS", "3")),
		RetryBaseDelay:    mustDuration(getEnv("OUTREACH_RETRY_BASE_DELAY", "500ms")),
		SendRatePerSecond: mustFloat(getEnv("OUTREACH_SEND_RATE_PER_CHANNEL", "5")),
	}

	smsWindow, err := parseWindow(getEnv("OUTREACH_SMS_WINDOW", "08:00-18:00"), getEnv("OUTREACH_SMS_DAYS", "Mon-Sat"))
	if err != nil {
		return OutreachSettings{}, fmt.Errorf("OUTREACH_SMS_WINDOW: %w", err)
	}
	settings.ChannelWindows["sms"] = smsWindow

	voiceWindow, err := parseWindow(getEnv("OUTREACH_VOICE_WINDOW", "09:00-17:00"), getEnv("OUTREACH_VOICE_DAYS", "Mon-Fri"))
	if err != nil {
		return OutreachSettings{}, fmt.Errorf("OUTREACH_VOICE_WINDOW: %w", err)
	}
	settings.ChannelWindows["voice"] = voiceWindow

	rules, err := parseFallbackRules(getEnv("OUTREACH_FALLBACK_RULES", ""))
	if err != nil {
		return OutreachSettings{}, err
	}
	settings.FallbackRules = rules

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return OutreachSettings{}, fmt.Errorf("OUTREACH_TIMEZONE: %w", err)
	}
	settings.Location = loc

	if err := validator.New().Struct(settings); err != nil {
		return OutreachSettings{}, fmt.Errorf("outreach settings invalid: %w", err)
	}
	if settings.CycleDeadline > settings.CycleInterval {
		return OutreachSettings{}, fmt.Errorf("OUTREACH_CYCLE_DEADLINE must not exceed OUTREACH_CYCLE_INTERVAL")
	}

	return settings, nil
}

// parseWindow parses "08:00-18:00" plus a day range ("Mon-Sat") or day list
// ("Mon,Wed,Fri") into a Window.
func parseWindow(hours, days string) (Window, error) {
	var w Window

	parts := strings.SplitN(strings.TrimSpace(hours), "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("expected HH:MM-HH:MM, got %q", hours)
	}
	start, err := parseMinute(parts[0])
	if err != nil {
		return Window{}, err
	}
	end, err := parseMinute(parts[1])
	if err != nil {
		return Window{}, err
	}
	if end <= start {
		return Window{}, fmt.Errorf("window end %q must be after start %q", parts[1], parts[0])
	}
	w.StartMinute = start
	w.EndMinute = end

	daySet, err := parseDays(days)
	if err != nil {
		return Window{}, err
	}
	w.Days = daySet

	return w, nil
}

func parseMinute(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseDays(value string) ([7]bool, error) {
	var days [7]bool
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return days, fmt.Errorf("day range is required")
	}

	if strings.Contains(trimmed, "-") && !strings.Contains(trimmed, ",") {
		parts := strings.SplitN(trimmed, "-", 2)
		from, ok := weekdayNames[strings.ToLower(strings.TrimSpace(parts[0]))]
		if !ok {
			return days, fmt.Errorf("unknown weekday %q", parts[0])
		}
		to, ok := weekdayNames[strings.ToLower(strings.TrimSpace(parts[1]))]
		if !ok {
			return days, fmt.Errorf("unknown weekday %q", parts[1])
		}
		for d := from; ; d = (d + 1) % 7 {
			days[int(d)] = true
			if d == to {
				break
			}
		}
		return days, nil
	}

	for _, part := range splitCSV(trimmed) {
		d, ok := weekdayNames[strings.ToLower(part)]
		if !ok {
			return days, fmt.Errorf("unknown weekday %q", part)
		}
		days[int(d)] = true
	}
	return days, nil
}

// parseFallbackRules parses "sms:failed_permanent>email,voice:failed_permanent>sms".
func parseFallbackRules(value string) ([]FallbackRule, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	var rules []FallbackRule
	for _, part := range splitCSV(trimmed) {
		sides := strings.SplitN(part, ">", 2)
		if len(sides) != 2 {
			return nil, fmt.Errorf("invalid fallback rule %q, expected on_channel:on_outcome>then_channel", part)
		}
		trigger := strings.SplitN(sides[0], ":", 2)
		if len(trigger) != 2 {
			return nil, fmt.Errorf("invalid fallback trigger %q, expected on_channel:on_outcome", sides[0])
		}
		rules = append(rules, FallbackRule{
			OnChannel:   strings.ToLower(strings.TrimSpace(trigger[0])),
			OnOutcome:   strings.ToLower(strings.TrimSpace(trigger[1])),
			ThenChannel: strings.ToLower(strings.TrimSpace(sides[1])),
		})
	}
	return rules, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
