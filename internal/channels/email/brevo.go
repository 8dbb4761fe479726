// Package email delivers outreach email through Brevo's transactional API or
// a plain SMTP relay, selected by configuration.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outreach_backend/internal/outreach/dispatch"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/config"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoSender sends email through the Brevo transactional API.
type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewSender selects the configured email sender. Disabled email yields a
// NoopSender so dispatch wiring stays uniform.
func NewSender(cfg config.EmailConfig) (dispatch.Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	switch cfg.GetEmailProvider() {
	case "smtp":
		return NewSMTPSender(cfg), nil
	case "brevo":
		return &BrevoSender{
			apiKey:    cfg.GetBrevoAPIKey(),
			fromName:  cfg.GetEmailFromName(),
			fromEmail: cfg.GetEmailFromAddress(),
			client:    &http.Client{Timeout: 10 * time.Second},
		}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.GetEmailProvider())
	}
}

// Send delivers one message and returns the Brevo message ID.
func (b *BrevoSender) Send(ctx context.Context, lead domain.Lead, content dispatch.Content) (dispatch.SendResult, error) {
	payload := brevoEmailRequest{
		Subject:     content.Subject,
		HTMLContent: content.Body,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: lead.EmailAddress()}}

	body, err := json.Marshal(payload)
	if err != nil {
		return dispatch.SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoEndpoint, bytes.NewReader(body))
	if err != nil {
		return dispatch.SendResult{}, err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return dispatch.SendResult{}, fmt.Errorf("brevo request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	var parsed brevoResponse
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return dispatch.SendResult{}, &domain.ProviderError{
			Channel:    domain.ChannelEmail,
			StatusCode: resp.StatusCode,
			Code:       mapBrevoCode(parsed.Code),
			Message:    strings.TrimSpace(parsed.Message),
		}
	}

	return dispatch.SendResult{ProviderID: parsed.MessageID}, nil
}

// mapBrevoCode folds Brevo error codes into the engine's fixed taxonomy.
func mapBrevoCode(code string) string {
	switch code {
	case "invalid_parameter", "missing_parameter":
		return domain.CodeInvalidRecipient
	case "permission_denied", "unauthorized":
		return ""
	case "too_many_requests":
		return domain.CodeRateLimited
	default:
		return code
	}
}

// NoopSender accepts every message without delivering. Used when email is
// disabled by configuration.
type NoopSender struct{}

// Send discards the message.
func (NoopSender) Send(context.Context, domain.Lead, dispatch.Content) (dispatch.SendResult, error) {
	return dispatch.SendResult{ProviderID: "noop"}, nil
}
