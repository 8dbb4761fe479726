// Package voice places outbound calls through a voice automation platform.
package voice

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
	"outreach_backend/platform/phone"
)

// Client talks to the voice platform API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type callRequest struct {
	To        string `json:"to"`
	ScriptRef string `json:"script_ref"`
}

type callResponse struct {
	CallID  string `json:"call_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a voice platform client, or nil when no platform is configured.
func NewClient(cfg config.VoiceConfig) *Client {
	if !cfg.IsVoiceEnabled() {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetVoiceAPIURL(), "/"),
		apiKey:  cfg.GetVoiceAPIKey(),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Send queues an outbound call driven by the configured call script.
// The platform dials asynchronously; an accepted call counts as sent.
func (c *Client) Send(ctx context.Context, lead domain.Lead, content dispatch.Content) (dispatch.SendResult, error) {
	payload := callRequest{
		To:        phone.NormalizeE164(lead.PhoneNumber()),
		ScriptRef: content.ScriptRef,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return dispatch.SendResult{}, fmt.Errorf("marshal call payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/calls", bytes.NewBuffer(body))
	if err != nil {
		return dispatch.SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dispatch.SendResult{}, fmt.Errorf("voice request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	var parsed callResponse
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode >= http.StatusBadRequest {
		return dispatch.SendResult{}, &domain.ProviderError{
			Channel:    domain.ChannelVoice,
			StatusCode: resp.StatusCode,
			Code:       parsed.Code,
			Message:    strings.TrimSpace(parsed.Message),
		}
	}

	return dispatch.SendResult{ProviderID: parsed.CallID}, nil
}
