// Package sms delivers outreach texts through an HTTP SMS gateway.
package sms

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

// Client talks to the SMS gateway. A nil client (gateway not configured)
// must not be registered as a sender.
type Client struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient creates an SMS gateway client, or nil when no gateway is configured.
func NewClient(cfg config.SMSConfig) *Client {
	if !cfg.IsSMSEnabled() {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:  cfg.GetSMSGatewayKey(),
		from:    cfg.GetSMSFromNumber(),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one text message and returns the gateway message ID.
func (c *Client) Send(ctx context.Context, lead domain.Lead, content dispatch.Content) (dispatch.SendResult, error) {
	payload := sendRequest{
		From: c.from,
		To:   phone.NormalizeE164(lead.PhoneNumber()),
		Body: content.Body,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return dispatch.SendResult{}, fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return dispatch.SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dispatch.SendResult{}, fmt.Errorf("sms request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	var parsed sendResponse
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode >= http.StatusBadRequest {
		return dispatch.SendResult{}, &domain.ProviderError{
			Channel:    domain.ChannelSMS,
			StatusCode: resp.StatusCode,
			Code:       parsed.Code,
			Message:    strings.TrimSpace(parsed.Message),
		}
	}

	return dispatch.SendResult{ProviderID: parsed.ID}, nil
}
