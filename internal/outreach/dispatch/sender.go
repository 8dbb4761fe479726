package dispatch

import (
	"context"
	"strings"

	"outreach_backend/internal/outreach/domain"
)

// Content is the message handed to a channel sender. Copy generation is an
// external concern; the engine only transports what it is given.
type Content struct {
	Subject   string
	Body      string
	ScriptRef string // voice call script reference
}

// SendResult is the provider acknowledgement for a dispatched message.
type SendResult struct {
	ProviderID string
}

// Sender delivers content to a lead over one channel. Implementations
// return *domain.ProviderError for provider-side rejections so the failure
// classifier can decide retry versus permanent skip.
type Sender interface {
	Send(ctx context.Context, lead domain.Lead, content Content) (SendResult, error)
}

// Senders maps each channel onto its sender. A channel without a sender is
// treated as permanently unavailable for every lead.
type Senders map[domain.Channel]Sender

// ContentProvider resolves the message for a lead and channel.
type ContentProvider interface {
	MessageFor(ctx context.Context, lead domain.Lead, channel domain.Channel) (Content, error)
}

// StaticProvider serves a fixed template per channel, substituting the
// lead's name. Sufficient for campaigns whose copy is authored upstream.
type StaticProvider struct {
	EmailSubject string
	Body         string
	ScriptRef    string
}

// MessageFor renders the static template for the lead.
func (p StaticProvider) MessageFor(_ context.Context, lead domain.Lead, channel domain.Channel) (Content, error) {
	body := strings.ReplaceAll(p.Body, "{{name}}", lead.FullName())
	content := Content{Body: body}
	switch channel {
	case domain.ChannelEmail:
		content.Subject = p.EmailSubject
	case domain.ChannelVoice:
		content.ScriptRef = p.ScriptRef
	}
	return content, nil
}
