// Package policy decides which channels a lead is eligible for at a given
// instant. The engine is a pure function over the lead's contact fields and
// the configured channel windows; it intentionally knows nothing about
// failures or fallback — a channel missing from its result means "never
// chosen", which must stay distinct from "attempted and failed".
package policy

import (
	"fmt"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/config"
)

// Engine evaluates channel eligibility.
type Engine struct {
	priority []domain.Channel
	windows  map[domain.Channel]config.Window
	location *time.Location
}

// New builds an Engine from validated settings.
func New(settings config.OutreachSettings) (*Engine, error) {
	priority := make([]domain.Channel, 0, len(settings.ChannelPriority))
	for _, name := range settings.ChannelPriority {
		channel, ok := domain.ParseChannel(name)
		if !ok {
			return nil, fmt.Errorf("unknown channel %q in priority order", name)
		}
		priority = append(priority, channel)
	}

	windows := make(map[domain.Channel]config.Window, len(settings.ChannelWindows))
	for name, window := range settings.ChannelWindows {
		channel, ok := domain.ParseChannel(name)
		if !ok {
			return nil, fmt.Errorf("unknown channel %q in channel windows", name)
		}
		windows[channel] = window
	}

	location := settings.Location
	if location == nil {
		location = time.UTC
	}

	return &Engine{
		priority: priority,
		windows:  windows,
		location: location,
	}, nil
}

// EligibleChannels returns the channels the lead may be contacted on right
// now, in configured priority order.
//
// SMS and voice require a phone number and the current time inside the
// channel's active window. Email requires an email address only.
func (e *Engine) EligibleChannels(lead domain.Lead, now time.Time) []domain.Channel {
	eligible := make([]domain.Channel, 0, len(e.priority))
	for _, channel := range e.priority {
		if e.eligible(lead, channel, now) {
			eligible = append(eligible, channel)
		}
	}
	return eligible
}

// Eligible reports whether a single channel is currently eligible for the
// lead. The dispatcher uses this for policy-gated fallback lookups.
func (e *Engine) Eligible(lead domain.Lead, channel domain.Channel, now time.Time) bool {
	return e.eligible(lead, channel, now)
}

// Priority returns the configured channel priority order.
func (e *Engine) Priority() []domain.Channel {
	return e.priority
}

func (e *Engine) eligible(lead domain.Lead, channel domain.Channel, now time.Time) bool {
	switch channel {
	case domain.ChannelEmail:
		return lead.EmailAddress() != ""
	case domain.ChannelSMS, domain.ChannelVoice:
		if lead.PhoneNumber() == "" {
			return false
		}
		window, ok := e.windows[channel]
		if !ok {
			return false
		}
		return window.Contains(now, e.location)
	}
	return false
}
