package dispatch

import (
	"net/mail"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/phone"
)

// contactValid is the pre-flight gate on a lead's contact field for the
// channel. Malformed contact info is skipped before any provider call.
func contactValid(lead domain.Lead, channel domain.Channel) bool {
	switch channel {
	case domain.ChannelEmail:
		_, err := mail.ParseAddress(lead.EmailAddress())
		return err == nil
	case domain.ChannelSMS, domain.ChannelVoice:
		return phone.IsValid(lead.PhoneNumber())
	}
	return false
}
