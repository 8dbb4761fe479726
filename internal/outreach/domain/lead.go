// Package domain holds the core outreach types: leads, touches, leases and
// the lead status machine. It has no dependencies on storage or transport.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery mechanism with its own eligibility window and sender.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelVoice Channel = "voice"
)

// ParseChannel maps a config string onto a known channel.
func ParseChannel(value string) (Channel, bool) {
	switch Channel(value) {
	case ChannelSMS, ChannelEmail, ChannelVoice:
		return Channel(value), true
	}
	return "", false
}

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	// StatusNew is an untouched lead awaiting its first claim.
	StatusNew LeadStatus = "new"
	// StatusProcessing means a worker holds a valid lease on the lead.
	StatusProcessing LeadStatus = "processing"
	// StatusTouched means at least one channel was dispatched; the lead
	// remains eligible for other channels after cooldown.
	StatusTouched LeadStatus = "touched"
	// StatusContacted is terminal: every viable channel was reached at least once.
	StatusContacted LeadStatus = "contacted"
	// StatusInvalidContact is terminal: no viable contact info remains.
	StatusInvalidContact LeadStatus = "invalid_contact"
	// StatusExhausted is terminal: all channels were attempted without a single delivery.
	StatusExhausted LeadStatus = "exhausted"
)

// EligibleStatuses are the statuses the claim manager may lease.
func EligibleStatuses() []LeadStatus {
	return []LeadStatus{StatusNew, StatusTouched}
}

// IsTerminal reports whether a status is never re-claimed.
func (s LeadStatus) IsTerminal() bool {
	switch s {
	case StatusContacted, StatusInvalidContact, StatusExhausted:
		return true
	}
	return false
}

// Lead is a contactable entity. A lead is owned exclusively by the claim
// manager while a valid lease exists; otherwise it is shared-read.
type Lead struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	Email          *string
	Phone          *string
	Status         LeadStatus
	ClaimedBy      string
	ClaimExpiresAt *time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasValidClaim reports whether a non-expired claim exists on the lead.
func (l Lead) HasValidClaim(now time.Time) bool {
	return l.ClaimedBy != "" && l.ClaimExpiresAt != nil && l.ClaimExpiresAt.After(now)
}

// EmailAddress returns the lead's email or "".
func (l Lead) EmailAddress() string {
	if l.Email == nil {
		return ""
	}
	return *l.Email
}

// PhoneNumber returns the lead's phone or "".
func (l Lead) PhoneNumber() string {
	if l.Phone == nil {
		return ""
	}
	return *l.Phone
}

// FullName joins the lead's name parts for message personalization.
func (l Lead) FullName() string {
	if l.FirstName == "" {
		return l.LastName
	}
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}
