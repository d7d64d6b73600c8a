package model

import (
	"context"
	"strings"
	"time"
)

// MaxRoles is the most role keywords a subscriber may track at once.
const MaxRoles = 5

// DefaultRetention is how many delivery records are kept per subscriber.
const DefaultRetention = 30

// Posting is one internship listing as scraped from the source. Postings are
// transient: they are produced fresh on every fetch and never persisted
// beyond their link in the delivery ledger.
type Posting struct {
	Title    string
	Company  string
	Location string
	Duration string
	PostedOn string // raw date string as shown on the listing page
	Link     string // identity key within a source, query string stripped
}

// Profile holds the personal details collected during onboarding. They are
// surfaced back to the user on request and kept alongside the subscription.
type Profile struct {
	Name      string
	Email     string
	Contact   string
	StartDate string
	EndDate   string
	Summary   string
}

// Subscriber is one end user registered for internship alerts.
type Subscriber struct {
	ChatID    int64
	Roles     []string // 1..MaxRoles, lowercased, no duplicates
	Profile   Profile
	CreatedAt time.Time
}

// HasRole reports whether the subscriber already tracks the given role.
// Comparison is case-insensitive.
func (s *Subscriber) HasRole(role string) bool {
	role = NormalizeRole(role)
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeRole lowercases and trims a role keyword.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// PostingSource fetches postings for a set of role keywords. A failure for an
// individual keyword is logged and tolerated; implementations only return an
// error for failures that poison the whole fetch.
type PostingSource interface {
	Fetch(ctx context.Context, roles []string) ([]Posting, error)
}

// DeliveryLedger records which postings have been processed per subscriber,
// bounded per subscriber by a retention cap.
type DeliveryLedger interface {
	// HasAnyHistory reports whether at least one entry exists for the
	// subscriber. Distinguishes a first run from steady state.
	HasAnyHistory(chatID int64) (bool, error)
	// WasSent reports whether the (subscriber, link) pair is recorded.
	WasSent(chatID int64, link string) (bool, error)
	// RecordSent records a delivery. Recording an existing pair is a no-op.
	RecordSent(chatID int64, link string, sentAt time.Time) error
	// Trim deletes all but the keep most-recently-sent entries for the
	// subscriber.
	Trim(chatID int64, keep int) error
	// Count returns the number of entries for the subscriber.
	Count(chatID int64) (int, error)
	// DeleteAll removes every entry for the subscriber.
	DeleteAll(chatID int64) error
}

// SubscriberStore persists subscriber identity, roles, and profile.
type SubscriberStore interface {
	// Get returns the subscriber, or nil if not registered.
	Get(chatID int64) (*Subscriber, error)
	List() ([]Subscriber, error)
	Upsert(sub *Subscriber) error
	// Delete removes the subscriber and all their ledger entries.
	Delete(chatID int64) error
}

// Notifier delivers one posting alert to a subscriber.
type Notifier interface {
	NotifyPosting(ctx context.Context, chatID int64, p Posting) error
}
