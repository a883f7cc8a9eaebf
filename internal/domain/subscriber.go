package domain

import "time"

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberPending      SubscriberStatus = "pending"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber represents a single email recipient. Email is unique across the
// store, case-insensitively; the lower-cased trimmed form is the uniqueness
// key and EmailHash its md5, used for fast suppression joins.
type Subscriber struct {
	ID        string           `json:"id" db:"id"`
	Email     string           `json:"email" db:"email"`
	EmailHash string           `json:"-" db:"email_hash"`
	Status    SubscriberStatus `json:"status" db:"status"`

	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Company   string `json:"company" db:"company"`
	Phone     string `json:"phone" db:"phone"`
	Location  string `json:"location" db:"location"`

	// GroupIDs and SegmentIDs are membership sets, stored as uuid arrays.
	GroupIDs   []string `json:"group_ids" db:"group_ids"`
	SegmentIDs []string `json:"segment_ids" db:"segment_ids"`

	// DeliverabilityResult is the last verdict from the validation oracle
	// ("valid", "risky", "disposable", ...). Nil until a check has run.
	DeliverabilityResult *string `json:"deliverability_result" db:"deliverability_result"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileFields returns the free-form profile fields keyed by their canonical
// subscriber-field name. The import reconciler merges and replaces through
// this view so policy code never touches struct fields directly.
func (s *Subscriber) ProfileFields() map[string]string {
	return map[string]string{
		"first_name": s.FirstName,
		"last_name":  s.LastName,
		"company":    s.Company,
		"phone":      s.Phone,
		"location":   s.Location,
	}
}

// SetProfileField assigns a profile field by canonical name. Unknown names
// are ignored, mirroring how unmapped CSV columns are dropped.
func (s *Subscriber) SetProfileField(name, value string) {
	switch name {
	case "first_name":
		s.FirstName = value
	case "last_name":
		s.LastName = value
	case "company":
		s.Company = value
	case "phone":
		s.Phone = value
	case "location":
		s.Location = value
	}
}
