package links

import "time"

// Record is the persisted redirect record. The identifier is the storage key
// and is not part of the stored document.
type Record struct {
	URL             string  `json:"url"`
	ExpiryTimestamp *int64  `json:"expiry_timestamp"`
	MaxViews        *uint64 `json:"max_views"`
	Views           uint64  `json:"views"`
	Disabled        bool    `json:"disabled"`
	Revision        string  `json:"revision,omitempty"`
	CreatedAt       int64   `json:"created_at"`
	ModifiedAt      int64   `json:"modified_at"`
	LastViewedAt    *int64  `json:"last_viewed_at,omitempty"`
}

type Status string

const (
	StatusLive      Status = "live"
	StatusDisabled  Status = "disabled"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
)

// Status reports whether the record may redirect at now. Disabled wins over
// expiry, which wins over an exhausted view budget.
func (r Record) Status(now time.Time) Status {
	switch {
	case r.Disabled:
		return StatusDisabled
	case r.Expired(now):
		return StatusExpired
	case r.Exhausted():
		return StatusExhausted
	default:
		return StatusLive
	}
}

func (r Record) Expired(now time.Time) bool {
	return r.ExpiryTimestamp != nil && *r.ExpiryTimestamp <= now.Unix()
}

// Exhausted is true once views reached max_views. A zero cap is exhausted
// from the start.
func (r Record) Exhausted() bool {
	return r.MaxViews != nil && r.Views >= *r.MaxViews
}

// Details is the inspection view of a record.
type Details struct {
	ID     string
	Record Record
	Status Status
}

type UpsertInput struct {
	URL             string
	ExpiryTimestamp *int64
	ExpireIn        time.Duration
	MaxViews        *uint64
	Overwrite       bool
	Disabled        bool

	// RequestHost is the host the mutation arrived on; used to refuse
	// destinations that would loop back to this service.
	RequestHost string
}

type UpsertResult struct {
	Record  Record
	Created bool
}
