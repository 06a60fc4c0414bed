package events

const (
	TypeLinkVisited = "link.visited"
	TypeLinkChanged = "link.changed"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LinkVisited is emitted after a redirect's view increment was persisted.
type LinkVisited struct {
	EventID    string `json:"eventId"`
	LinkID     string `json:"linkId"`
	Views      uint64 `json:"views"`
	OccurredAt string `json:"occurredAt"`
}

// LinkChanged is emitted when a record is created, replaced or deleted.
type LinkChanged struct {
	EventID    string `json:"eventId"`
	LinkID     string `json:"linkId"`
	Action     string `json:"action"`
	Revision   string `json:"revision,omitempty"`
	OccurredAt string `json:"occurredAt"`
}
