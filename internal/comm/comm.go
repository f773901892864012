package comm

import (
	"encoding/json"
	"time"
)

// Event is the envelope published on NATS for other services.
type Event struct {
	ID       string          `json:"id"`   // unique per event
	Type     string          `json:"type"` // e.g. "pase-created"
	Data     json.RawMessage `json:"data"`
	Instance string          `json:"instance,omitempty"` // publishing service instance
	SentAt   time.Time       `json:"sent_at"`
}
