package presence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the push frame delivered to connected clients.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds a push envelope with a fresh message ID.
func NewEnvelope(typ string, payload json.RawMessage, ts time.Time) Envelope {
	return Envelope{
		ID:      uuid.NewString(),
		Type:    typ,
		TS:      ts,
		Payload: payload,
	}
}
