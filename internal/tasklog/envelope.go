package tasklog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the durable unit of asynchronous settlement work. Envelopes
// are never mutated after append; they are consumed exactly once by the
// lane's consumer group (redelivered only while unacknowledged).
type Envelope struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	CardID        uuid.UUID       `json:"card_id,omitempty"`
	Kind          string          `json:"kind"`
	AmountMicros  int64           `json:"amount_micros"`
	Currency      string          `json:"currency"`
	Provider      string          `json:"provider"`
	Details       json.RawMessage `json:"details,omitempty"`
	Country       string          `json:"country"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}

func (e Envelope) marshal() ([]byte, error) {
	return json.Marshal(e)
}

func unmarshalEnvelope(raw string) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal([]byte(raw), &env)
	return env, err
}
