package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// MaxRetries bounds how many times a failed row is picked up again.
const MaxRetries = 10

// Event is a row read back from the outbox table by the relay.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}

// Entry is what a repository writes into the outbox inside its own
// transaction.
type Entry struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
}

// NewEntry marshals payload as JSON.
func NewEntry(aggregateType, aggregateID, eventType string, payload any, traceparent string) (Entry, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("outbox: marshal %s: %w", eventType, err)
	}
	return Entry{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       b,
		Headers:       map[string]string{"source": aggregateType + "-service"},
		Traceparent:   traceparent,
	}, nil
}
