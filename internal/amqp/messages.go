package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"moneytrack/internal/ports"
)

// TransactionEvent announces that a transaction changed. It carries only the id
// and the kind of change; consumers fetch the current record from the store.
type TransactionEvent struct {
	ID        string    `json:"id"`
	Op        ports.Op  `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(c ports.Change) *TransactionEvent {
	return &TransactionEvent{
		ID:        c.ID,
		Op:        c.Op,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.ID == "" {
		return nil, fmt.Errorf("event has no id")
	}
	switch e.Op {
	case ports.OpCreated, ports.OpUpdated, ports.OpDeleted:
	default:
		return nil, fmt.Errorf("unknown event op %q", e.Op)
	}
	return &e, nil
}
