package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is the kind of change a GiftChangedMessage announces.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Op) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// GiftChangedMessage announces that a gift changed. It carries only the id:
// consumers re-read the registry from the store.
type GiftChangedMessage struct {
	ID        string    `json:"id"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewGiftChangedMessage(id string, op Op) *GiftChangedMessage {
	return &GiftChangedMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *GiftChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// GiftChangedMessageFromJSON decodes and validates a message body.
func GiftChangedMessageFromJSON(data []byte) (*GiftChangedMessage, error) {
	var msg GiftChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("gift changed message without id")
	}
	if !msg.Op.Valid() {
		return nil, fmt.Errorf("unknown gift change op %q", msg.Op)
	}
	return &msg, nil
}
