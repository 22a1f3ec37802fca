package messages

import (
	"time"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
)

// InboundEvent is one message received from the broker.
// Payload is kept as received; no parsing or unit conversion happens.
type InboundEvent struct {
	Topic      entities.Topic `json:"topic"`
	Payload    string         `json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}
