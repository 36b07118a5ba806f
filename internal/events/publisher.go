package events

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointments/internal/appointment"
)

const (
	RedisChannel = "appointments.events"
	Exchange     = "appointments"
)

// Publisher delivers outbox events to a broker. Delivery is at least once:
// a consumer may see the same event id more than once.
type Publisher interface {
	Publish(ctx context.Context, ev appointment.EventLog) error
	Close() error
}

// Message is the wire form of an event on every broker.
type Message struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Payload       json.RawMessage `json:"payload"`
}

func Encode(ev appointment.EventLog) ([]byte, error) {
	return json.Marshal(Message{
		ID:            ev.ID,
		Type:          ev.EventType,
		AppointmentID: ev.AppointmentID,
		CreatedAt:     ev.CreatedAt.UTC(),
		Payload:       json.RawMessage(ev.Payload),
	})
}

// RoutingKey turns APPOINTMENT_APPROVED into appointment_approved.
func RoutingKey(eventType string) string {
	return strings.ToLower(eventType)
}
