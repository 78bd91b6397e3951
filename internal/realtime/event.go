package realtime

import (
	"safecircle/backend/internal/models"

	"github.com/goccy/go-json"
)

// EventAck is the event name used to answer a client event that carried an ackId.
const EventAck = "ack"

// Event is the JSON envelope exchanged over a connection in both directions.
type Event struct {
	Name  string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ackId,omitempty"`
}

// NewEvent encodes payload into an outbound event.
func NewEvent(name string, payload interface{}) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// AckFunc answers the client's acknowledgment callback. It is never nil;
// when the client asked for no ack it does nothing.
type AckFunc func(resp models.AckResponse)
