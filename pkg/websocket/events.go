package websocket

import (
	"encoding/json"
	"time"
)

// Client to server events.
const (
	EventJoinRide         = "join-ride"
	EventLeaveRide        = "leave-ride"
	EventUpdateLocation   = "update-location"
	EventSendMessage      = "send-message"
	EventSendNotification = "send-notification"
)

// Server to client events.
const (
	EventLocationUpdated     = "location-updated"
	EventNewMessage          = "new-message"
	EventBookingStatusUpdate = "booking-status-update"
	EventNewBookingRequest   = "new-booking-request"
	EventNewNotification     = "new-notification"
	EventRideStatus          = "ride-status"
	EventJoined              = "joined"
	EventLeft                = "left"
	EventErrorName           = "error"
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event     string          `json:"event"`
	Room      string          `json:"room,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

func newEnvelope(room, event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Event:     event,
		Room:      room,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

// EventError is returned by an EventHandler to reject an inbound event. The
// client receives it as an "error" event.
type EventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *EventError) Error() string {
	return e.Code + ": " + e.Message
}

type errorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
