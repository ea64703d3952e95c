package validators

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"ridelink/pkg/websocket"
)

var ErrUnknownEvent = errors.New("unknown event")

// RoomPayload is accepted either as a bare JSON string or as {"roomId": "..."}.
type RoomPayload struct {
	RoomID string `json:"roomId" validate:"required,object_id"`
}

func (p *RoomPayload) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.RoomID)
	}
	type plain RoomPayload
	return json.Unmarshal(data, (*plain)(p))
}

type JoinRidePayload struct{ RoomPayload }

type LeaveRidePayload struct{ RoomPayload }

type UpdateLocationPayload struct {
	RideID   string       `json:"rideId" validate:"required,object_id"`
	Location PointRequest `json:"location"`
}

type SendMessagePayload struct {
	RideID      string `json:"rideId" validate:"required,object_id"`
	Message     string `json:"message" validate:"required,max=500"`
	RecipientID string `json:"recipientId" validate:"omitempty,object_id"`
}

type SendNotificationPayload struct {
	UserID       string              `json:"userId" validate:"required,object_id"`
	Notification NotificationPayload `json:"notification"`
}

// DecodeEvent maps an inbound socket event onto its typed payload and
// validates it. Events outside the closed set are rejected.
func DecodeEvent(event string, data json.RawMessage) (interface{}, error) {
	var payload interface{}
	switch event {
	case websocket.EventJoinRide:
		payload = &JoinRidePayload{}
	case websocket.EventLeaveRide:
		payload = &LeaveRidePayload{}
	case websocket.EventUpdateLocation:
		payload = &UpdateLocationPayload{}
	case websocket.EventSendMessage:
		payload = &SendMessagePayload{}
	case websocket.EventSendNotification:
		payload = &SendNotificationPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ValidationErrors{{Field: "data", Tag: "required", Message: "data is required"}}
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return nil, ValidationErrors{{Field: "data", Tag: "invalid", Message: "data is malformed"}}
	}

	if errs := ValidateStruct(payload); errs != nil {
		return nil, errs
	}

	return payload, nil
}
