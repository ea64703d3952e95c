package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationTypeRideRequest     NotificationType = "ride_request"
	NotificationTypeRideAccepted    NotificationType = "ride_accepted"
	NotificationTypeRideCancelled   NotificationType = "ride_cancelled"
	NotificationTypePaymentReceived NotificationType = "payment_received"
	NotificationTypeSystemAlert     NotificationType = "system_alert"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeRideRequest, NotificationTypeRideAccepted, NotificationTypeRideCancelled,
		NotificationTypePaymentReceived, NotificationTypeSystemAlert:
		return true
	}
	return false
}

// Notification records are never deleted; only Read/ReadAt change.
type Notification struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID  `json:"userId" bson:"user_id"`
	Type      NotificationType    `json:"type" bson:"type"`
	Message   string              `json:"message" bson:"message"`
	Read      bool                `json:"read" bson:"read"`
	RelatedID *primitive.ObjectID `json:"relatedId,omitempty" bson:"related_id,omitempty"`
	ReadAt    *time.Time          `json:"readAt,omitempty" bson:"read_at,omitempty"`
	CreatedAt time.Time           `json:"createdAt" bson:"created_at"`
}
