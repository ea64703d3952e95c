package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DevicePlatform string

const (
	PlatformAndroid DevicePlatform = "android"
	PlatformIOS     DevicePlatform = "ios"
	PlatformWeb     DevicePlatform = "web"
)

// User is the read-only slice of the identity record needed for delivery.
// Identity itself is owned by another service.
type User struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FirstName   string             `json:"firstName" bson:"first_name"`
	LastName    string             `json:"lastName" bson:"last_name"`
	Email       string             `json:"email" bson:"email"`
	Phone       string             `json:"phone" bson:"phone"`
	IsDriver    bool               `json:"isDriver" bson:"is_driver"`
	DeviceToken string             `json:"-" bson:"device_token,omitempty"`
	Platform    DevicePlatform     `json:"platform,omitempty" bson:"platform,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}
