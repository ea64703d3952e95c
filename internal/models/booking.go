package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingStatus string
type PaymentStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"

	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ParseBookingStatus accepts the status names in any case ("Confirmed",
// "confirmed").
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(strings.ToLower(s)) {
	case BookingStatusPending:
		return BookingStatusPending, true
	case BookingStatusConfirmed:
		return BookingStatusConfirmed, true
	case BookingStatusCancelled:
		return BookingStatusCancelled, true
	}
	return "", false
}

type Booking struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideID          primitive.ObjectID `json:"rideId" bson:"ride_id"`
	PassengerID     primitive.ObjectID `json:"passengerId" bson:"passenger_id"`
	DriverID        primitive.ObjectID `json:"driverId" bson:"driver_id"`
	NumberOfSeats   int                `json:"numberOfSeats" bson:"number_of_seats"`
	Status          BookingStatus      `json:"status" bson:"status"`
	Price           float64            `json:"price" bson:"price"`
	PaymentStatus   PaymentStatus      `json:"paymentStatus" bson:"payment_status"`
	PickupLocation  Location           `json:"pickupLocation" bson:"pickup_location"`
	DropoffLocation Location           `json:"dropoffLocation" bson:"dropoff_location"`
	DecidedAt       *time.Time         `json:"decidedAt,omitempty" bson:"decided_at,omitempty"`
	CreatedAt       time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updated_at"`
}

// IsParty reports whether userID is the passenger or the driver of the booking.
func (b *Booking) IsParty(userID primitive.ObjectID) bool {
	return b.PassengerID == userID || b.DriverID == userID
}
