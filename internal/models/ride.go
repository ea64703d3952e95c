package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string

const (
	RideStatusScheduled  RideStatus = "scheduled"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

type Vehicle struct {
	Make         string `json:"make,omitempty" bson:"make,omitempty"`
	Model        string `json:"model,omitempty" bson:"model,omitempty"`
	Color        string `json:"color,omitempty" bson:"color,omitempty"`
	LicensePlate string `json:"licensePlate,omitempty" bson:"license_plate,omitempty"`
}

type Ride struct {
	ID                     primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	DriverID               primitive.ObjectID   `json:"driverId" bson:"driver_id"`
	Vehicle                Vehicle              `json:"vehicle" bson:"vehicle"`
	StartLocation          Location             `json:"startLocation" bson:"start_location"`
	EndLocation            Location             `json:"endLocation" bson:"end_location"`
	ScheduledDepartureTime time.Time            `json:"scheduledDepartureTime" bson:"scheduled_departure_time"`
	ScheduledArrivalTime   *time.Time           `json:"scheduledArrivalTime,omitempty" bson:"scheduled_arrival_time,omitempty"`
	ActualDepartureTime    *time.Time           `json:"actualDepartureTime,omitempty" bson:"actual_departure_time,omitempty"`
	ActualArrivalTime      *time.Time           `json:"actualArrivalTime,omitempty" bson:"actual_arrival_time,omitempty"`
	CancelledAt            *time.Time           `json:"cancelledAt,omitempty" bson:"cancelled_at,omitempty"`
	Price                  float64              `json:"price" bson:"price"`
	TotalSeats             int                  `json:"totalSeats" bson:"total_seats"`
	AvailableSeats         int                  `json:"availableSeats" bson:"available_seats"`
	Status                 RideStatus           `json:"status" bson:"status"`
	Bookings               []primitive.ObjectID `json:"bookings" bson:"bookings"`
	TotalEarnings          float64              `json:"totalEarnings" bson:"total_earnings"`
	CurrentLocation        *Location            `json:"currentLocation,omitempty" bson:"current_location,omitempty"`
	Messages               []ChatMessage        `json:"-" bson:"messages,omitempty"`
	CreatedAt              time.Time            `json:"createdAt" bson:"created_at"`
	UpdatedAt              time.Time            `json:"updatedAt" bson:"updated_at"`
}

// IsDriver reports whether userID drives this ride. Passenger
// membership lives on bookings and is checked by the caller.
func (r *Ride) IsDriver(userID primitive.ObjectID) bool {
	return r.DriverID == userID
}
