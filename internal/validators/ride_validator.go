package validators

import (
	"time"

	"ridelink/internal/utils"
)

type LocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Address   string  `json:"address" validate:"omitempty,max=255"`
}

type VehicleRequest struct {
	Make         string `json:"make" validate:"omitempty,max=50"`
	Model        string `json:"model" validate:"omitempty,max=50"`
	Color        string `json:"color" validate:"omitempty,max=30"`
	LicensePlate string `json:"licensePlate" validate:"omitempty,max=20"`
}

type CreateRideRequest struct {
	Vehicle                VehicleRequest  `json:"vehicle"`
	StartLocation          LocationRequest `json:"startLocation"`
	EndLocation            LocationRequest `json:"endLocation"`
	ScheduledDepartureTime time.Time       `json:"scheduledDepartureTime" validate:"required"`
	ScheduledArrivalTime   *time.Time      `json:"scheduledArrivalTime"`
	Price                  float64         `json:"price" validate:"min=0"`
	TotalSeats             int             `json:"totalSeats" validate:"required,min=1,max=8"`
}

// PointRequest is a bare numeric pair; only its shape is checked.
type PointRequest struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lng *float64 `json:"lng" validate:"required"`
}

func (p PointRequest) Point() utils.Point {
	return utils.Point{Lat: *p.Lat, Lng: *p.Lng}
}

type UpdateLocationRequest struct {
	Location PointRequest `json:"location"`
}

type SendMessageRequest struct {
	Message     string `json:"message" validate:"required,max=500"`
	RecipientID string `json:"recipientId" validate:"omitempty,object_id"`
}

func ValidateCreateRide(req *CreateRideRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateUpdateLocation(req *UpdateLocationRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateSendMessage(req *SendMessageRequest) ValidationErrors {
	return ValidateStruct(req)
}
