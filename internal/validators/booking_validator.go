package validators

type CreateBookingRequest struct {
	RideID        string `json:"rideId" validate:"required,object_id"`
	NumberOfSeats int    `json:"numberOfSeats" validate:"required,min=1"`
}

type DecideBookingRequest struct {
	Status string `json:"status" validate:"required,booking_decision"`
}

func ValidateCreateBooking(req *CreateBookingRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateDecideBooking(req *DecideBookingRequest) ValidationErrors {
	return ValidateStruct(req)
}
