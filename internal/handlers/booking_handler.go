package handlers

import (
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/internal/validators"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookingService services.BookingService
}

func NewBookingHandler(bookingService services.BookingService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
	}
}

// CreateBooking requests seats on a ride for the caller
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	passengerID, ok := currentUser(c)
	if !ok {
		return
	}

	var request validators.CreateBookingRequest
	if !bindJSON(c, &request) {
		return
	}
	if respondValidation(c, validators.ValidateCreateBooking(&request)) {
		return
	}

	rideID, _ := validators.ParseObjectID(request.RideID)
	booking, err := h.bookingService.CreateBooking(c.Request.Context(), passengerID, rideID, request.NumberOfSeats)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Booking requested successfully", booking)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), bookingID, userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Booking retrieved successfully", booking)
}

// DecideBooking accepts or rejects a pending booking
func (h *BookingHandler) DecideBooking(c *gin.Context) {
	driverID, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id", "booking")
	if !ok {
		return
	}

	var request validators.DecideBookingRequest
	if !bindJSON(c, &request) {
		return
	}
	if respondValidation(c, validators.ValidateDecideBooking(&request)) {
		return
	}

	decision, _ := models.ParseBookingStatus(request.Status)
	booking, err := h.bookingService.DecideBooking(c.Request.Context(), bookingID, driverID, decision)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Booking updated successfully", booking)
}
