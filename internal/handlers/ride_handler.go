package handlers

import (
	"context"

	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService  services.RideService
	relayService services.RelayService
}

func NewRideHandler(rideService services.RideService, relayService services.RelayService) *RideHandler {
	return &RideHandler{
		rideService:  rideService,
		relayService: relayService,
	}
}

// CreateRide publishes a new scheduled ride. The route is driver-only.
func (h *RideHandler) CreateRide(c *gin.Context) {
	driverID, ok := currentUser(c)
	if !ok {
		return
	}

	var request validators.CreateRideRequest
	if !bindJSON(c, &request) {
		return
	}
	if respondValidation(c, validators.ValidateCreateRide(&request)) {
		return
	}

	ride := &models.Ride{
		DriverID: driverID,
		Vehicle: models.Vehicle{
			Make:         request.Vehicle.Make,
			Model:        request.Vehicle.Model,
			Color:        request.Vehicle.Color,
			LicensePlate: request.Vehicle.LicensePlate,
		},
		StartLocation:          toLocation(request.StartLocation),
		EndLocation:            toLocation(request.EndLocation),
		ScheduledDepartureTime: request.ScheduledDepartureTime,
		ScheduledArrivalTime:   request.ScheduledArrivalTime,
		Price:                  request.Price,
		TotalSeats:             request.TotalSeats,
	}

	created, err := h.rideService.CreateRide(c.Request.Context(), ride)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride created successfully", created)
}

func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, ok := pathID(c, "id", "ride")
	if !ok {
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), rideID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride)
}

func (h *RideHandler) ListBookings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	rideID, ok := pathID(c, "id", "ride")
	if !ok {
		return
	}

	bookings, err := h.rideService.ListBookings(c.Request.Context(), rideID, userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Bookings retrieved successfully", bookings, &utils.Meta{Count: len(bookings)})
}

func (h *RideHandler) StartRide(c *gin.Context) {
	h.transition(c, h.rideService.StartRide, "Ride started successfully")
}

func (h *RideHandler) EndRide(c *gin.Context) {
	h.transition(c, h.rideService.EndRide, "Ride completed successfully")
}

func (h *RideHandler) CancelRide(c *gin.Context) {
	h.transition(c, h.rideService.CancelRide, "Ride cancelled successfully")
}

type rideTransition func(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error)

func (h *RideHandler) transition(c *gin.Context, apply rideTransition, message string) {
	driverID, ok := currentUser(c)
	if !ok {
		return
	}
	rideID, ok := pathID(c, "id", "ride")
	if !ok {
		return
	}

	ride, err := apply(c.Request.Context(), rideID, driverID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, message, ride)
}

// UpdateLocation is the REST form of the update-location socket event
func (h *RideHandler) UpdateLocation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	rideID, ok := pathID(c, "id", "ride")
	if !ok {
		return
	}

	var request validators.UpdateLocationRequest
	if !bindJSON(c, &request) {
		return
	}
	if respondValidation(c, validators.ValidateUpdateLocation(&request)) {
		return
	}

	update, err := h.relayService.UpdateLocation(c.Request.Context(), rideID, userID, request.Location.Point())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", update)
}

// SendMessage is the REST form of the send-message socket event
func (h *RideHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	rideID, ok := pathID(c, "id", "ride")
	if !ok {
		return
	}

	var request validators.SendMessageRequest
	if !bindJSON(c, &request) {
		return
	}
	if respondValidation(c, validators.ValidateSendMessage(&request)) {
		return
	}

	message, err := h.relayService.SendMessage(c.Request.Context(), rideID, userID, optionalID(request.RecipientID), request.Message)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Message sent successfully", message)
}

func (h *RideHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	rideID, ok := pathID(c, "id", "ride")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	messages, total, err := h.relayService.GetMessages(c.Request.Context(), rideID, userID, params)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
		Count:      len(messages),
	}
	utils.SuccessResponseWithMeta(c, "Messages retrieved successfully", messages, meta)
}

func toLocation(request validators.LocationRequest) models.Location {
	location := models.NewPoint(request.Latitude, request.Longitude)
	location.Address = request.Address
	return location
}

// optionalID parses an already validated, possibly empty hex id.
func optionalID(hex string) *primitive.ObjectID {
	if hex == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &id
}
