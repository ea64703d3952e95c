package services

import (
	"context"
	"strings"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"
	"ridelink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RelayService persists live location and chat and republishes them to the
// ride room.
type RelayService interface {
	UpdateLocation(ctx context.Context, rideID, userID primitive.ObjectID, point utils.Point) (*LocationUpdate, error)
	SendMessage(ctx context.Context, rideID, senderID primitive.ObjectID, recipientID *primitive.ObjectID, content string) (*models.ChatMessage, error)
	GetMessages(ctx context.Context, rideID, userID primitive.ObjectID, params *utils.PaginationParams) ([]models.ChatMessage, int64, error)
}

type relayService struct {
	rideRepo interfaces.RideRepository
	access   RoomAccess
	realtime RealtimePublisher
	logger   *logger.Logger
}

func NewRelayService(rideRepo interfaces.RideRepository, access RoomAccess, realtime RealtimePublisher, log *logger.Logger) RelayService {
	return &relayService{
		rideRepo: rideRepo,
		access:   access,
		realtime: realtime,
		logger:   log,
	}
}

// LocationUpdate is the payload of location-updated.
type LocationUpdate struct {
	RideID    primitive.ObjectID `json:"rideId"`
	DriverID  primitive.ObjectID `json:"driverId"`
	Location  utils.Point        `json:"location"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// NewMessage is the payload of new-message.
type NewMessage struct {
	RideID primitive.ObjectID `json:"rideId"`
	models.ChatMessage
}

func (s *relayService) UpdateLocation(ctx context.Context, rideID, userID primitive.ObjectID, point utils.Point) (*LocationUpdate, error) {
	if !utils.IsNumericPair(point) {
		return nil, utils.NewValidationError("location must be a numeric pair")
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, storeError(err, "ride")
	}
	if !ride.IsDriver(userID) {
		return nil, utils.NewForbiddenError("only the ride's driver can update its location")
	}

	location := models.NewPoint(point.Lat, point.Lng)
	location.Timestamp = time.Now()
	if err := s.rideRepo.UpdateCurrentLocation(ctx, ride.ID, location); err != nil {
		s.logger.WithError(err).WithRideID(ride.ID).Error("Failed to store ride location")
		return nil, storeError(err, "ride")
	}

	update := &LocationUpdate{
		RideID:    ride.ID,
		DriverID:  ride.DriverID,
		Location:  point,
		UpdatedAt: location.Timestamp,
	}
	publishRoom(ctx, s.realtime, s.logger, RideRoom(ride.ID), websocket.EventLocationUpdated, update)

	return update, nil
}

func (s *relayService) SendMessage(ctx context.Context, rideID, senderID primitive.ObjectID, recipientID *primitive.ObjectID, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, utils.NewValidationError("message is required")
	}
	if len(content) > utils.MaxMessageLength {
		return nil, utils.NewValidationError("message is too long")
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, storeError(err, "ride")
	}

	ok, err := s.access.IsParticipant(ctx, ride, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.NewForbiddenError("not a participant of this ride")
	}

	message := models.ChatMessage{
		ID:          primitive.NewObjectID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now(),
	}

	if err := s.rideRepo.AppendMessage(ctx, ride.ID, message); err != nil {
		s.logger.WithError(err).WithRideID(ride.ID).Error("Failed to append chat message")
		return nil, storeError(err, "ride")
	}

	publishRoom(ctx, s.realtime, s.logger, RideRoom(ride.ID), websocket.EventNewMessage, NewMessage{
		RideID:      ride.ID,
		ChatMessage: message,
	})

	return &message, nil
}

func (s *relayService) GetMessages(ctx context.Context, rideID, userID primitive.ObjectID, params *utils.PaginationParams) ([]models.ChatMessage, int64, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, 0, storeError(err, "ride")
	}

	ok, err := s.access.IsParticipant(ctx, ride, userID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, utils.NewForbiddenError("not a participant of this ride")
	}

	messages, total, err := s.rideRepo.GetMessages(ctx, ride.ID, params)
	if err != nil {
		return nil, 0, storeError(err, "ride")
	}
	return messages, total, nil
}
