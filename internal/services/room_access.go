package services

import (
	"context"
	"errors"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoomAccess decides who may subscribe to a ride or booking room.
type RoomAccess interface {
	// CanJoin allows the ride's driver and passengers holding an active
	// booking on a ride room, and the two parties on a booking room.
	CanJoin(ctx context.Context, userID primitive.ObjectID, roomID string) error
	// IsParticipant reports whether userID is the driver or holds an active
	// booking on the ride.
	IsParticipant(ctx context.Context, ride *models.Ride, userID primitive.ObjectID) (bool, error)
}

type roomAccess struct {
	rideRepo    interfaces.RideRepository
	bookingRepo interfaces.BookingRepository
}

func NewRoomAccess(rideRepo interfaces.RideRepository, bookingRepo interfaces.BookingRepository) RoomAccess {
	return &roomAccess{
		rideRepo:    rideRepo,
		bookingRepo: bookingRepo,
	}
}

func (a *roomAccess) CanJoin(ctx context.Context, userID primitive.ObjectID, roomID string) error {
	id, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return utils.NewValidationError("invalid room id")
	}

	ride, err := a.rideRepo.GetByID(ctx, id)
	switch {
	case err == nil:
		ok, err := a.IsParticipant(ctx, ride, userID)
		if err != nil {
			return err
		}
		if !ok {
			return utils.NewForbiddenError("not a participant of this ride")
		}
		return nil
	case !errors.Is(err, utils.ErrNotFound):
		return utils.NewDependencyError("failed to load ride", err)
	}

	booking, err := a.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return storeError(err, "room")
	}
	if !booking.IsParty(userID) {
		return utils.NewForbiddenError("not a party to this booking")
	}
	return nil
}

func (a *roomAccess) IsParticipant(ctx context.Context, ride *models.Ride, userID primitive.ObjectID) (bool, error) {
	if ride.IsDriver(userID) {
		return true, nil
	}
	active, err := a.bookingRepo.HasActiveBooking(ctx, ride.ID, userID)
	if err != nil {
		return false, utils.NewDependencyError("failed to check bookings", err)
	}
	return active, nil
}
