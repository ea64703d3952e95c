package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/events"
	"ridelink/pkg/logger"
	"ridelink/pkg/metrics"
	"ridelink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingService interface {
	CreateBooking(ctx context.Context, passengerID, rideID primitive.ObjectID, seats int) (*models.Booking, error)
	// DecideBooking applies the driver's accept or reject. Accepting reserves
	// the seats with a single conditional write on the ride.
	DecideBooking(ctx context.Context, bookingID, driverID primitive.ObjectID, decision models.BookingStatus) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID, userID primitive.ObjectID) (*models.Booking, error)
}

type bookingService struct {
	bookingRepo   interfaces.BookingRepository
	rideRepo      interfaces.RideRepository
	notifications NotificationService
	realtime      RealtimePublisher
	events        events.Publisher
	logger        *logger.Logger
}

func NewBookingService(
	bookingRepo interfaces.BookingRepository,
	rideRepo interfaces.RideRepository,
	notifications NotificationService,
	realtime RealtimePublisher,
	eventPublisher events.Publisher,
	log *logger.Logger,
) BookingService {
	return &bookingService{
		bookingRepo:   bookingRepo,
		rideRepo:      rideRepo,
		notifications: notifications,
		realtime:      realtime,
		events:        eventPublisher,
		logger:        log,
	}
}

// BookingStatusUpdate is the payload of booking-status-update.
type BookingStatusUpdate struct {
	BookingID     primitive.ObjectID   `json:"bookingId"`
	RideID        primitive.ObjectID   `json:"rideId"`
	PassengerID   primitive.ObjectID   `json:"passengerId"`
	Status        models.BookingStatus `json:"status"`
	NumberOfSeats int                  `json:"numberOfSeats"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

func (s *bookingService) CreateBooking(ctx context.Context, passengerID, rideID primitive.ObjectID, seats int) (*models.Booking, error) {
	if seats < utils.MinSeatsPerBooking {
		return nil, utils.NewValidationError(fmt.Sprintf("numberOfSeats must be at least %d", utils.MinSeatsPerBooking))
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, storeError(err, "ride")
	}

	if ride.IsDriver(passengerID) {
		return nil, utils.NewForbiddenError("drivers cannot book their own ride")
	}
	if ride.Status != models.RideStatusScheduled {
		return nil, utils.NewInvalidRideStateError(string(ride.Status))
	}
	if seats > ride.AvailableSeats {
		return nil, utils.NewCapacityExceededError(seats, ride.AvailableSeats)
	}

	active, err := s.bookingRepo.HasActiveBooking(ctx, rideID, passengerID)
	if err != nil {
		return nil, utils.NewDependencyError("failed to check existing bookings", err)
	}
	if active {
		return nil, utils.NewValidationError("passenger already holds an active booking on this ride")
	}

	booking := &models.Booking{
		RideID:          ride.ID,
		PassengerID:     passengerID,
		DriverID:        ride.DriverID,
		NumberOfSeats:   seats,
		Status:          models.BookingStatusPending,
		Price:           ride.Price * float64(seats),
		PaymentStatus:   models.PaymentStatusPending,
		PickupLocation:  ride.StartLocation,
		DropoffLocation: ride.EndLocation,
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.NewValidationError("passenger already holds an active booking on this ride")
		}
		s.logger.WithError(err).WithRideID(rideID).Error("Failed to create booking")
		return nil, utils.NewDependencyError("failed to create booking", err)
	}

	// the ride's booking list is an index; the booking itself is authoritative
	if err := s.rideRepo.AddBooking(ctx, ride.ID, booking.ID); err != nil {
		s.logger.WithError(err).WithRideID(ride.ID).WithBookingID(booking.ID).Error("Failed to append booking to ride")
	}

	s.logger.WithContext(ctx).LogBookingEvent(booking.ID, "requested", map[string]interface{}{
		"ride_id":      ride.ID.Hex(),
		"passenger_id": passengerID.Hex(),
		"seats":        seats,
	})

	publishUser(ctx, s.realtime, s.logger, ride.DriverID, websocket.EventNewBookingRequest, booking)

	if _, err := s.notifications.Notify(ctx, ride.DriverID, models.NotificationTypeRideRequest,
		fmt.Sprintf("New booking request for %d seat(s)", seats), &booking.ID); err != nil {
		s.logger.WithError(err).WithBookingID(booking.ID).Warn("Failed to notify driver of booking request")
	}

	emitLifecycle(ctx, s.events, s.logger, utils.EventBookingRequested, booking.ID, ride.ID, passengerID, map[string]interface{}{
		"seats": seats,
		"price": booking.Price,
	})

	return booking, nil
}

func (s *bookingService) DecideBooking(ctx context.Context, bookingID, driverID primitive.ObjectID, decision models.BookingStatus) (*models.Booking, error) {
	if decision != models.BookingStatusConfirmed && decision != models.BookingStatusCancelled {
		return nil, utils.NewValidationError("status must be Confirmed or Cancelled")
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "booking")
	}

	if booking.DriverID != driverID {
		return nil, utils.NewForbiddenError("only the ride's driver can decide this booking")
	}
	if booking.Status != models.BookingStatusPending {
		return nil, utils.NewInvalidTransitionError("booking", string(booking.Status), string(decision))
	}

	if decision == models.BookingStatusConfirmed {
		if err := s.reserveSeats(ctx, booking); err != nil {
			metrics.BookingsDecided.WithLabelValues(string(decision), string(utils.KindOf(err))).Inc()
			return nil, err
		}
	}

	now := time.Now()
	applied, err := s.bookingRepo.TransitionStatus(ctx, booking.ID, models.BookingStatusPending, decision, now)
	if err != nil || !applied {
		if decision == models.BookingStatusConfirmed {
			s.compensate(ctx, booking)
		}
		if err != nil {
			s.logger.WithError(err).WithBookingID(booking.ID).Error("Failed to persist booking decision")
			return nil, utils.NewDependencyError("failed to update booking", err)
		}
		// decided concurrently by another request
		return nil, utils.NewInvalidTransitionError("booking", "decided", string(decision))
	}

	booking.Status = decision
	booking.DecidedAt = &now
	booking.UpdatedAt = now

	metrics.BookingsDecided.WithLabelValues(string(decision), "ok").Inc()
	s.logger.WithContext(ctx).LogBookingEvent(booking.ID, string(decision), map[string]interface{}{
		"ride_id":   booking.RideID.Hex(),
		"driver_id": driverID.Hex(),
		"seats":     booking.NumberOfSeats,
	})

	update := BookingStatusUpdate{
		BookingID:     booking.ID,
		RideID:        booking.RideID,
		PassengerID:   booking.PassengerID,
		Status:        booking.Status,
		NumberOfSeats: booking.NumberOfSeats,
		UpdatedAt:     now,
	}
	publishRoom(ctx, s.realtime, s.logger, RideRoom(booking.RideID), websocket.EventBookingStatusUpdate, update)
	publishRoom(ctx, s.realtime, s.logger, BookingRoom(booking.ID), websocket.EventBookingStatusUpdate, update)

	notificationType, message, eventType := models.NotificationTypeRideAccepted, "Your booking has been confirmed", utils.EventBookingConfirmed
	if decision == models.BookingStatusCancelled {
		notificationType, message, eventType = models.NotificationTypeRideCancelled, "Your booking request was declined", utils.EventBookingCancelled
	}

	if _, err := s.notifications.Notify(ctx, booking.PassengerID, notificationType, message, &booking.ID); err != nil {
		s.logger.WithError(err).WithBookingID(booking.ID).Warn("Failed to notify passenger of booking decision")
	}

	emitLifecycle(ctx, s.events, s.logger, eventType, booking.ID, booking.RideID, driverID, map[string]interface{}{
		"seats": booking.NumberOfSeats,
	})

	return booking, nil
}

func (s *bookingService) GetBooking(ctx context.Context, bookingID, userID primitive.ObjectID) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "booking")
	}
	if !booking.IsParty(userID) {
		return nil, utils.NewForbiddenError("not a party to this booking")
	}
	return booking, nil
}

// reserveSeats performs the conditional decrement. When the guard does not
// match the ride is re-read only to name the failure.
func (s *bookingService) reserveSeats(ctx context.Context, booking *models.Booking) error {
	ok, err := s.rideRepo.ReserveSeats(ctx, booking.RideID, booking.NumberOfSeats)
	if err != nil {
		s.logger.WithError(err).WithRideID(booking.RideID).Error("Failed to reserve seats")
		return utils.NewDependencyError("failed to reserve seats", err)
	}
	if ok {
		return nil
	}

	metrics.SeatReservationConflicts.Inc()

	ride, err := s.rideRepo.GetByID(ctx, booking.RideID)
	if err != nil {
		return storeError(err, "ride")
	}
	if ride.Status != models.RideStatusScheduled {
		return utils.NewInvalidRideStateError(string(ride.Status))
	}
	return utils.NewCapacityExceededError(booking.NumberOfSeats, ride.AvailableSeats)
}

// compensate gives the seats back when the booking write did not land after
// a successful reservation.
func (s *bookingService) compensate(ctx context.Context, booking *models.Booking) {
	if err := s.rideRepo.ReleaseSeats(context.WithoutCancel(ctx), booking.RideID, booking.NumberOfSeats); err != nil {
		s.logger.WithError(err).WithRideID(booking.RideID).WithBookingID(booking.ID).
			Error("Failed to release seats after booking write failure")
	}
}
