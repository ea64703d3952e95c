package services

import (
	"context"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/events"
	"ridelink/pkg/logger"
	"ridelink/pkg/metrics"
	"ridelink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

const cancelFanOutLimit = 8

type RideService interface {
	CreateRide(ctx context.Context, ride *models.Ride) (*models.Ride, error)
	GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error)
	// ListBookings returns every booking to the driver and only their own
	// bookings to a passenger.
	ListBookings(ctx context.Context, rideID, userID primitive.ObjectID) ([]*models.Booking, error)

	StartRide(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error)
	EndRide(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error)
	CancelRide(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error)
}

type rideService struct {
	rideRepo      interfaces.RideRepository
	bookingRepo   interfaces.BookingRepository
	notifications NotificationService
	realtime      RealtimePublisher
	events        events.Publisher
	logger        *logger.Logger
}

func NewRideService(
	rideRepo interfaces.RideRepository,
	bookingRepo interfaces.BookingRepository,
	notifications NotificationService,
	realtime RealtimePublisher,
	eventPublisher events.Publisher,
	log *logger.Logger,
) RideService {
	return &rideService{
		rideRepo:      rideRepo,
		bookingRepo:   bookingRepo,
		notifications: notifications,
		realtime:      realtime,
		events:        eventPublisher,
		logger:        log,
	}
}

// RideStatusUpdate is the payload of ride-status.
type RideStatusUpdate struct {
	RideID         primitive.ObjectID `json:"rideId"`
	Status         models.RideStatus  `json:"status"`
	AvailableSeats int                `json:"availableSeats"`
	TotalEarnings  float64            `json:"totalEarnings,omitempty"`
	At             time.Time          `json:"at"`
}

func (s *rideService) CreateRide(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	if ride.TotalSeats < 1 {
		return nil, utils.NewValidationError("totalSeats must be at least 1")
	}
	if ride.Price < 0 {
		return nil, utils.NewValidationError("price cannot be negative")
	}
	if ride.ScheduledDepartureTime.IsZero() {
		return nil, utils.NewValidationError("scheduledDepartureTime is required")
	}
	if ride.ScheduledArrivalTime != nil && !ride.ScheduledArrivalTime.After(ride.ScheduledDepartureTime) {
		return nil, utils.NewValidationError("scheduledArrivalTime must be after scheduledDepartureTime")
	}

	ride.Status = models.RideStatusScheduled
	ride.AvailableSeats = ride.TotalSeats
	ride.TotalEarnings = 0
	ride.Bookings = []primitive.ObjectID{}
	ride.CurrentLocation = nil
	ride.ActualDepartureTime = nil
	ride.ActualArrivalTime = nil
	ride.CancelledAt = nil

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		s.logger.WithError(err).WithUserID(ride.DriverID).Error("Failed to create ride")
		return nil, utils.NewDependencyError("failed to create ride", err)
	}

	s.logger.LogRideEvent(ride.ID, "created", map[string]interface{}{
		"driver_id":   ride.DriverID.Hex(),
		"total_seats": ride.TotalSeats,
	})
	emitLifecycle(ctx, s.events, s.logger, utils.EventRideCreated, ride.ID, ride.ID, ride.DriverID, map[string]interface{}{
		"totalSeats": ride.TotalSeats,
		"price":      ride.Price,
	})

	return ride, nil
}

func (s *rideService) GetRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, storeError(err, "ride")
	}
	return ride, nil
}

func (s *rideService) ListBookings(ctx context.Context, rideID, userID primitive.ObjectID) ([]*models.Booking, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, storeError(err, "ride")
	}

	bookings, err := s.bookingRepo.ListByRide(ctx, rideID)
	if err != nil {
		return nil, utils.NewDependencyError("failed to list bookings", err)
	}
	if ride.IsDriver(userID) {
		return bookings, nil
	}

	own := make([]*models.Booking, 0, 1)
	for _, booking := range bookings {
		if booking.PassengerID == userID {
			own = append(own, booking)
		}
	}
	if len(own) == 0 {
		return nil, utils.NewForbiddenError("not a participant of this ride")
	}
	return own, nil
}

func (s *rideService) StartRide(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.transition(ctx, rideID, driverID, models.RideStatusInProgress, models.RideStatusScheduled)
	if err != nil {
		return nil, err
	}
	emitLifecycle(ctx, s.events, s.logger, utils.EventRideStarted, ride.ID, ride.ID, driverID, nil)
	return ride, nil
}

func (s *rideService) EndRide(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.transition(ctx, rideID, driverID, models.RideStatusCompleted, models.RideStatusInProgress)
	if err != nil {
		return nil, err
	}
	emitLifecycle(ctx, s.events, s.logger, utils.EventRideCompleted, ride.ID, ride.ID, driverID, map[string]interface{}{
		"totalEarnings": ride.TotalEarnings,
	})
	return ride, nil
}

func (s *rideService) CancelRide(ctx context.Context, rideID, driverID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.transition(ctx, rideID, driverID, models.RideStatusCancelled, models.RideStatusScheduled)
	if err != nil {
		return nil, err
	}

	s.notifyCancellation(ctx, ride)
	emitLifecycle(ctx, s.events, s.logger, utils.EventRideCancelled, ride.ID, ride.ID, driverID, nil)
	return ride, nil
}

// transition moves the ride to `to` when its current status is one of from.
// The write is conditional on the status read here.
func (s *rideService) transition(ctx context.Context, rideID, driverID primitive.ObjectID, to models.RideStatus, from ...models.RideStatus) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, storeError(err, "ride")
	}
	if !ride.IsDriver(driverID) {
		return nil, utils.NewForbiddenError("only the ride's driver can change its status")
	}
	if !statusIn(ride.Status, from) {
		return nil, utils.NewInvalidTransitionError("ride", string(ride.Status), string(to))
	}

	now := time.Now()
	t := interfaces.RideTransition{From: ride.Status, To: to, At: now}

	if to == models.RideStatusCompleted && ride.TotalEarnings == 0 {
		earnings, err := s.confirmedEarnings(ctx, ride.ID)
		if err != nil {
			return nil, err
		}
		t.TotalEarnings = &earnings
	}

	applied, err := s.rideRepo.TransitionStatus(ctx, ride.ID, t)
	if err != nil {
		s.logger.WithError(err).WithRideID(ride.ID).Error("Failed to update ride status")
		return nil, utils.NewDependencyError("failed to update ride status", err)
	}
	if !applied {
		current, err := s.rideRepo.GetByID(ctx, ride.ID)
		if err != nil {
			return nil, storeError(err, "ride")
		}
		return nil, utils.NewInvalidTransitionError("ride", string(current.Status), string(to))
	}

	ride.Status = to
	ride.UpdatedAt = now
	switch to {
	case models.RideStatusInProgress:
		ride.ActualDepartureTime = &now
	case models.RideStatusCompleted:
		ride.ActualArrivalTime = &now
	case models.RideStatusCancelled:
		ride.CancelledAt = &now
	}
	if t.TotalEarnings != nil {
		ride.TotalEarnings = *t.TotalEarnings
	}

	metrics.RideTransitions.WithLabelValues(string(to)).Inc()
	s.logger.WithContext(ctx).LogRideEvent(ride.ID, string(to), map[string]interface{}{
		"from":      string(t.From),
		"driver_id": driverID.Hex(),
	})

	publishRoom(ctx, s.realtime, s.logger, RideRoom(ride.ID), websocket.EventRideStatus, RideStatusUpdate{
		RideID:         ride.ID,
		Status:         ride.Status,
		AvailableSeats: ride.AvailableSeats,
		TotalEarnings:  ride.TotalEarnings,
		At:             now,
	})

	return ride, nil
}

func (s *rideService) confirmedEarnings(ctx context.Context, rideID primitive.ObjectID) (float64, error) {
	confirmed, err := s.bookingRepo.ListByRide(ctx, rideID, models.BookingStatusConfirmed)
	if err != nil {
		return 0, utils.NewDependencyError("failed to load confirmed bookings", err)
	}

	var total float64
	for _, booking := range confirmed {
		total += booking.Price
	}
	return total, nil
}

// notifyCancellation tells the driver and every confirmed passenger. A
// failed notification does not undo the cancellation.
func (s *rideService) notifyCancellation(ctx context.Context, ride *models.Ride) {
	recipients := []primitive.ObjectID{ride.DriverID}

	confirmed, err := s.bookingRepo.ListByRide(ctx, ride.ID, models.BookingStatusConfirmed)
	if err != nil {
		s.logger.WithError(err).WithRideID(ride.ID).Warn("Failed to load passengers for cancellation notice")
	}
	seen := map[primitive.ObjectID]struct{}{ride.DriverID: {}}
	for _, booking := range confirmed {
		if _, ok := seen[booking.PassengerID]; ok {
			continue
		}
		seen[booking.PassengerID] = struct{}{}
		recipients = append(recipients, booking.PassengerID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cancelFanOutLimit)
	for _, userID := range recipients {
		message := "A ride you booked has been cancelled"
		if userID == ride.DriverID {
			message = "Your ride has been cancelled"
		}
		g.Go(func() error {
			if _, err := s.notifications.Notify(gctx, userID, models.NotificationTypeRideCancelled, message, &ride.ID); err != nil {
				s.logger.WithError(err).WithUserID(userID).WithRideID(ride.ID).Warn("Failed to send cancellation notice")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func statusIn(status models.RideStatus, set []models.RideStatus) bool {
	for _, s := range set {
		if status == s {
			return true
		}
	}
	return false
}
