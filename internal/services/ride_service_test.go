package services

import (
	"context"
	"testing"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/utils"
	"ridelink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateRide_Defaults(t *testing.T) {
	f := newFixture(t)
	driver := primitive.NewObjectID()

	ride := f.createRide(t, driver, 3, 8)
	if ride.Status != models.RideStatusScheduled {
		t.Fatalf("status = %s, want scheduled", ride.Status)
	}
	if ride.AvailableSeats != 3 {
		t.Fatalf("availableSeats = %d, want 3", ride.AvailableSeats)
	}

	_, err := f.ride.CreateRide(context.Background(), &models.Ride{DriverID: driver, TotalSeats: 0, ScheduledDepartureTime: time.Now()})
	assertKind(t, err, utils.KindValidation)

	departure := time.Now().Add(time.Hour)
	arrival := departure.Add(-time.Minute)
	_, err = f.ride.CreateRide(context.Background(), &models.Ride{
		DriverID:               driver,
		TotalSeats:             2,
		ScheduledDepartureTime: departure,
		ScheduledArrivalTime:   &arrival,
	})
	assertKind(t, err, utils.KindValidation)
}

func TestRideLifecycle_StartEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	driver := primitive.NewObjectID()
	ride := f.createRide(t, driver, 4, 10)

	f.confirm(t, f.book(t, primitive.NewObjectID(), ride.ID, 2))
	f.book(t, primitive.NewObjectID(), ride.ID, 1) // stays pending

	_, err := f.ride.EndRide(ctx, ride.ID, driver)
	assertKind(t, err, utils.KindInvalidTransition)

	_, err = f.ride.StartRide(ctx, ride.ID, primitive.NewObjectID())
	assertKind(t, err, utils.KindForbidden)

	started, err := f.ride.StartRide(ctx, ride.ID, driver)
	if err != nil {
		t.Fatalf("StartRide: %v", err)
	}
	if started.Status != models.RideStatusInProgress || started.ActualDepartureTime == nil {
		t.Fatalf("ride not started: %+v", started)
	}

	_, err = f.ride.StartRide(ctx, ride.ID, driver)
	assertKind(t, err, utils.KindInvalidTransition)
	_, err = f.ride.CancelRide(ctx, ride.ID, driver)
	assertKind(t, err, utils.KindInvalidTransition)

	ended, err := f.ride.EndRide(ctx, ride.ID, driver)
	if err != nil {
		t.Fatalf("EndRide: %v", err)
	}
	if ended.Status != models.RideStatusCompleted || ended.ActualArrivalTime == nil {
		t.Fatalf("ride not completed: %+v", ended)
	}
	if ended.TotalEarnings != 20 {
		t.Fatalf("totalEarnings = %v, want 20", ended.TotalEarnings)
	}
	if stored := f.reload(t, ride.ID); stored.TotalEarnings != 20 || stored.Status != models.RideStatusCompleted {
		t.Fatalf("stored ride = %+v", stored)
	}

	// completed is terminal
	for _, op := range []func(context.Context, primitive.ObjectID, primitive.ObjectID) (*models.Ride, error){
		f.ride.StartRide, f.ride.EndRide, f.ride.CancelRide,
	} {
		_, err := op(ctx, ride.ID, driver)
		assertKind(t, err, utils.KindInvalidTransition)
	}

	if got := f.realtime.count(RideRoom(ride.ID), websocket.EventRideStatus); got != 2 {
		t.Fatalf("ride-status events = %d, want 2", got)
	}
}

func TestCancelRide_NotifiesDriverAndConfirmedPassengers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	driver := primitive.NewObjectID()
	confirmedPassenger, pendingPassenger := primitive.NewObjectID(), primitive.NewObjectID()
	ride := f.createRide(t, driver, 4, 10)

	f.confirm(t, f.book(t, confirmedPassenger, ride.ID, 1))
	f.book(t, pendingPassenger, ride.ID, 1)

	cancelled, err := f.ride.CancelRide(ctx, ride.ID, driver)
	if err != nil {
		t.Fatalf("CancelRide: %v", err)
	}
	if cancelled.Status != models.RideStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("ride not cancelled: %+v", cancelled)
	}

	hasCancellation := func(user primitive.ObjectID) bool {
		list, _, err := f.notifier.List(ctx, user, &utils.PaginationParams{Page: 1, PageSize: 20})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		for _, n := range list {
			if n.Type == models.NotificationTypeRideCancelled && n.RelatedID != nil && *n.RelatedID == ride.ID {
				return true
			}
		}
		return false
	}

	if !hasCancellation(driver) {
		t.Fatalf("driver was not notified")
	}
	if !hasCancellation(confirmedPassenger) {
		t.Fatalf("confirmed passenger was not notified")
	}
	if hasCancellation(pendingPassenger) {
		t.Fatalf("pending passenger should not be notified")
	}

	_, err = f.ride.CancelRide(ctx, ride.ID, driver)
	assertKind(t, err, utils.KindInvalidTransition)

	event, ok := f.realtime.last(RideRoom(ride.ID), websocket.EventRideStatus)
	if !ok {
		t.Fatalf("no ride-status event")
	}
	if update := event.Payload.(RideStatusUpdate); update.Status != models.RideStatusCancelled {
		t.Fatalf("ride-status = %s, want cancelled", update.Status)
	}
}

func TestRideTransitions_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.ride.StartRide(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	assertKind(t, err, utils.KindNotFound)
}

func TestListBookings_Visibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	driver, a, b := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	ride := f.createRide(t, driver, 4, 10)
	f.book(t, a, ride.ID, 1)
	f.book(t, b, ride.ID, 1)

	all, err := f.ride.ListBookings(ctx, ride.ID, driver)
	if err != nil || len(all) != 2 {
		t.Fatalf("driver bookings = %d (%v), want 2", len(all), err)
	}

	own, err := f.ride.ListBookings(ctx, ride.ID, a)
	if err != nil || len(own) != 1 || own[0].PassengerID != a {
		t.Fatalf("passenger bookings = %+v (%v)", own, err)
	}

	_, err = f.ride.ListBookings(ctx, ride.ID, primitive.NewObjectID())
	assertKind(t, err, utils.KindForbidden)
}
