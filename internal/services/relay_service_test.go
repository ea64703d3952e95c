package services

import (
	"context"
	"math"
	"testing"

	"ridelink/internal/utils"
	"ridelink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUpdateLocation_DriverOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	driver, passenger := primitive.NewObjectID(), primitive.NewObjectID()
	ride := f.createRide(t, driver, 3, 10)
	f.book(t, passenger, ride.ID, 1)

	point := utils.Point{Lat: 40.7128, Lng: -74.0060}

	_, err := f.relay.UpdateLocation(ctx, ride.ID, passenger, point)
	assertKind(t, err, utils.KindForbidden)

	update, err := f.relay.UpdateLocation(ctx, ride.ID, driver, point)
	if err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if update.Location != point {
		t.Fatalf("location = %+v, want %+v", update.Location, point)
	}

	stored := f.reload(t, ride.ID)
	if stored.CurrentLocation == nil || stored.CurrentLocation.Latitude() != point.Lat || stored.CurrentLocation.Longitude() != point.Lng {
		t.Fatalf("current location = %+v", stored.CurrentLocation)
	}

	event, ok := f.realtime.last(RideRoom(ride.ID), websocket.EventLocationUpdated)
	if !ok {
		t.Fatalf("location-updated not published")
	}
	if got := event.Payload.(*LocationUpdate).Location; got != point {
		t.Fatalf("published location = %+v", got)
	}
	if f.realtime.count(RideRoom(ride.ID), websocket.EventLocationUpdated) != 1 {
		t.Fatalf("expected exactly one location-updated")
	}
}

func TestUpdateLocation_RejectsNonNumeric(t *testing.T) {
	f := newFixture(t)
	driver := primitive.NewObjectID()
	ride := f.createRide(t, driver, 3, 10)

	_, err := f.relay.UpdateLocation(context.Background(), ride.ID, driver, utils.Point{Lat: math.NaN(), Lng: 1})
	assertKind(t, err, utils.KindValidation)

	_, err = f.relay.UpdateLocation(context.Background(), primitive.NewObjectID(), driver, utils.Point{Lat: 1, Lng: 1})
	assertKind(t, err, utils.KindNotFound)
}

func TestSendMessage_ParticipantsAndOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	driver, passenger := primitive.NewObjectID(), primitive.NewObjectID()
	ride := f.createRide(t, driver, 3, 10)
	f.book(t, passenger, ride.ID, 1)

	_, err := f.relay.SendMessage(ctx, ride.ID, primitive.NewObjectID(), nil, "hello")
	assertKind(t, err, utils.KindForbidden)

	_, err = f.relay.SendMessage(ctx, ride.ID, driver, nil, "   ")
	assertKind(t, err, utils.KindValidation)

	contents := []string{"on my way", "see you soon", "arrived"}
	senders := []primitive.ObjectID{driver, passenger, driver}
	for i, content := range contents {
		if _, err := f.relay.SendMessage(ctx, ride.ID, senders[i], &passenger, content); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	messages, total, err := f.relay.GetMessages(ctx, ride.ID, passenger, &utils.PaginationParams{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if total != 3 || len(messages) != 3 {
		t.Fatalf("messages = %d total = %d, want 3", len(messages), total)
	}
	for i, m := range messages {
		if m.Content != contents[i] || m.SenderID != senders[i] {
			t.Fatalf("message %d = %+v, want %q from %s", i, m, contents[i], senders[i].Hex())
		}
	}

	if f.realtime.count(RideRoom(ride.ID), websocket.EventNewMessage) != 3 {
		t.Fatalf("expected three new-message events")
	}

	_, _, err = f.relay.GetMessages(ctx, ride.ID, primitive.NewObjectID(), &utils.PaginationParams{Page: 1, PageSize: 10})
	assertKind(t, err, utils.KindForbidden)
}

func TestRoomAccess_CanJoin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	driver, passenger, stranger := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	ride := f.createRide(t, driver, 3, 10)
	booking := f.book(t, passenger, ride.ID, 1)

	for _, user := range []primitive.ObjectID{driver, passenger} {
		if err := f.access.CanJoin(ctx, user, ride.ID.Hex()); err != nil {
			t.Fatalf("CanJoin ride for %s: %v", user.Hex(), err)
		}
		if err := f.access.CanJoin(ctx, user, booking.ID.Hex()); err != nil {
			t.Fatalf("CanJoin booking for %s: %v", user.Hex(), err)
		}
	}

	assertKind(t, f.access.CanJoin(ctx, stranger, ride.ID.Hex()), utils.KindForbidden)
	assertKind(t, f.access.CanJoin(ctx, stranger, booking.ID.Hex()), utils.KindForbidden)
	assertKind(t, f.access.CanJoin(ctx, driver, "ride123"), utils.KindValidation)
	assertKind(t, f.access.CanJoin(ctx, driver, primitive.NewObjectID().Hex()), utils.KindNotFound)

	// a rejected passenger loses access to the ride room
	if _, err := f.booking.DecideBooking(ctx, booking.ID, driver, "cancelled"); err != nil {
		t.Fatalf("DecideBooking: %v", err)
	}
	assertKind(t, f.access.CanJoin(ctx, passenger, ride.ID.Hex()), utils.KindForbidden)
}
