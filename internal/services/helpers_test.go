package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ridelink/internal/config"
	"ridelink/internal/models"
	"ridelink/internal/repositories/memory"
	"ridelink/internal/utils"
	"ridelink/pkg/events"
	"ridelink/pkg/logger"
	"ridelink/pkg/push"
	"ridelink/pkg/sms"
	"ridelink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type publishedEvent struct {
	Room    string
	Event   string
	Payload interface{}
}

type fakeRealtime struct {
	mu     sync.Mutex
	events []publishedEvent
	online map[primitive.ObjectID]bool
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{online: make(map[primitive.ObjectID]bool)}
}

func (f *fakeRealtime) Publish(_ context.Context, roomID, event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Room: roomID, Event: event, Payload: payload})
	return nil
}

func (f *fakeRealtime) PublishToUser(ctx context.Context, userID primitive.ObjectID, event string, payload interface{}) error {
	return f.Publish(ctx, websocket.UserRoom(userID), event, payload)
}

func (f *fakeRealtime) IsUserOnline(_ context.Context, userID primitive.ObjectID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *fakeRealtime) setOnline(userID primitive.ObjectID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = true
}

func (f *fakeRealtime) count(room, event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Room == room && e.Event == event {
			n++
		}
	}
	return n
}

func (f *fakeRealtime) last(room, event string) (publishedEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Room == room && f.events[i].Event == event {
			return f.events[i], true
		}
	}
	return publishedEvent{}, false
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LifecycleEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakePush struct {
	mu       sync.Mutex
	requests []*push.NotificationRequest
	err      error
}

func (p *fakePush) SendNotification(_ context.Context, request *push.NotificationRequest) (*push.NotificationResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, request)
	if p.err != nil {
		return nil, p.err
	}
	return &push.NotificationResponse{MessageID: "m-1", Success: true}, nil
}

func (p *fakePush) sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type fakeSMS struct {
	mu       sync.Mutex
	requests []*sms.SMSRequest
}

func (s *fakeSMS) SendSMS(_ context.Context, request *sms.SMSRequest) (*sms.SMSResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, request)
	return &sms.SMSResponse{MessageID: "sms-1", Status: "queued"}, nil
}

func (s *fakeSMS) sent() []*sms.SMSRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*sms.SMSRequest(nil), s.requests...)
}

type fixture struct {
	rides         *memory.RideRepository
	bookings      *memory.BookingRepository
	notifications *memory.NotificationRepository
	users         *memory.UserRepository
	realtime      *fakeRealtime
	events        *recordingPublisher

	notifier NotificationService
	booking  BookingService
	ride     RideService
	access   RoomAccess
	relay    RelayService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDelivery(t, nil, nil)
}

func newFixtureWithDelivery(t *testing.T, pushProvider push.PushProvider, smsProvider sms.SMSProvider) *fixture {
	t.Helper()

	log := logger.NewNop()
	f := &fixture{
		rides:         memory.NewRideRepository(),
		bookings:      memory.NewBookingRepository(),
		notifications: memory.NewNotificationRepository(),
		users:         memory.NewUserRepository(),
		realtime:      newFakeRealtime(),
		events:        &recordingPublisher{},
	}

	cfg := &config.NotificationConfig{
		DeliveryTimeout:  time.Second,
		SMSForTypes:      []string{string(models.NotificationTypeSystemAlert), string(models.NotificationTypeRideCancelled)},
		MaxMessageLength: utils.MaxMessageLength,
	}

	f.notifier = NewNotificationService(f.notifications, f.users, f.realtime, pushProvider, smsProvider, "RideLink", cfg, log)
	f.booking = NewBookingService(f.bookings, f.rides, f.notifier, f.realtime, f.events, log)
	f.ride = NewRideService(f.rides, f.bookings, f.notifier, f.realtime, f.events, log)
	f.access = NewRoomAccess(f.rides, f.bookings)
	f.relay = NewRelayService(f.rides, f.access, f.realtime, log)

	t.Cleanup(f.notifier.Drain)
	return f
}

func (f *fixture) createRide(t *testing.T, driverID primitive.ObjectID, seats int, price float64) *models.Ride {
	t.Helper()
	ride, err := f.ride.CreateRide(context.Background(), &models.Ride{
		DriverID:               driverID,
		StartLocation:          models.NewPoint(52.52, 13.40),
		EndLocation:            models.NewPoint(48.13, 11.58),
		ScheduledDepartureTime: time.Now().Add(2 * time.Hour),
		Price:                  price,
		TotalSeats:             seats,
	})
	if err != nil {
		t.Fatalf("CreateRide: %v", err)
	}
	return ride
}

func (f *fixture) book(t *testing.T, passengerID, rideID primitive.ObjectID, seats int) *models.Booking {
	t.Helper()
	booking, err := f.booking.CreateBooking(context.Background(), passengerID, rideID, seats)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return booking
}

func (f *fixture) confirm(t *testing.T, booking *models.Booking) *models.Booking {
	t.Helper()
	decided, err := f.booking.DecideBooking(context.Background(), booking.ID, booking.DriverID, models.BookingStatusConfirmed)
	if err != nil {
		t.Fatalf("DecideBooking: %v", err)
	}
	return decided
}

func (f *fixture) reload(t *testing.T, rideID primitive.ObjectID) *models.Ride {
	t.Helper()
	ride, err := f.rides.GetByID(context.Background(), rideID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return ride
}

// assertSeatAccounting checks that confirmed seats plus available seats
// equal total seats.
func (f *fixture) assertSeatAccounting(t *testing.T, rideID primitive.ObjectID) {
	t.Helper()
	ride := f.reload(t, rideID)
	confirmed, err := f.bookings.ListByRide(context.Background(), rideID, models.BookingStatusConfirmed)
	if err != nil {
		t.Fatalf("ListByRide: %v", err)
	}
	seats := 0
	for _, b := range confirmed {
		seats += b.NumberOfSeats
	}
	if seats+ride.AvailableSeats != ride.TotalSeats {
		t.Fatalf("seat accounting broken: confirmed=%d available=%d total=%d", seats, ride.AvailableSeats, ride.TotalSeats)
	}
}

func assertKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := utils.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

var errBoom = errors.New("boom")
