package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ridelink/internal/config"
	"ridelink/internal/handlers"
	"ridelink/internal/repositories/memory"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/pkg/events"
	"ridelink/pkg/logger"
	"ridelink/pkg/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server, _ := newTestServerWithHub(t)
	return server
}

func newTestServerWithHub(t *testing.T) (*httptest.Server, *websocket.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	hub := websocket.NewHub(log, nil)

	rides := memory.NewRideRepository()
	bookings := memory.NewBookingRepository()
	notifier := services.NewNotificationService(memory.NewNotificationRepository(), memory.NewUserRepository(),
		hub, nil, nil, "RideLink", &config.NotificationConfig{DeliveryTimeout: time.Second}, log)
	bookingService := services.NewBookingService(bookings, rides, notifier, hub, events.NoopPublisher{}, log)
	rideService := services.NewRideService(rides, bookings, notifier, hub, events.NoopPublisher{}, log)
	access := services.NewRoomAccess(rides, bookings)
	relay := services.NewRelayService(rides, access, hub, log)

	socket := handlers.NewSocketHandler(hub, access, relay, notifier, log)
	router := NewRouter(&Handlers{
		Booking:      handlers.NewBookingHandler(bookingService),
		Ride:         handlers.NewRideHandler(rideService, relay),
		Notification: handlers.NewNotificationHandler(notifier),
		Health:       handlers.NewHealthHandler(nil, hub),
		WebSocket:    websocket.NewHandler(hub, socket, websocket.HandlerConfig{}, log),
	}, Options{JWTSecret: testSecret, AllowedOrigins: []string{"*"}}, log)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		hub.Shutdown()
		notifier.Drain()
	})
	return server, hub
}

func token(t *testing.T, userID primitive.ObjectID, isDriver bool) string {
	t.Helper()
	tok, err := utils.GenerateAccessToken(userID, userID.Hex()+"@example.com", isDriver, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return tok
}

func call(t *testing.T, server *httptest.Server, method, path, tok string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func errorCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

type rideView struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	AvailableSeats int    `json:"availableSeats"`
}

func createRide(t *testing.T, server *httptest.Server, driverTok string, seats int) rideView {
	t.Helper()
	status, env := call(t, server, http.MethodPost, "/api/v1/rides", driverTok, map[string]interface{}{
		"startLocation":          map[string]float64{"latitude": 52.52, "longitude": 13.40},
		"endLocation":            map[string]float64{"latitude": 48.13, "longitude": 11.58},
		"scheduledDepartureTime": time.Now().Add(time.Hour).Format(time.RFC3339),
		"price":                  15,
		"totalSeats":             seats,
	})
	if status != http.StatusCreated {
		t.Fatalf("create ride status %d code %s", status, errorCode(env))
	}
	var ride rideView
	_ = json.Unmarshal(env.Data, &ride)
	return ride
}

func healthConnections(t *testing.T, server *httptest.Server) int {
	t.Helper()
	resp, err := server.Client().Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}
	var body struct {
		Connections int `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return body.Connections
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	if n := healthConnections(t, server); n != 0 {
		t.Fatalf("connections = %d, want 0", n)
	}
	dialSocket(t, server, token(t, primitive.NewObjectID(), false))
	waitFor(t, "connection registered", func() bool { return healthConnections(t, server) == 1 })
}

func TestAPIRequiresValidToken(t *testing.T) {
	server := newTestServer(t)
	path := "/api/v1/rides/" + primitive.NewObjectID().Hex()

	if status, _ := call(t, server, http.MethodGet, path, "", nil); status != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", status)
	}
	if status, _ := call(t, server, http.MethodGet, path, "garbage", nil); status != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", status)
	}
	if status, env := call(t, server, http.MethodGet, path, token(t, primitive.NewObjectID(), false), nil); status != http.StatusNotFound {
		t.Fatalf("unknown ride: status %d code %s", status, errorCode(env))
	}
}

func TestPassengerCannotCreateRide(t *testing.T) {
	server := newTestServer(t)

	status, env := call(t, server, http.MethodPost, "/api/v1/rides", token(t, primitive.NewObjectID(), false), map[string]interface{}{})
	if status != http.StatusForbidden || errorCode(env) != "FORBIDDEN" {
		t.Fatalf("status %d code %s", status, errorCode(env))
	}
}

func TestBookingFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)

	driverID, aliceID, bobID := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	driverTok := token(t, driverID, true)
	aliceTok, bobTok := token(t, aliceID, false), token(t, bobID, false)

	ride := createRide(t, server, driverTok, 2)
	if ride.Status != "scheduled" || ride.AvailableSeats != 2 {
		t.Fatalf("unexpected ride %+v", ride)
	}

	bookingIDs := make([]string, 0, 2)
	for _, tc := range []struct {
		tok   string
		seats int
	}{{aliceTok, 2}, {bobTok, 1}} {
		status, env := call(t, server, http.MethodPost, "/api/v1/bookings", tc.tok, map[string]interface{}{
			"rideId":        ride.ID,
			"numberOfSeats": tc.seats,
		})
		if status != http.StatusCreated {
			t.Fatalf("create booking status %d code %s", status, errorCode(env))
		}
		var booking struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		_ = json.Unmarshal(env.Data, &booking)
		if booking.Status != "pending" {
			t.Fatalf("booking status %q", booking.Status)
		}
		bookingIDs = append(bookingIDs, booking.ID)
	}

	// only the driver decides
	if status, _ := call(t, server, http.MethodPut, "/api/v1/bookings/"+bookingIDs[0], aliceTok, map[string]string{"status": "Confirmed"}); status != http.StatusForbidden {
		t.Fatalf("passenger decision status %d", status)
	}

	if status, env := call(t, server, http.MethodPut, "/api/v1/bookings/"+bookingIDs[0], driverTok, map[string]string{"status": "Confirmed"}); status != http.StatusOK {
		t.Fatalf("confirm status %d code %s", status, errorCode(env))
	}

	status, env := call(t, server, http.MethodPut, "/api/v1/bookings/"+bookingIDs[1], driverTok, map[string]string{"status": "Confirmed"})
	if status != http.StatusBadRequest || errorCode(env) != "CAPACITY_EXCEEDED" {
		t.Fatalf("overbook status %d code %s", status, errorCode(env))
	}

	_, env = call(t, server, http.MethodGet, "/api/v1/rides/"+ride.ID, bobTok, nil)
	var after rideView
	_ = json.Unmarshal(env.Data, &after)
	if after.AvailableSeats != 0 {
		t.Fatalf("availableSeats = %d, want 0", after.AvailableSeats)
	}

	if status, _ := call(t, server, http.MethodGet, "/api/v1/bookings/"+bookingIDs[0], bobTok, nil); status != http.StatusForbidden {
		t.Fatalf("stranger read booking status %d", status)
	}
	if status, _ := call(t, server, http.MethodGet, "/api/v1/bookings/"+bookingIDs[0], aliceTok, nil); status != http.StatusOK {
		t.Fatalf("passenger read booking status %d", status)
	}

	if status, env := call(t, server, http.MethodPut, "/api/v1/bookings/"+bookingIDs[0], driverTok, map[string]string{"status": "Pending"}); status != http.StatusBadRequest || errorCode(env) != "VALIDATION_ERROR" {
		t.Fatalf("pending decision status %d code %s", status, errorCode(env))
	}
}

func TestNotificationsOverHTTP(t *testing.T) {
	server := newTestServer(t)

	driverID, passengerID := primitive.NewObjectID(), primitive.NewObjectID()
	driverTok := token(t, driverID, true)
	ride := createRide(t, server, driverTok, 3)

	if status, _ := call(t, server, http.MethodPost, "/api/v1/bookings", token(t, passengerID, false), map[string]interface{}{
		"rideId": ride.ID, "numberOfSeats": 1,
	}); status != http.StatusCreated {
		t.Fatalf("create booking status %d", status)
	}

	path := "/api/v1/notifications/" + driverID.Hex()
	if status, _ := call(t, server, http.MethodGet, path, token(t, passengerID, false), nil); status != http.StatusForbidden {
		t.Fatalf("foreign inbox status %d", status)
	}

	status, env := call(t, server, http.MethodGet, path, driverTok, nil)
	if status != http.StatusOK {
		t.Fatalf("inbox status %d", status)
	}
	var inbox struct {
		Notifications []struct {
			Type string `json:"type"`
		} `json:"notifications"`
		UnreadCount int64 `json:"unreadCount"`
	}
	_ = json.Unmarshal(env.Data, &inbox)
	if inbox.UnreadCount != 1 || len(inbox.Notifications) != 1 || inbox.Notifications[0].Type != "ride_request" {
		t.Fatalf("unexpected inbox %+v", inbox)
	}

	status, env = call(t, server, http.MethodPut, path+"/read-all", driverTok, nil)
	if status != http.StatusOK {
		t.Fatalf("read-all status %d", status)
	}
	var result struct {
		Updated     int64 `json:"updated"`
		UnreadCount int64 `json:"unreadCount"`
	}
	_ = json.Unmarshal(env.Data, &result)
	if result.Updated != 1 || result.UnreadCount != 0 {
		t.Fatalf("unexpected read-all result %+v", result)
	}
}

func dialSocket(t *testing.T, server *httptest.Server, tok string) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + tok
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// awaitEvent reads frames until one carries event, skipping others.
func awaitEvent(t *testing.T, conn *gorilla.Conn, event string) websocket.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env websocket.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if env.Event == event {
			return env
		}
	}
}

func TestSocketRequiresToken(t *testing.T) {
	server := newTestServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected handshake response %v", resp)
	}
}

// expectSilence fails if any frame arrives within the window. The connection
// is unusable afterwards.
func expectSilence(t *testing.T, conn *gorilla.Conn, window time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(window))
	var env websocket.Envelope
	if err := conn.ReadJSON(&env); err == nil {
		t.Fatalf("unexpected %s event", env.Event)
	}
}

func send(t *testing.T, conn *gorilla.Conn, event string, data interface{}) {
	t.Helper()
	if err := conn.WriteJSON(map[string]interface{}{"event": event, "data": data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func TestSocketRideRoom(t *testing.T) {
	server := newTestServer(t)

	driverID, passengerID, strangerID := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	driverTok, passengerTok := token(t, driverID, true), token(t, passengerID, false)
	ride := createRide(t, server, driverTok, 2)

	if status, _ := call(t, server, http.MethodPost, "/api/v1/bookings", passengerTok, map[string]interface{}{
		"rideId": ride.ID, "numberOfSeats": 1,
	}); status != http.StatusCreated {
		t.Fatalf("create booking status %d", status)
	}

	driver := dialSocket(t, server, driverTok)
	passenger := dialSocket(t, server, passengerTok)
	stranger := dialSocket(t, server, token(t, strangerID, false))

	var rejection struct {
		Code string `json:"code"`
	}
	send(t, stranger, "join-ride", ride.ID)
	_ = json.Unmarshal(awaitEvent(t, stranger, "error").Data, &rejection)
	if rejection.Code != "FORBIDDEN" {
		t.Fatalf("stranger join rejected with %q", rejection.Code)
	}

	send(t, driver, "shout", "{}")
	_ = json.Unmarshal(awaitEvent(t, driver, "error").Data, &rejection)
	if rejection.Code != "UNKNOWN_EVENT" {
		t.Fatalf("unknown event rejected with %q", rejection.Code)
	}

	send(t, driver, "join-ride", map[string]string{"roomId": ride.ID})
	awaitEvent(t, driver, "joined")
	send(t, passenger, "join-ride", ride.ID)
	awaitEvent(t, passenger, "joined")

	if status, env := call(t, server, http.MethodPost, "/api/v1/rides/"+ride.ID+"/start", driverTok, nil); status != http.StatusOK {
		t.Fatalf("start status %d code %s", status, errorCode(env))
	}

	var update struct {
		RideID string `json:"rideId"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(awaitEvent(t, driver, "ride-status").Data, &update)
	if update.RideID != ride.ID || update.Status != "in_progress" {
		t.Fatalf("unexpected ride-status %+v", update)
	}
	awaitEvent(t, passenger, "ride-status")

	send(t, passenger, "update-location", map[string]interface{}{
		"rideId": ride.ID, "location": map[string]float64{"lat": 1, "lng": 1},
	})
	_ = json.Unmarshal(awaitEvent(t, passenger, "error").Data, &rejection)
	if rejection.Code != "FORBIDDEN" {
		t.Fatalf("passenger location update rejected with %q", rejection.Code)
	}

	send(t, driver, "update-location", map[string]interface{}{
		"rideId": ride.ID, "location": map[string]float64{"lat": 51.0, "lng": 12.0},
	})
	var location struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	}
	_ = json.Unmarshal(awaitEvent(t, passenger, "location-updated").Data, &location)
	if location.Location.Lat != 51.0 || location.Location.Lng != 12.0 {
		t.Fatalf("unexpected location %+v", location)
	}

	expectSilence(t, passenger, 200*time.Millisecond)
	expectSilence(t, stranger, 200*time.Millisecond)
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSocketDisconnectLeavesEveryRoom(t *testing.T) {
	server, hub := newTestServerWithHub(t)

	driverID := primitive.NewObjectID()
	driverTok := token(t, driverID, true)
	ride := createRide(t, server, driverTok, 2)

	driver := dialSocket(t, server, driverTok)
	send(t, driver, "join-ride", ride.ID)
	awaitEvent(t, driver, "joined")

	if hub.RoomSize(ride.ID) != 1 || !hub.IsUserOnline(context.Background(), driverID) {
		t.Fatalf("ride room %d, online %v", hub.RoomSize(ride.ID), hub.IsUserOnline(context.Background(), driverID))
	}

	if err := driver.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	waitFor(t, "ride room to empty", func() bool { return hub.RoomSize(ride.ID) == 0 })
	waitFor(t, "user room to empty", func() bool { return hub.RoomSize(websocket.UserRoom(driverID)) == 0 })
	if hub.IsUserOnline(context.Background(), driverID) {
		t.Fatal("driver still online after disconnect")
	}
	if n := healthConnections(t, server); n != 0 {
		t.Fatalf("connections = %d after disconnect", n)
	}
}

func TestSocketNotificationsBetweenRideParticipants(t *testing.T) {
	server := newTestServer(t)

	driverID, passengerID, strangerID := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	driverTok, passengerTok := token(t, driverID, true), token(t, passengerID, false)
	ride := createRide(t, server, driverTok, 2)

	if status, _ := call(t, server, http.MethodPost, "/api/v1/bookings", passengerTok, map[string]interface{}{
		"rideId": ride.ID, "numberOfSeats": 1,
	}); status != http.StatusCreated {
		t.Fatalf("create booking status %d", status)
	}

	driver := dialSocket(t, server, driverTok)
	passenger := dialSocket(t, server, passengerTok)
	stranger := dialSocket(t, server, token(t, strangerID, false))

	notification := func(userID primitive.ObjectID, relatedID string) map[string]interface{} {
		body := map[string]interface{}{"type": "ride_cancelled", "message": "I cancelled your ride"}
		if relatedID != "" {
			body["relatedId"] = relatedID
		}
		return map[string]interface{}{"userId": userID.Hex(), "notification": body}
	}

	var rejection struct {
		Code string `json:"code"`
	}
	for _, tc := range []struct {
		name string
		conn *gorilla.Conn
		data map[string]interface{}
	}{
		{"stranger to driver", stranger, notification(driverID, ride.ID)},
		{"without related ride", passenger, notification(driverID, "")},
		{"to a non participant", driver, notification(strangerID, ride.ID)},
	} {
		send(t, tc.conn, "send-notification", tc.data)
		_ = json.Unmarshal(awaitEvent(t, tc.conn, "error").Data, &rejection)
		if rejection.Code != "FORBIDDEN" {
			t.Fatalf("%s: rejected with %q", tc.name, rejection.Code)
		}
	}

	send(t, passenger, "send-notification", notification(driverID, ride.ID))
	var delivered struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(awaitEvent(t, driver, "new-notification").Data, &delivered)
	if delivered.Type != "ride_cancelled" || delivered.Message != "I cancelled your ride" {
		t.Fatalf("unexpected notification %+v", delivered)
	}

	_, env := call(t, server, http.MethodGet, "/api/v1/notifications/"+strangerID.Hex(), token(t, strangerID, false), nil)
	var inbox struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	_ = json.Unmarshal(env.Data, &inbox)
	if inbox.UnreadCount != 0 {
		t.Fatalf("stranger received %d notifications", inbox.UnreadCount)
	}
}
