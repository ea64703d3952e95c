package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestClient(hub *Hub, buffer int) *Client {
	return NewClient(hub, nil, nil, ClientConfig{SendBufferSize: buffer}, primitive.NewObjectID(), "", false)
}

func readEnvelope(t *testing.T, client *Client) Envelope {
	t.Helper()
	select {
	case data, ok := <-client.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Envelope{}
}

func assertEmpty(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Fatalf("unexpected event %s", data)
	default:
	}
}

func TestRegisterJoinsUserRoom(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)
	client := newTestClient(hub, 4)

	if hub.IsUserOnline(context.Background(), client.UserID) {
		t.Fatal("user online before register")
	}
	if err := hub.Register(client); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !hub.IsUserOnline(context.Background(), client.UserID) {
		t.Fatal("user not online after register")
	}
	if !client.InRoom(UserRoom(client.UserID)) {
		t.Fatal("client not in its user room")
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.IsUserOnline(context.Background(), client.UserID) || hub.ClientCount() != 0 {
		t.Fatal("client still registered")
	}
}

func TestPublishReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)
	member := newTestClient(hub, 4)
	outsider := newTestClient(hub, 4)
	for _, c := range []*Client{member, outsider} {
		if err := hub.Register(c); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	room := primitive.NewObjectID().Hex()
	hub.Join(member, room)

	if err := hub.Publish(context.Background(), room, EventRideStatus, map[string]string{"status": "InProgress"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	env := readEnvelope(t, member)
	if env.Event != EventRideStatus || env.Room != room {
		t.Fatalf("got event %q room %q", env.Event, env.Room)
	}
	var payload map[string]string
	if err := json.Unmarshal(env.Data, &payload); err != nil || payload["status"] != "InProgress" {
		t.Fatalf("unexpected payload %s", env.Data)
	}
	assertEmpty(t, outsider)

	hub.Leave(member, room)
	if hub.RoomSize(room) != 0 {
		t.Fatalf("room size = %d after leave", hub.RoomSize(room))
	}
	_ = hub.Publish(context.Background(), room, EventRideStatus, nil)
	assertEmpty(t, member)
}

func TestPublishPreservesOrder(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)
	client := newTestClient(hub, 16)
	_ = hub.Register(client)

	for i := 0; i < 10; i++ {
		_ = hub.PublishToUser(context.Background(), client.UserID, EventNewNotification, i)
	}
	for i := 0; i < 10; i++ {
		env := readEnvelope(t, client)
		var got int
		_ = json.Unmarshal(env.Data, &got)
		if got != i {
			t.Fatalf("event %d arrived as %d", i, got)
		}
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)
	slow := newTestClient(hub, 1)
	fast := newTestClient(hub, 8)
	room := "ride"
	for _, c := range []*Client{slow, fast} {
		_ = hub.Register(c)
		hub.Join(c, room)
	}

	for i := 0; i < 3; i++ {
		_ = hub.Publish(context.Background(), room, EventLocationUpdated, i)
	}

	if hub.RoomSize(room) != 1 || hub.ClientCount() != 1 {
		t.Fatalf("room size %d clients %d, want 1 and 1", hub.RoomSize(room), hub.ClientCount())
	}
	for i := 0; i < 3; i++ {
		readEnvelope(t, fast)
	}

	// the buffered event is still readable, then the channel is closed
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Fatal("slow client send channel not closed")
	}
}

func TestShutdownRejectsFurtherWork(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)
	client := newTestClient(hub, 1)
	_ = hub.Register(client)

	hub.Shutdown()
	hub.Shutdown()

	if _, ok := <-client.send; ok {
		t.Fatal("client not closed by shutdown")
	}
	if err := hub.Publish(context.Background(), "room", EventRideStatus, nil); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("Publish after shutdown = %v", err)
	}
	if err := hub.Register(newTestClient(hub, 1)); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("Register after shutdown = %v", err)
	}
}

func TestSendToBypassesRooms(t *testing.T) {
	hub := NewHub(logger.NewNop(), nil)
	client := newTestClient(hub, 2)
	_ = hub.Register(client)

	hub.SendTo(client, EventJoined, map[string]string{"roomId": "abc"})

	env := readEnvelope(t, client)
	if env.Event != EventJoined || env.Room != "" {
		t.Fatalf("got event %q room %q", env.Event, env.Room)
	}
}

type chanBroker struct {
	ch      chan []byte
	failing bool
}

func (b *chanBroker) Publish(ctx context.Context, data []byte) error {
	if b.failing {
		return errors.New("broker down")
	}
	b.ch <- data
	return nil
}

func (b *chanBroker) Subscribe(ctx context.Context) (<-chan []byte, error) {
	return b.ch, nil
}

func TestBrokerRoundTrip(t *testing.T) {
	broker := &chanBroker{ch: make(chan []byte, 4)}
	hub := NewHub(logger.NewNop(), broker)
	client := newTestClient(hub, 4)
	_ = hub.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	if err := hub.PublishToUser(ctx, client.UserID, EventNewNotification, "hello"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if env := readEnvelope(t, client); env.Event != EventNewNotification {
		t.Fatalf("got event %q", env.Event)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if hub.ClientCount() != 0 {
		t.Fatal("Run did not shut the hub down")
	}
}

func TestBrokerFailureFallsBackToLocal(t *testing.T) {
	hub := NewHub(logger.NewNop(), &chanBroker{failing: true})
	client := newTestClient(hub, 2)
	_ = hub.Register(client)

	if err := hub.PublishToUser(context.Background(), client.UserID, EventNewNotification, "x"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	readEnvelope(t, client)
}

type memPresence struct {
	mu      sync.Mutex
	entries map[string]map[string]time.Time
	err     error
}

func newMemPresence() *memPresence {
	return &memPresence{entries: make(map[string]map[string]time.Time)}
}

func (m *memPresence) TouchMember(_ context.Context, key, member string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.entries[key] == nil {
		m.entries[key] = make(map[string]time.Time)
	}
	m.entries[key][member] = time.Now().Add(ttl)
	return nil
}

func (m *memPresence) RemoveMember(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.entries[key], member)
	return nil
}

func (m *memPresence) HasLiveMember(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, expiry := range m.entries[key] {
		if time.Now().Before(expiry) {
			return true, nil
		}
	}
	return false, nil
}

func TestPresenceSpansInstances(t *testing.T) {
	store := newMemPresence()
	local := NewHub(logger.NewNop(), nil)
	local.UsePresence(NewPresence(store, "instance-a", time.Minute))
	remote := NewHub(logger.NewNop(), nil)
	remote.UsePresence(NewPresence(store, "instance-b", time.Minute))

	first := newTestClient(local, 1)
	second := NewClient(local, nil, nil, ClientConfig{SendBufferSize: 1}, first.UserID, "", false)
	for _, c := range []*Client{first, second} {
		if err := local.Register(c); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	ctx := context.Background()
	if !remote.IsUserOnline(ctx, first.UserID) {
		t.Fatal("user connected on another instance reported offline")
	}

	// one of two connections closing keeps the user online
	local.Unregister(first)
	local.presenceSyncs.Wait()
	if !remote.IsUserOnline(ctx, first.UserID) {
		t.Fatal("user offline while a connection remains")
	}

	local.Unregister(second)
	local.presenceSyncs.Wait()
	if remote.IsUserOnline(ctx, first.UserID) {
		t.Fatal("user still online after the last connection closed")
	}
}

func TestPresenceExpiresWithoutRefresh(t *testing.T) {
	store := newMemPresence()
	crashed := NewHub(logger.NewNop(), nil)
	crashed.UsePresence(NewPresence(store, "instance-a", 50*time.Millisecond))
	observer := NewHub(logger.NewNop(), nil)
	observer.UsePresence(NewPresence(store, "instance-b", time.Minute))

	client := newTestClient(crashed, 1)
	_ = crashed.Register(client)

	time.Sleep(100 * time.Millisecond)
	if observer.IsUserOnline(context.Background(), client.UserID) {
		t.Fatal("expired presence entry still counts")
	}
}

func TestPresenceFailureCountsAsOffline(t *testing.T) {
	store := newMemPresence()
	store.err = errors.New("redis down")
	hub := NewHub(logger.NewNop(), nil)
	hub.UsePresence(NewPresence(store, "instance-a", time.Minute))

	if hub.IsUserOnline(context.Background(), primitive.NewObjectID()) {
		t.Fatal("lookup failure reported online")
	}

	client := newTestClient(hub, 1)
	if err := hub.Register(client); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !hub.IsUserOnline(context.Background(), client.UserID) {
		t.Fatal("local connection must count regardless of presence")
	}
}
