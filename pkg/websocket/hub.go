package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ridelink/pkg/logger"
	"ridelink/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrHubClosed is returned by Publish after Shutdown.
var ErrHubClosed = errors.New("websocket hub is shut down")

// UserRoom is the per-user channel every client joins on Register.
func UserRoom(userID primitive.ObjectID) string {
	return "user:" + userID.Hex()
}

// Hub is the room registry and event bus of one instance. With a Broker
// attached every publish goes through the broker and Run delivers what comes
// back, so all instances fan out to their own rooms.
type Hub struct {
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	mutex   sync.RWMutex
	closed  bool

	broker   Broker
	presence *Presence
	// presenceSyncs tracks disconnect updates still in flight.
	presenceSyncs sync.WaitGroup
	logger        *logger.Logger
}

func NewHub(log *logger.Logger, broker Broker) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		broker:  broker,
		logger:  log,
	}
}

// UsePresence attaches cross-instance presence. Call it before Run and before
// the first Register.
func (h *Hub) UsePresence(p *Presence) {
	h.presence = p
}

// Run consumes the broker subscription and refreshes presence until ctx is
// done, then shuts the hub down. Without either it only waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	defer h.Shutdown()

	var messages <-chan []byte
	if h.broker != nil {
		var err error
		if messages, err = h.broker.Subscribe(ctx); err != nil {
			return err
		}
	}

	var refresh <-chan time.Time
	if h.presence != nil {
		ticker := time.NewTicker(h.presence.refreshInterval())
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh:
			h.refreshPresence(ctx)
		case data, ok := <-messages:
			if !ok {
				return nil
			}
			var env struct {
				Room string `json:"room"`
			}
			if err := json.Unmarshal(data, &env); err != nil || env.Room == "" {
				h.logger.WithError(err).Warn("Dropping malformed broker message")
				continue
			}
			h.deliver(env.Room, data)
		}
	}
}

// Shutdown closes every client connection and withdraws this instance's
// presence. It is safe to call more than once.
func (h *Hub) Shutdown() {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return
	}
	h.closed = true

	for client := range h.clients {
		h.removeLocked(client)
	}
	h.mutex.Unlock()

	h.presenceSyncs.Wait()
}

func (h *Hub) Register(client *Client) error {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return ErrHubClosed
	}

	h.clients[client] = struct{}{}
	h.joinLocked(client, UserRoom(client.UserID))
	metrics.WSConnections.Inc()
	h.mutex.Unlock()

	h.logger.WithUserID(client.UserID).Debug("Client registered")

	if h.presence != nil {
		h.syncPresence(client.UserID)
	}
	return nil
}

// Unregister removes the client from every room and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.removeLocked(client)
}

func (h *Hub) Join(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	h.joinLocked(client, roomID)
}

func (h *Hub) Leave(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.leaveLocked(client, roomID)
}

// Publish sends event to every connection subscribed to roomID. Delivery is
// best effort: a broker failure falls back to local delivery.
func (h *Hub) Publish(ctx context.Context, roomID, event string, payload interface{}) error {
	data, err := newEnvelope(roomID, event, payload)
	if err != nil {
		return err
	}

	h.mutex.RLock()
	closed := h.closed
	h.mutex.RUnlock()
	if closed {
		return ErrHubClosed
	}

	metrics.EventsPublished.WithLabelValues(event).Inc()

	if h.broker != nil {
		err := h.broker.Publish(ctx, data)
		if err == nil {
			return nil
		}
		h.logger.WithError(err).WithField("room", roomID).Warn("Broker publish failed, delivering locally")
	}

	h.deliver(roomID, data)
	return nil
}

func (h *Hub) PublishToUser(ctx context.Context, userID primitive.ObjectID, event string, payload interface{}) error {
	return h.Publish(ctx, UserRoom(userID), event, payload)
}

// SendTo writes an event to one client only, bypassing rooms.
func (h *Hub) SendTo(client *Client, event string, payload interface{}) {
	data, err := newEnvelope("", event, payload)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode direct event")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.trySendLocked(client, data) {
		h.removeLocked(client)
	}
}

// IsUserOnline reports whether the user has a connection on this instance
// or, with presence attached, on any instance. A failed presence lookup
// counts as offline.
func (h *Hub) IsUserOnline(ctx context.Context, userID primitive.ObjectID) bool {
	if h.RoomSize(UserRoom(userID)) > 0 {
		return true
	}
	if h.presence == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()
	online, err := h.presence.online(ctx, userID)
	if err != nil {
		h.logger.WithError(err).WithUserID(userID).Warn("Presence lookup failed")
		return false
	}
	return online
}

func (h *Hub) RoomSize(roomID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// deliver holds the write lock for the whole fan-out so that concurrent
// publishes reach every subscriber in the same order.
func (h *Hub) deliver(roomID string, data []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	var slow []*Client
	for client := range room {
		if !h.trySendLocked(client, data) {
			slow = append(slow, client)
		}
	}

	for _, client := range slow {
		metrics.EventsDropped.Inc()
		h.logger.WithUserID(client.UserID).Warn("Dropping slow websocket client")
		h.removeLocked(client)
	}
}

func (h *Hub) trySendLocked(client *Client, data []byte) bool {
	if client.closed {
		return true
	}
	select {
	case client.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) joinLocked(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
	client.rooms[roomID] = struct{}{}
}

func (h *Hub) leaveLocked(client *Client, roomID string) {
	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.rooms, roomID)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	for roomID := range client.rooms {
		h.leaveLocked(client, roomID)
	}

	if !client.closed {
		client.closed = true
		close(client.send)
	}
	metrics.WSConnections.Dec()

	if h.presence != nil && len(h.rooms[UserRoom(client.UserID)]) == 0 {
		h.presenceSyncs.Add(1)
		go func(userID primitive.ObjectID) {
			defer h.presenceSyncs.Done()
			h.syncPresence(userID)
		}(client.UserID)
	}

	h.logger.WithUserID(client.UserID).Debug("Client unregistered")
}

// syncPresence writes the user's current local state to the presence store.
// It re-reads local state so racing connect and disconnect updates converge.
func (h *Hub) syncPresence(userID primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	var err error
	if h.RoomSize(UserRoom(userID)) > 0 {
		err = h.presence.connected(ctx, userID)
	} else {
		err = h.presence.disconnected(ctx, userID)
	}
	if err != nil {
		h.logger.WithError(err).WithUserID(userID).Warn("Failed to update presence")
	}
}

func (h *Hub) refreshPresence(ctx context.Context) {
	h.mutex.RLock()
	users := make(map[primitive.ObjectID]struct{}, len(h.clients))
	for client := range h.clients {
		users[client.UserID] = struct{}{}
	}
	h.mutex.RUnlock()

	for userID := range users {
		touchCtx, cancel := context.WithTimeout(ctx, presenceTimeout)
		if err := h.presence.connected(touchCtx, userID); err != nil {
			h.logger.WithError(err).WithUserID(userID).Warn("Failed to refresh presence")
		}
		cancel()
	}
}
