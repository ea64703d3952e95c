package websocket

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const presenceTimeout = 2 * time.Second

// PresenceStore is the part of pkg/cache cross-instance presence needs.
type PresenceStore interface {
	TouchMember(ctx context.Context, key, member string, ttl time.Duration) error
	RemoveMember(ctx context.Context, key, member string) error
	HasLiveMember(ctx context.Context, key string) (bool, error)
}

// Presence records which instances hold a connection for a user. Each
// instance owns one expiring entry per connected user and refreshes it while
// the user stays connected, so entries of a crashed instance age out.
type Presence struct {
	store      PresenceStore
	instanceID string
	ttl        time.Duration
}

func NewPresence(store PresenceStore, instanceID string, ttl time.Duration) *Presence {
	return &Presence{store: store, instanceID: instanceID, ttl: ttl}
}

func presenceKey(userID primitive.ObjectID) string {
	return "presence:" + userID.Hex()
}

func (p *Presence) refreshInterval() time.Duration {
	return p.ttl / 3
}

func (p *Presence) connected(ctx context.Context, userID primitive.ObjectID) error {
	return p.store.TouchMember(ctx, presenceKey(userID), p.instanceID, p.ttl)
}

func (p *Presence) disconnected(ctx context.Context, userID primitive.ObjectID) error {
	return p.store.RemoveMember(ctx, presenceKey(userID), p.instanceID)
}

func (p *Presence) online(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	return p.store.HasLiveMember(ctx, presenceKey(userID))
}
