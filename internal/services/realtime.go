package services

import (
	"context"
	"errors"
	"time"

	"ridelink/internal/utils"
	"ridelink/pkg/events"
	"ridelink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RealtimePublisher is the part of the websocket hub the services publish
// through. Delivery is best effort.
type RealtimePublisher interface {
	Publish(ctx context.Context, roomID, event string, payload interface{}) error
	PublishToUser(ctx context.Context, userID primitive.ObjectID, event string, payload interface{}) error
	IsUserOnline(ctx context.Context, userID primitive.ObjectID) bool
}

// RideRoom and BookingRoom are keyed by the bare hex id.
func RideRoom(rideID primitive.ObjectID) string {
	return rideID.Hex()
}

func BookingRoom(bookingID primitive.ObjectID) string {
	return bookingID.Hex()
}

func publishRoom(ctx context.Context, rt RealtimePublisher, log *logger.Logger, roomID, event string, payload interface{}) {
	if err := rt.Publish(ctx, roomID, event, payload); err != nil {
		log.WithError(err).WithFields(map[string]interface{}{
			"room":  roomID,
			"event": event,
		}).Warn("Live delivery failed")
	}
}

func publishUser(ctx context.Context, rt RealtimePublisher, log *logger.Logger, userID primitive.ObjectID, event string, payload interface{}) {
	if err := rt.PublishToUser(ctx, userID, event, payload); err != nil {
		log.WithError(err).WithUserID(userID).WithField("event", event).Warn("Live delivery failed")
	}
}

func emitLifecycle(ctx context.Context, pub events.Publisher, log *logger.Logger, eventType string, entityID, rideID, actorID primitive.ObjectID, attrs map[string]interface{}) {
	err := pub.Publish(ctx, events.LifecycleEvent{
		Type:       eventType,
		EntityID:   entityID.Hex(),
		RideID:     rideID.Hex(),
		ActorID:    actorID.Hex(),
		Attributes: attrs,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		log.WithError(err).WithField("event", eventType).Warn("Failed to publish lifecycle event")
	}
}

// storeError turns a repository error into a NotFound or DependencyFailure.
func storeError(err error, resource string) error {
	if errors.Is(err, utils.ErrNotFound) {
		return utils.NewNotFoundError(resource)
	}
	return utils.NewDependencyError("failed to access "+resource, err)
}
