package handlers

import (
	"context"
	"errors"

	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/internal/validators"
	"ridelink/pkg/logger"
	"ridelink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SocketHandler dispatches the closed set of inbound socket events. Every
// payload is decoded and validated before it reaches a service.
type SocketHandler struct {
	hub           *websocket.Hub
	access        services.RoomAccess
	relay         services.RelayService
	notifications services.NotificationService
	logger        *logger.Logger
}

func NewSocketHandler(hub *websocket.Hub, access services.RoomAccess, relay services.RelayService, notifications services.NotificationService, log *logger.Logger) *SocketHandler {
	return &SocketHandler{
		hub:           hub,
		access:        access,
		relay:         relay,
		notifications: notifications,
		logger:        log,
	}
}

type roomAck struct {
	RoomID string `json:"roomId"`
}

func (h *SocketHandler) HandleEvent(ctx context.Context, client *websocket.Client, env websocket.Envelope) error {
	payload, err := validators.DecodeEvent(env.Event, env.Data)
	if err != nil {
		if errors.Is(err, validators.ErrUnknownEvent) {
			return &websocket.EventError{Code: "UNKNOWN_EVENT", Message: err.Error()}
		}
		return &websocket.EventError{Code: string(utils.KindValidation), Message: err.Error()}
	}

	switch p := payload.(type) {
	case *validators.JoinRidePayload:
		if err := h.access.CanJoin(ctx, client.UserID, p.RoomID); err != nil {
			return toEventError(err)
		}
		h.hub.Join(client, p.RoomID)
		h.hub.SendTo(client, websocket.EventJoined, roomAck{RoomID: p.RoomID})

	case *validators.LeaveRidePayload:
		h.hub.Leave(client, p.RoomID)
		h.hub.SendTo(client, websocket.EventLeft, roomAck{RoomID: p.RoomID})

	case *validators.UpdateLocationPayload:
		rideID, _ := validators.ParseObjectID(p.RideID)
		if _, err := h.relay.UpdateLocation(ctx, rideID, client.UserID, p.Location.Point()); err != nil {
			return toEventError(err)
		}

	case *validators.SendMessagePayload:
		rideID, _ := validators.ParseObjectID(p.RideID)
		if _, err := h.relay.SendMessage(ctx, rideID, client.UserID, optionalID(p.RecipientID), p.Message); err != nil {
			return toEventError(err)
		}

	case *validators.SendNotificationPayload:
		notificationType := models.NotificationType(p.Notification.Type)
		// system alerts come from the server only
		if notificationType == models.NotificationTypeSystemAlert {
			h.logger.LogSecurityEvent("client_system_alert", "medium", map[string]interface{}{
				"user_id": client.UserID.Hex(),
			})
			return &websocket.EventError{Code: string(utils.KindForbidden), Message: "system alerts cannot be sent by clients"}
		}
		target, _ := validators.ParseObjectID(p.UserID)
		if err := h.checkCounterpart(ctx, client, target, p.Notification.RelatedID); err != nil {
			return toEventError(err)
		}
		if _, err := h.notifications.Notify(ctx, target, notificationType, p.Notification.Message, optionalID(p.Notification.RelatedID)); err != nil {
			return toEventError(err)
		}
	}

	return nil
}

// checkCounterpart lets a client notify only someone it shares the related
// ride or booking room with. Both sides must be allowed into that room.
func (h *SocketHandler) checkCounterpart(ctx context.Context, client *websocket.Client, target primitive.ObjectID, relatedID string) error {
	if relatedID == "" {
		return utils.NewForbiddenError("notifications must reference a shared ride or booking")
	}
	if err := h.access.CanJoin(ctx, client.UserID, relatedID); err != nil {
		return err
	}
	if err := h.access.CanJoin(ctx, target, relatedID); err != nil {
		if utils.IsKind(err, utils.KindDependencyFailure) {
			return err
		}
		h.logger.LogSecurityEvent("notification_to_non_participant", "low", map[string]interface{}{
			"user_id":    client.UserID.Hex(),
			"target_id":  target.Hex(),
			"related_id": relatedID,
		})
		return utils.NewForbiddenError("recipient is not a participant")
	}
	return nil
}

// toEventError exposes the kind of a domain failure to the client. Store
// failures stay opaque and are logged by the client loop.
func toEventError(err error) error {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Kind == utils.KindDependencyFailure {
		return err
	}
	return &websocket.EventError{Code: string(appErr.Kind), Message: appErr.Message}
}
