package services

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"ridelink/internal/config"
	"ridelink/internal/models"
	"ridelink/internal/repositories/interfaces"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"
	"ridelink/pkg/metrics"
	"ridelink/pkg/push"
	"ridelink/pkg/sms"
	"ridelink/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationService interface {
	// Notify persists the notification first and then attempts live
	// delivery. Only the persist step can fail the call.
	Notify(ctx context.Context, userID primitive.ObjectID, notificationType models.NotificationType, message string, relatedID *primitive.ObjectID) (*models.Notification, error)
	List(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Notification, int64, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	// MarkRead flips only the caller's notifications and ignores foreign ids.
	MarkRead(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (int64, error)
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	// Drain waits for offline deliveries still in flight.
	Drain()
}

type notificationService struct {
	notificationRepo interfaces.NotificationRepository
	userRepo         interfaces.UserRepository
	realtime         RealtimePublisher
	pushProvider     push.PushProvider
	smsProvider      sms.SMSProvider
	smsFrom          string
	config           *config.NotificationConfig
	logger           *logger.Logger

	inflight sync.WaitGroup
}

// NewNotificationService wires the dispatcher. pushProvider and smsProvider
// may be nil when offline delivery is not configured.
func NewNotificationService(
	notificationRepo interfaces.NotificationRepository,
	userRepo interfaces.UserRepository,
	realtime RealtimePublisher,
	pushProvider push.PushProvider,
	smsProvider sms.SMSProvider,
	smsFrom string,
	cfg *config.NotificationConfig,
	log *logger.Logger,
) NotificationService {
	var settings config.NotificationConfig
	if cfg != nil {
		settings = *cfg
	}
	if settings.MaxMessageLength <= 0 {
		settings.MaxMessageLength = utils.MaxMessageLength
	}
	if settings.DeliveryTimeout <= 0 {
		settings.DeliveryTimeout = utils.NotificationTimeout
	}
	return &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		realtime:         realtime,
		pushProvider:     pushProvider,
		smsProvider:      smsProvider,
		smsFrom:          smsFrom,
		config:           &settings,
		logger:           log,
	}
}

func (s *notificationService) Notify(ctx context.Context, userID primitive.ObjectID, notificationType models.NotificationType, message string, relatedID *primitive.ObjectID) (*models.Notification, error) {
	if !notificationType.IsValid() {
		return nil, utils.NewValidationError("unknown notification type " + string(notificationType))
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, utils.NewValidationError("notification message is required")
	}
	if maxLen := s.config.MaxMessageLength; maxLen > 0 && len(message) > maxLen {
		return nil, utils.NewValidationError("notification message is too long")
	}

	notification := &models.Notification{
		UserID:    userID,
		Type:      notificationType,
		Message:   message,
		RelatedID: relatedID,
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		s.logger.WithError(err).WithUserID(userID).Error("Failed to persist notification")
		return nil, utils.NewDependencyError("failed to store notification", err)
	}

	online := s.realtime.IsUserOnline(ctx, userID)
	publishUser(ctx, s.realtime, s.logger, userID, websocket.EventNewNotification, notification)
	metrics.NotificationsTotal.WithLabelValues(string(notificationType), strconv.FormatBool(online)).Inc()

	if s.wantsOfflineDelivery(notification, online) {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			deliveryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.DeliveryTimeout)
			defer cancel()
			s.deliverOffline(deliveryCtx, notification, online)
		}()
	}

	return notification, nil
}

func (s *notificationService) List(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Notification, int64, error) {
	notifications, total, err := s.notificationRepo.GetByUserID(ctx, userID, params)
	if err != nil {
		return nil, 0, utils.NewDependencyError("failed to list notifications", err)
	}
	return notifications, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.notificationRepo.GetUnreadCount(ctx, userID)
	if err != nil {
		return 0, utils.NewDependencyError("failed to count unread notifications", err)
	}
	return count, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	updated, err := s.notificationRepo.MarkAsRead(ctx, userID, ids)
	if err != nil {
		return 0, utils.NewDependencyError("failed to mark notifications read", err)
	}

	s.logger.WithUserID(userID).WithFields(map[string]interface{}{
		"requested": len(ids),
		"updated":   updated,
	}).Debug("Notifications marked read")

	return updated, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	updated, err := s.notificationRepo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, utils.NewDependencyError("failed to mark notifications read", err)
	}
	return updated, nil
}

func (s *notificationService) Drain() {
	s.inflight.Wait()
}

func (s *notificationService) wantsOfflineDelivery(n *models.Notification, online bool) bool {
	if s.pushProvider != nil && !online {
		return true
	}
	return s.smsProvider != nil && s.smsEnabledFor(n.Type)
}

func (s *notificationService) smsEnabledFor(t models.NotificationType) bool {
	for _, name := range s.config.SMSForTypes {
		if name == string(t) {
			return true
		}
	}
	return false
}

// deliverOffline pushes to the user's device when they have no live socket
// and texts them for the configured types. Failures are only logged.
func (s *notificationService) deliverOffline(ctx context.Context, n *models.Notification, online bool) {
	log := s.logger.WithUserID(n.UserID).WithField("notification_type", n.Type)

	user, err := s.userRepo.GetByID(ctx, n.UserID)
	if err != nil {
		log.WithError(err).Warn("Skipping offline delivery, user lookup failed")
		return
	}

	if s.pushProvider != nil && !online && user.DeviceToken != "" {
		request := &push.NotificationRequest{
			Token:    user.DeviceToken,
			Platform: string(user.Platform),
			Title:    notificationTitle(n.Type),
			Body:     n.Message,
			Data: map[string]string{
				"notificationId": n.ID.Hex(),
				"type":           string(n.Type),
			},
			Priority: "high",
		}
		if n.RelatedID != nil {
			request.Data["relatedId"] = n.RelatedID.Hex()
		}

		if _, err := s.pushProvider.SendNotification(ctx, request); err != nil {
			metrics.OfflineDeliveries.WithLabelValues("push", "failure").Inc()
			log.WithError(err).Warn("Push delivery failed")
		} else {
			metrics.OfflineDeliveries.WithLabelValues("push", "success").Inc()
		}
	}

	if s.smsProvider != nil && s.smsEnabledFor(n.Type) && utils.IsValidPhone(user.Phone) {
		phone := utils.NormalizePhone(user.Phone)
		_, err := s.smsProvider.SendSMS(ctx, &sms.SMSRequest{
			To:      phone,
			From:    s.smsFrom,
			Message: utils.AppName + ": " + n.Message,
			Type:    "transactional",
		})
		if err != nil {
			metrics.OfflineDeliveries.WithLabelValues("sms", "failure").Inc()
			log.WithError(err).WithField("phone", utils.MaskPhone(phone)).Warn("SMS delivery failed")
		} else {
			metrics.OfflineDeliveries.WithLabelValues("sms", "success").Inc()
		}
	}
}

func notificationTitle(t models.NotificationType) string {
	switch t {
	case models.NotificationTypeRideRequest:
		return "New ride request"
	case models.NotificationTypeRideAccepted:
		return "Booking confirmed"
	case models.NotificationTypeRideCancelled:
		return "Ride cancelled"
	case models.NotificationTypePaymentReceived:
		return "Payment received"
	default:
		return utils.AppName
	}
}
