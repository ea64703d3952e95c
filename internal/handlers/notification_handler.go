package handlers

import (
	"ridelink/internal/models"
	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationHandler struct {
	notificationService services.NotificationService
}

func NewNotificationHandler(notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

type notificationList struct {
	Notifications []*models.Notification `json:"notifications"`
	UnreadCount   int64                  `json:"unreadCount"`
}

type markReadResult struct {
	Updated     int64 `json:"updated"`
	UnreadCount int64 `json:"unreadCount"`
}

// GetNotifications lists the caller's notifications with their unread count
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, ok := h.ownUser(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	ctx := c.Request.Context()

	notifications, total, err := h.notificationService.List(ctx, userID, params)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	unread, err := h.notificationService.UnreadCount(ctx, userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
		Count:      len(notifications),
	}
	utils.SuccessResponseWithMeta(c, "Notifications retrieved successfully", notificationList{
		Notifications: notifications,
		UnreadCount:   unread,
	}, meta)
}

// MarkRead flips the listed notifications to read. Ids owned by someone
// else are ignored.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := h.ownUser(c)
	if !ok {
		return
	}

	var request validators.MarkReadRequest
	if !bindJSON(c, &request) {
		return
	}
	if respondValidation(c, validators.ValidateMarkRead(&request)) {
		return
	}

	ids := make([]primitive.ObjectID, 0, len(request.NotificationIDs))
	for _, hex := range request.NotificationIDs {
		id, _ := validators.ParseObjectID(hex)
		ids = append(ids, id)
	}

	ctx := c.Request.Context()
	updated, err := h.notificationService.MarkRead(ctx, userID, ids)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	h.respondMarked(c, userID, updated)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := h.ownUser(c)
	if !ok {
		return
	}

	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	h.respondMarked(c, userID, updated)
}

func (h *NotificationHandler) respondMarked(c *gin.Context, userID primitive.ObjectID, updated int64) {
	unread, err := h.notificationService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, "Notifications marked as read", markReadResult{Updated: updated, UnreadCount: unread})
}

// ownUser resolves the :userId path parameter and requires it to be the caller.
func (h *NotificationHandler) ownUser(c *gin.Context) (primitive.ObjectID, bool) {
	callerID, ok := currentUser(c)
	if !ok {
		return primitive.NilObjectID, false
	}
	userID, ok := pathID(c, "userId", "user")
	if !ok {
		return primitive.NilObjectID, false
	}
	if userID != callerID {
		utils.ForbiddenResponse(c)
		return primitive.NilObjectID, false
	}
	return userID, true
}
