package push

import (
	"context"
	"errors"
)

// ErrNoProvider is returned when no provider is configured for the target platform.
var ErrNoProvider = errors.New("no push provider for platform")

type PushProvider interface {
	SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error)
}

type NotificationRequest struct {
	Token       string            `json:"token"`
	Platform    string            `json:"platform,omitempty"` // android, ios, web
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	Priority    string            `json:"priority,omitempty"`
	TTL         int               `json:"ttl,omitempty"`
	CollapseKey string            `json:"collapse_key,omitempty"`
}

type NotificationResponse struct {
	MessageID string `json:"message_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Token     string `json:"token,omitempty"`
}

// Router sends iOS devices through APNs when it is configured and
// everything else through FCM.
type Router struct {
	FCM  PushProvider
	APNS PushProvider
}

func (r *Router) SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error) {
	provider := r.FCM
	if request.Platform == "ios" && r.APNS != nil {
		provider = r.APNS
	}
	if provider == nil {
		return nil, ErrNoProvider
	}
	return provider.SendNotification(ctx, request)
}
