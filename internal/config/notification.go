package config

import (
	"time"
)

type NotificationConfig struct {
	UnreadCountTTL   time.Duration `yaml:"unread_count_ttl"`
	DeliveryTimeout  time.Duration `yaml:"delivery_timeout"`
	SMSForTypes      []string      `yaml:"sms_for_types"`
	MaxMessageLength int           `yaml:"max_message_length"`
}

func loadNotificationConfig() *NotificationConfig {
	return &NotificationConfig{
		UnreadCountTTL:   getEnvAsDuration("NOTIFICATION_UNREAD_COUNT_TTL", 5*time.Minute),
		DeliveryTimeout:  getEnvAsDuration("NOTIFICATION_DELIVERY_TIMEOUT", 30*time.Second),
		SMSForTypes:      getEnvAsSlice("NOTIFICATION_SMS_TYPES", []string{"system_alert", "ride_cancelled"}),
		MaxMessageLength: getEnvAsInt("NOTIFICATION_MAX_MESSAGE_LENGTH", 500),
	}
}
