package utils

import "time"

// Application Constants
const (
	AppName    = "RideLink"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Authentication
	JWTAccessTokenTTL = 24 * time.Hour

	// Booking
	MinSeatsPerBooking = 1

	// Chat
	MaxMessageLength = 500

	// Notification
	NotificationTimeout = 30 * time.Second
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken     = "invalid token"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrValidationFailed = "validation failed"
)

// Cache Keys
const (
	CacheUnreadCountPrefix = "unread_count:"
)

// Lifecycle event names mirrored to the event stream.
const (
	EventBookingRequested = "booking_requested"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventRideCreated      = "ride_created"
	EventRideStarted      = "ride_started"
	EventRideCompleted    = "ride_completed"
	EventRideCancelled    = "ride_cancelled"
)
