package push

import "errors"

// Repository errors.
var (
	ErrSubscriptionNotFound = errors.New("push subscription not found")
	ErrChannelNotFound      = errors.New("channel not found")
)

// Dispatch errors.
var (
	ErrTransportNotConfigured = errors.New("push transport not configured")
	ErrPayloadTooLarge        = errors.New("push payload too large")
)
