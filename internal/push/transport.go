package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/pushrelay/internal/domain"
)

// Transport delivers an encrypted payload to a single push endpoint.
// A rejected delivery is reported as *DeliveryError.
type Transport interface {
	Send(ctx context.Context, sub domain.Subscription, payload []byte) error
}

// DeliveryError describes a delivery the push service answered with a non-2xx status.
type DeliveryError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("push service returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("push service returned %d", e.StatusCode)
}

// statusCode extracts the push service status from a delivery error.
// Errors that never reached the push service (DNS, TLS, timeouts) have code 0.
func statusCode(err error) int {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.StatusCode
	}
	return 0
}

// failureMessage returns the human readable part of a delivery failure.
func failureMessage(err error) string {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) && deliveryErr.Message != "" {
		return deliveryErr.Message
	}
	return err.Error()
}
