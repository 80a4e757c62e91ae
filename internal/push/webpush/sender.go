// Package webpush delivers push messages over the Web Push protocol with VAPID.
package webpush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/bissquit/pushrelay/internal/domain"
	"github.com/bissquit/pushrelay/internal/push"
)

const (
	defaultTimeout = 10 * time.Second
	defaultTTL     = 4 * 7 * 24 * 60 * 60 // four weeks, in seconds
	defaultSubject = "mailto:admin@example.com"
	maxErrorBody   = 4 << 10
)

// Config holds Web Push sender configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string        // mailto: address or https: URL of the operator
	TTL             int           // seconds the push service keeps an undelivered message
	Urgency         string        // very-low, low, normal or high
	Timeout         time.Duration // request timeout per delivery
}

// Sender implements push.Transport for Web Push endpoints.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new Web Push sender.
// Returns error if VAPID keys are missing.
func NewSender(config Config) (*Sender, error) {
	if config.VAPIDPublicKey == "" || config.VAPIDPrivateKey == "" {
		return nil, errors.New("webpush sender: VAPID public and private keys are required")
	}
	if config.Subject == "" {
		config.Subject = defaultSubject
	}
	if config.TTL <= 0 {
		config.TTL = defaultTTL
	}
	if config.Urgency == "" {
		config.Urgency = string(webpush.UrgencyNormal)
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("webpush sender configured",
		"subject", config.Subject,
		"ttl", config.TTL,
		"urgency", config.Urgency,
		"timeout", config.Timeout,
	)

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Send encrypts payload for the subscription and posts it to its endpoint.
// Non-2xx replies are returned as *push.DeliveryError.
func (s *Sender) Send(ctx context.Context, sub domain.Subscription, payload []byte) error {
	if sub.Endpoint == "" {
		return errors.New("subscription endpoint is empty")
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload,
		&webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.PublicKey,
				Auth:   sub.AuthSecret,
			},
		},
		&webpush.Options{
			HTTPClient:      s.httpClient,
			Subscriber:      subscriber(s.config.Subject),
			TTL:             s.config.TTL,
			Urgency:         webpush.Urgency(s.config.Urgency),
			VAPIDPublicKey:  s.config.VAPIDPublicKey,
			VAPIDPrivateKey: s.config.VAPIDPrivateKey,
		},
	)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp)
}

func handleResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		body = nil
	}

	message := http.StatusText(resp.StatusCode)
	if message == "" {
		message = "unexpected status"
	}

	return &push.DeliveryError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Body:       strings.TrimSpace(string(body)),
	}
}

// subscriber strips the mailto: scheme; the library adds it back for non-URL subjects.
func subscriber(subject string) string {
	return strings.TrimPrefix(subject, "mailto:")
}
