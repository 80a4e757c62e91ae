package push

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/pushrelay/internal/domain"
	"github.com/bissquit/pushrelay/internal/pkg/ctxlog"
	"github.com/google/uuid"
)

// Service runs the push fan-out and manages subscriptions.
type Service struct {
	repo       Repository
	resolver   *Resolver
	dispatcher *Dispatcher
	payloads   PayloadBuilder
}

// NewService creates a new push service.
// A nil transport keeps subscription management working and makes Send fail
// with ErrTransportNotConfigured.
func NewService(repo Repository, transport Transport, payloads PayloadBuilder) *Service {
	s := &Service{
		repo:     repo,
		resolver: NewResolver(repo),
		payloads: payloads,
	}
	if transport != nil {
		s.dispatcher = NewDispatcher(transport)
	}
	return s
}

// Send fans an event out to every eligible subscription and reports the outcome.
// Only failures that prevent the dispatch from starting are returned as errors.
func (s *Service) Send(ctx context.Context, event *domain.Event) (*Report, error) {
	if s.dispatcher == nil {
		return nil, ErrTransportNotConfigured
	}

	start := time.Now()
	dispatchID := uuid.NewString()
	ctx, logger := ctxlog.With(ctx, "dispatch_id", dispatchID)

	payload, err := s.payloads.Build(event)
	if err != nil {
		return nil, err
	}

	audience := s.resolver.Resolve(ctx, event)

	var subs []domain.Subscription
	if !audience.IsEmpty() {
		subs, err = s.repo.ListEnabledSubscriptions(ctx, audience)
		if err != nil {
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}
	}

	logger.Info("dispatching push notifications",
		"kind", event.Kind,
		"broadcast", audience.Broadcast,
		"recipients", len(audience.Recipients),
		"subscriptions", len(subs),
	)

	outcomes := s.dispatcher.Dispatch(ctx, subs, payload)
	classified, gone := Classify(outcomes)
	logFailures(logger, outcomes)

	// The write must land even if the caller went away mid-dispatch.
	deactivated, deactivationErr := s.deactivate(context.WithoutCancel(ctx), gone)

	report := BuildReport(dispatchID, len(subs), classified, deactivated, deactivationErr)
	recordDispatch(report.Targeted, time.Since(start))

	logger.Info("push dispatch completed",
		"targeted", report.Targeted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"disabled", report.Deactivated,
		"duration", time.Since(start),
	)

	return &report, nil
}

// deactivate disables gone endpoints in a single write. A failed write is logged
// and not retried; the endpoints stay enabled and fail again on the next event.
func (s *Service) deactivate(ctx context.Context, endpoints []string) (int, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}

	logger := ctxlog.FromContext(ctx)

	affected, err := s.repo.DisableSubscriptions(ctx, endpoints)
	recordDeactivation(len(endpoints), err)
	if err != nil {
		logger.Error("failed to disable gone subscriptions",
			"count", len(endpoints),
			"error", err,
		)
		return 0, err
	}

	if affected != int64(len(endpoints)) {
		logger.Debug("some gone subscriptions were already disabled",
			"requested", len(endpoints),
			"affected", affected,
		)
	}

	return len(endpoints), nil
}

func logFailures(logger *slog.Logger, outcomes []DeliveryOutcome) {
	for _, o := range outcomes {
		if o.Succeeded() {
			continue
		}
		code := statusCode(o.Err)
		logger.Debug("push delivery failed",
			"recipient", o.Subscription.Recipient,
			"endpoint", Fingerprint(o.Subscription.Endpoint),
			"status", code,
			"disposition", ClassifyStatus(code),
			"error", o.Err,
		)
	}
}

// Subscribe registers an endpoint for a recipient. Registering a known endpoint
// again updates its keys and owner and re-enables it.
func (s *Service) Subscribe(ctx context.Context, recipient, endpoint, publicKey, authSecret string) (*domain.Subscription, error) {
	sub := &domain.Subscription{
		Recipient:  recipient,
		Endpoint:   endpoint,
		PublicKey:  publicKey,
		AuthSecret: authSecret,
		Enabled:    true,
	}

	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("push subscription registered",
		"recipient", recipient,
		"endpoint", Fingerprint(endpoint),
	)

	return sub, nil
}

// Unsubscribe removes an endpoint registration.
func (s *Service) Unsubscribe(ctx context.Context, endpoint string) error {
	return s.repo.DeleteSubscription(ctx, endpoint)
}
