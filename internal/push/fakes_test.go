package push

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bissquit/pushrelay/internal/domain"
)

// fakeRepository is an in-memory registry mirroring the SQL filters.
type fakeRepository struct {
	mu sync.Mutex

	subs    []domain.Subscription
	members map[string][]string
	owners  map[string]string

	membersErr error
	ownerErr   error
	listErr    error
	disableErr error

	listCalls    int
	disableCalls [][]string
}

func newFakeRepository(subs ...domain.Subscription) *fakeRepository {
	return &fakeRepository{
		subs:    subs,
		members: make(map[string][]string),
		owners:  make(map[string]string),
	}
}

func (r *fakeRepository) ListChannelMembers(_ context.Context, channelID string) ([]string, error) {
	if r.membersErr != nil {
		return nil, r.membersErr
	}
	return r.members[channelID], nil
}

func (r *fakeRepository) GetChannelOwner(_ context.Context, channelID string) (string, error) {
	if r.ownerErr != nil {
		return "", r.ownerErr
	}
	owner, ok := r.owners[channelID]
	if !ok || owner == "" {
		return "", ErrChannelNotFound
	}
	return owner, nil
}

func (r *fakeRepository) ListEnabledSubscriptions(_ context.Context, audience Audience) ([]domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}

	var result []domain.Subscription
	for _, s := range r.subs {
		if !s.Enabled || s.Recipient == audience.Exclude {
			continue
		}
		if !audience.Broadcast && !slices.Contains(audience.Recipients, s.Recipient) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *fakeRepository) DisableSubscriptions(_ context.Context, endpoints []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disableCalls = append(r.disableCalls, slices.Clone(endpoints))
	if r.disableErr != nil {
		return 0, r.disableErr
	}

	var affected int64
	for i := range r.subs {
		if r.subs[i].Enabled && slices.Contains(endpoints, r.subs[i].Endpoint) {
			r.subs[i].Enabled = false
			affected++
		}
	}
	return affected, nil
}

func (r *fakeRepository) UpsertSubscription(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for i := range r.subs {
		if r.subs[i].Endpoint == sub.Endpoint {
			sub.ID = r.subs[i].ID
			sub.CreatedAt = r.subs[i].CreatedAt
			sub.UpdatedAt = now
			sub.Enabled = true
			r.subs[i] = *sub
			return nil
		}
	}

	sub.ID = "sub-" + sub.Endpoint
	sub.Enabled = true
	sub.CreatedAt = now
	sub.UpdatedAt = now
	r.subs = append(r.subs, *sub)
	return nil
}

func (r *fakeRepository) DeleteSubscription(_ context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.subs {
		if r.subs[i].Endpoint == endpoint {
			r.subs = slices.Delete(r.subs, i, i+1)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

func (r *fakeRepository) enabled(endpoint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if s.Endpoint == endpoint {
			return s.Enabled
		}
	}
	return false
}

// fakeTransport answers each endpoint with a scripted result.
type fakeTransport struct {
	mu sync.Mutex

	results map[string]error
	delays  map[string]time.Duration
	panics  map[string]bool

	sent     []string
	payloads [][]byte
	inFlight int
	peak     int
	ctxErrs  []error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		results: make(map[string]error),
		delays:  make(map[string]time.Duration),
		panics:  make(map[string]bool),
	}
}

func (t *fakeTransport) Send(ctx context.Context, sub domain.Subscription, payload []byte) error {
	t.mu.Lock()
	t.inFlight++
	t.peak = max(t.peak, t.inFlight)
	delay := t.delays[sub.Endpoint]
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight--
		t.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	t.mu.Lock()
	t.sent = append(t.sent, sub.Endpoint)
	t.payloads = append(t.payloads, payload)
	t.ctxErrs = append(t.ctxErrs, ctx.Err())
	shouldPanic := t.panics[sub.Endpoint]
	err := t.results[sub.Endpoint]
	t.mu.Unlock()

	if shouldPanic {
		panic("transport exploded")
	}
	return err
}

func (t *fakeTransport) sentTo() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Sorted(slices.Values(t.sent))
}

func newSub(recipient, endpoint string) domain.Subscription {
	return domain.Subscription{
		ID:         "id-" + endpoint,
		Recipient:  recipient,
		Endpoint:   endpoint,
		PublicKey:  "p256dh",
		AuthSecret: "auth",
		Enabled:    true,
	}
}

func statusErr(code int) error {
	return &DeliveryError{StatusCode: code, Message: "Gone"}
}

func ptr(s string) *string {
	return &s
}
