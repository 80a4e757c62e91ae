package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/pushrelay/internal/domain"
)

// DeliveryOutcome is the result of one delivery attempt.
type DeliveryOutcome struct {
	// Index of the originating subscription in the dispatched slice.
	Index        int
	Subscription domain.Subscription
	// Err is nil on success.
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the push service accepted the message.
func (o DeliveryOutcome) Succeeded() bool {
	return o.Err == nil
}

// Dispatcher delivers a payload to many subscriptions concurrently.
type Dispatcher struct {
	transport Transport
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(transport Transport) *Dispatcher {
	return &Dispatcher{transport: transport}
}

// Dispatch issues one attempt per subscription, all at once, and waits for every
// attempt to settle. Outcomes are returned in settlement order.
//
// Attempts are not bounded: N subscriptions means N goroutines and N in-flight
// requests. Attempts ignore caller cancellation; only the transport timeout stops them.
func (d *Dispatcher) Dispatch(ctx context.Context, subs []domain.Subscription, payload []byte) []DeliveryOutcome {
	if len(subs) == 0 {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	settled := make(chan DeliveryOutcome, len(subs))

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			settled <- d.attempt(ctx, i, sub, payload)
		}()
	}

	wg.Wait()
	close(settled)

	outcomes := make([]DeliveryOutcome, 0, len(subs))
	for outcome := range settled {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (d *Dispatcher) attempt(ctx context.Context, index int, sub domain.Subscription, payload []byte) (outcome DeliveryOutcome) {
	start := time.Now()
	outcome = DeliveryOutcome{Index: index, Subscription: sub}

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("delivery panicked: %v", r)
		}
		outcome.Duration = time.Since(start)
		recordDelivery(outcome)
	}()

	outcome.Err = d.transport.Send(ctx, sub, payload)
	return outcome
}
