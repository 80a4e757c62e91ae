package push

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pushrelay"

var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "deliveries_total",
			Help:      "Total delivery attempts by result",
		},
		[]string{"result"},
	)

	deliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "delivery_duration_seconds",
			Help:      "Time for the push service to answer a delivery attempt",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	dispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "dispatch_duration_seconds",
			Help:      "Time from event received to report built",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	dispatchTargeted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "dispatch_targeted_subscriptions",
			Help:      "Number of subscriptions targeted per dispatch",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	deactivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "deactivations_total",
			Help:      "Endpoints marked for deactivation, by write outcome",
		},
		[]string{"status"},
	)

	lookupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "lookup_failures_total",
			Help:      "Channel lookups that failed during recipient resolution",
		},
		[]string{"lookup"},
	)
)

// recordDelivery records a delivery attempt metric.
func recordDelivery(o DeliveryOutcome) {
	result := "success"
	if !o.Succeeded() {
		result = "failed"
		if ClassifyStatus(statusCode(o.Err)) == DispositionGone {
			result = "gone"
		}
	}
	deliveriesTotal.WithLabelValues(result).Inc()
	deliveryDuration.Observe(o.Duration.Seconds())
}

func recordDispatch(targeted int, duration time.Duration) {
	dispatchTargeted.Observe(float64(targeted))
	dispatchDuration.Observe(duration.Seconds())
}

func recordDeactivation(count int, err error) {
	status := "applied"
	if err != nil {
		status = "failed"
	}
	deactivationsTotal.WithLabelValues(status).Add(float64(count))
}

func recordLookupFailure(lookup string) {
	lookupFailuresTotal.WithLabelValues(lookup).Inc()
}
