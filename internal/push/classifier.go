package push

import (
	"net/http"
	"strconv"
)

// Disposition tells what a delivery failure means for its subscription.
type Disposition int

// Dispositions.
const (
	// DispositionTransient leaves the subscription enabled; the next event tries again.
	DispositionTransient Disposition = iota
	// DispositionGone means the registration is permanently invalid.
	DispositionGone
)

func (d Disposition) String() string {
	if d == DispositionGone {
		return "gone"
	}
	return "transient"
}

// UnknownStatus buckets failures that carry no push service status code.
const UnknownStatus = "unknown"

// ClassifyStatus maps a push service status code to a disposition.
// Only 404 and 410 mark a registration as gone.
func ClassifyStatus(code int) Disposition {
	switch code {
	case http.StatusNotFound, http.StatusGone:
		return DispositionGone
	default:
		return DispositionTransient
	}
}

func statusKey(code int) string {
	if code <= 0 {
		return UnknownStatus
	}
	return strconv.Itoa(code)
}

// Classify folds delivery outcomes into report counters and returns the endpoints
// to deactivate. Outcomes must be in settlement order: the first failure becomes
// the report's sample. Targeted and deactivation fields are left for BuildReport.
func Classify(outcomes []DeliveryOutcome) (Report, []string) {
	report := Report{FailuresByStatus: make(map[string]int)}
	var gone []string
	seen := make(map[string]struct{})

	for _, o := range outcomes {
		if o.Succeeded() {
			report.Succeeded++
			continue
		}

		code := statusCode(o.Err)
		report.Failed++
		report.FailuresByStatus[statusKey(code)]++

		if report.SampleFailure == nil {
			report.SampleFailure = &FailureSample{
				Code:    code,
				Message: failureMessage(o.Err),
			}
		}

		if ClassifyStatus(code) != DispositionGone {
			continue
		}
		if _, ok := seen[o.Subscription.Endpoint]; ok {
			continue
		}
		seen[o.Subscription.Endpoint] = struct{}{}
		gone = append(gone, o.Subscription.Endpoint)
	}

	return report, gone
}
