package push

// FailureSample is one delivery failure kept for diagnostics.
type FailureSample struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Report summarizes a single dispatch.
type Report struct {
	DispatchID       string         `json:"dispatch_id"`
	Succeeded        int            `json:"succeeded"`
	Failed           int            `json:"failed"`
	Targeted         int            `json:"targeted"`
	Deactivated      int            `json:"disabled"`
	FailuresByStatus map[string]int `json:"failures_by_status"`
	SampleFailure    *FailureSample `json:"sample_failure,omitempty"`
	// DeactivationFailed is set when gone endpoints could not be disabled.
	// Deactivated is 0 in that case and the endpoints stay enabled.
	DeactivationFailed bool `json:"deactivation_failed"`
}

// BuildReport assembles the final report from classified counters.
func BuildReport(dispatchID string, targeted int, classified Report, deactivated int, deactivationErr error) Report {
	report := classified
	report.DispatchID = dispatchID
	report.Targeted = targeted
	if report.FailuresByStatus == nil {
		report.FailuresByStatus = make(map[string]int)
	}

	if deactivationErr != nil {
		report.Deactivated = 0
		report.DeactivationFailed = true
	} else {
		report.Deactivated = deactivated
	}

	return report
}
