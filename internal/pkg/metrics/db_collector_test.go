package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakePoolStats struct {
	acquired, idle, constructing, total, max int32
}

func (s fakePoolStats) AcquiredConns() int32     { return s.acquired }
func (s fakePoolStats) IdleConns() int32         { return s.idle }
func (s fakePoolStats) ConstructingConns() int32 { return s.constructing }
func (s fakePoolStats) TotalConns() int32        { return s.total }
func (s fakePoolStats) MaxConns() int32          { return s.max }

func TestRecordDBPoolMetrics(t *testing.T) {
	RecordDBPoolMetrics(fakePoolStats{acquired: 3, idle: 2, constructing: 1, total: 6, max: 10})

	tests := []struct {
		state    string
		expected float64
	}{
		{"in_use", 3},
		{"idle", 2},
		{"constructing", 1},
		{"total", 6},
		{"max", 10},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.InDelta(t, tt.expected, testutil.ToFloat64(DBPoolConnections.WithLabelValues(tt.state)), 0)
		})
	}
}
