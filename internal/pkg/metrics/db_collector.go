package metrics

// PoolStats is the subset of *pgxpool.Stat exported as gauges.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	ConstructingConns() int32
	TotalConns() int32
	MaxConns() int32
}

// RecordDBPoolMetrics publishes a pool snapshot, e.g. metrics.RecordDBPoolMetrics(pool.Stat()).
func RecordDBPoolMetrics(stats PoolStats) {
	for state, n := range map[string]int32{
		"in_use":       stats.AcquiredConns(),
		"idle":         stats.IdleConns(),
		"constructing": stats.ConstructingConns(),
		"total":        stats.TotalConns(),
		"max":          stats.MaxConns(),
	} {
		DBPoolConnections.WithLabelValues(state).Set(float64(n))
	}
}
