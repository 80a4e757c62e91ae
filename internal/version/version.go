// Package version reports build metadata injected via -ldflags.
package version

// Build metadata, overridden at link time:
//
//	-X github.com/bissquit/pushrelay/internal/version.Version=1.2.3
var (
	Version   = "0.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns build metadata as served by the /version endpoint.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
	}
}
