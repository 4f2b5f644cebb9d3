package instance

import (
	"os"
	"strings"
)

// EnvWorkerID overrides the instance identifier used to name delivery loops.
const EnvWorkerID = "MAILMAVEN_WORKER_ID"

// GetID returns the configured instance id, falling back to the hostname and
// then to a fixed default.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(EnvWorkerID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "delivery"
}
