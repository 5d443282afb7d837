package instance

import (
	"os"

	"github.com/angelmondragon/sellerhub-backend/pkg/env"
)

// EnvWorkerID overrides the identifier a process reports in its logs.
const EnvWorkerID = "SELLERHUB_WORKER_ID"

// envPodName follows the usual downward-API name for the pod.
const envPodName = "POD_NAME"

// ID returns the configured instance identifier, falling back to the host
// name and finally to "<kind>-0".
func ID(kind string) string {
	if id := env.First(EnvWorkerID, envPodName); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if kind == "" {
		kind = "worker"
	}
	return kind + "-0"
}
