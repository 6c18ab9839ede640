package instance

import (
	"os"

	"github.com/orro3790/drive-sub008/pkg/env"
)

// GetID identifies this process in logs: DRIVE_INSTANCE_ID (or the
// orchestrator's K_REVISION / POD_NAME), then the hostname.
func GetID() string {
	if id := env.First("DRIVE_INSTANCE_ID", "POD_NAME", "K_REVISION"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
