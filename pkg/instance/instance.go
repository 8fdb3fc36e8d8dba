// Package instance names the running process in logs so overlapping triggers
// from different replicas can be told apart.
package instance

import (
	"os"
	"strings"

	"github.com/mutirao/castracao-backend/pkg/env"
)

const EnvInstanceID = "MUTIRAO_INSTANCE_ID"

// GetID prefers the explicit instance id, then the platform dyno name, then the hostname.
func GetID() string {
	if id := env.Get(EnvInstanceID, ""); id != "" {
		return id
	}
	if dyno := strings.TrimSpace(os.Getenv("DYNO")); dyno != "" {
		return dyno
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
