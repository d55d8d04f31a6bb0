package util

import (
	"os"
	"strings"
)

// GetEnvironmentVariables snapshots the process environment as a map.
func GetEnvironmentVariables() map[string]string {
	variables := map[string]string{}

	for _, entry := range os.Environ() {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}

		variables[key] = value
	}

	return variables
}
