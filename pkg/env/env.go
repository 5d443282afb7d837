// Package env reads the few settings needed before config.Load has run.
package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key. Unset and blank values yield fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// First returns the first non-blank value among keys, or "".
func First(keys ...string) string {
	for _, key := range keys {
		if val := Get(key, ""); val != "" {
			return val
		}
	}
	return ""
}
