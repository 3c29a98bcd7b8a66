// Package traceid generates the per-invocation trace identifier returned to
// callers of POST /run, matching the Rust original's
// Uuid::now_v7().simple() — a UUIDv7 (time-ordered) rendered without
// hyphens.
package traceid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh UUIDv7, hyphen-stripped.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system clock/random source is
		// unavailable; fall back to a v4 identifier rather than panicking
		// a request handler.
		id = uuid.New()
	}
	return strings.ReplaceAll(id.String(), "-", "")
}
