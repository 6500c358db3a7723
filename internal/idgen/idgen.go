// Package idgen generates and validates the identifiers used across
// monocanvas: user ids (externally supplied, must be validated before
// touching the filesystem), and internally generated batch/connection
// ids.
package idgen

import (
	"regexp"
	"sync/atomic"

	"github.com/google/uuid"
)

// userIDPattern anchors the accepted user_id shape to a UUID so a
// value can never be used to escape the workspace root (I1).
var userIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidUserID reports whether id is a syntactically valid UUID.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// NewUserID mints a fresh random user id.
func NewUserID() string {
	return uuid.NewString()
}

var batchCounter atomic.Int64

// NextBatchID returns a process-unique, monotonically increasing
// batch id. Batch ids are scoped to a single workspace's pending-stroke
// queue, so process-wide uniqueness is stronger than required but
// costs nothing.
func NextBatchID() int {
	return int(batchCounter.Add(1))
}

// NewGalleryID mints an id for a saved gallery entry.
func NewGalleryID() string {
	return uuid.NewString()
}

// NewConnectionID mints an id used to key a single transport connection.
func NewConnectionID() string {
	return uuid.NewString()
}
