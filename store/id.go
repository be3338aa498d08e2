// ABOUTME: ULID generation helper using crypto/rand for time-ordered, lexically-sortable ids (order within one millisecond is random).
// ABOUTME: Centralizes id creation so every Store implementation uses the same entropy source.

package store

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string using crypto/rand entropy.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
