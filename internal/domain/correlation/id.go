// Package correlation generates the opaque identifiers that tie a submitted
// search job to its eventual result across service boundaries.
package correlation

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces correlation identifiers for new jobs. Identifiers are
// globally unique, unguessable, and safe to hand to external callers.
type Generator interface {
	NewID() (string, error)
}

// UUIDGenerator issues random (version 4) UUIDs backed by crypto/rand.
type UUIDGenerator struct{}

// NewUUIDGenerator probes the entropy source once so a broken source fails
// process startup instead of the first submission.
func NewUUIDGenerator() (*UUIDGenerator, error) {
	if _, err := uuid.NewRandom(); err != nil {
		return nil, fmt.Errorf("entropy source unavailable: %w", err)
	}
	return &UUIDGenerator{}, nil
}

// NewID returns a fresh correlation id.
func (g *UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate correlation id: %w", err)
	}
	return id.String(), nil
}

// Validate reports whether a client-supplied string is a well-formed
// correlation id. Lookups with malformed ids can be rejected before they
// reach the store.
func Validate(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
