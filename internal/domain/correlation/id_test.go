package correlation

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerator_NewID(t *testing.T) {
	gen, err := NewUUIDGenerator()
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	id, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("expected a valid uuid, got %q: %v", id, err)
	}
	if parsed.Version() != 4 {
		t.Errorf("expected version 4 uuid, got v%d", parsed.Version())
	}
}

func TestUUIDGenerator_NewID_Unique(t *testing.T) {
	gen, err := NewUUIDGenerator()
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	seen := make(map[string]bool)
	for range 1000 {
		id, err := gen.NewID()
		if err != nil {
			t.Fatalf("NewID: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestValidate(t *testing.T) {
	gen, err := NewUUIDGenerator()
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}
	id, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}

	if !Validate(id) {
		t.Errorf("expected generated id %q to validate", id)
	}
	if Validate("not-a-uuid") {
		t.Error("expected malformed id to fail validation")
	}
	if Validate("") {
		t.Error("expected empty id to fail validation")
	}
}
