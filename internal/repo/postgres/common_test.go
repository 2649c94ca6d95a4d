package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
)

func TestBuildPatchRejectsEmptyPatch(t *testing.T) {
	_, _, err := buildPatch(map[string]any{}, propertyPatchColumns, 2)
	if err == nil {
		t.Fatalf("expected error for empty patch")
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %T", err)
	}
}

func TestBuildPatchRejectsUnknownField(t *testing.T) {
	_, _, err := buildPatch(map[string]any{"status": "active"}, propertyPatchColumns, 2)
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %T", err)
	}
	if verr.Field != "status" {
		t.Fatalf("expected field %q, got %q", "status", verr.Field)
	}
}

func TestBuildPatchNumbersArgsFromOffset(t *testing.T) {
	set, args, err := buildPatch(map[string]any{"name": "Maple Court", "city": "Boise"}, propertyPatchColumns, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Fields are sorted, so city comes first regardless of map order.
	if set != "city = $3, name = $4" {
		t.Fatalf("unexpected set fragment: %s", set)
	}
	if len(args) != 2 || args[0] != "Boise" || args[1] != "Maple Court" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildPatchEncodesMetadata(t *testing.T) {
	set, args, err := buildPatch(map[string]any{"metadata": map[string]any{"source": "import"}}, propertyPatchColumns, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set != "metadata = $3" {
		t.Fatalf("unexpected set fragment: %s", set)
	}
	encoded, ok := args[0].([]byte)
	if !ok {
		t.Fatalf("expected metadata arg to be JSON bytes, got %T", args[0])
	}
	if !strings.Contains(string(encoded), `"source":"import"`) {
		t.Fatalf("unexpected metadata encoding: %s", encoded)
	}
}

func TestBuildPatchRejectsNonObjectMetadata(t *testing.T) {
	_, _, err := buildPatch(map[string]any{"metadata": "not-an-object"}, propertyPatchColumns, 2)
	if err == nil {
		t.Fatalf("expected error for non-object metadata")
	}
}
