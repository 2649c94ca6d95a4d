package checklist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
)

var testNow = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

func TestDefaultTemplate(t *testing.T) {
	tpl, err := DefaultTemplate()
	if err != nil {
		t.Fatalf("DefaultTemplate() error = %v", err)
	}
	if len(tpl.Steps) != 7 {
		t.Fatalf("len(Steps) = %d, want 7", len(tpl.Steps))
	}
	wantIDs := []string{
		"application_approved",
		"lease_terms_defined",
		"lease_document_generated",
		"lease_signed",
		"deposit_collected",
		"utilities_transferred",
		"move_in_completed",
	}
	for i, id := range wantIDs {
		if tpl.Steps[i].ID != id {
			t.Errorf("Steps[%d].ID = %q, want %q", i, tpl.Steps[i].ID, id)
		}
		if !tpl.Steps[i].Required {
			t.Errorf("Steps[%d] (%s) should be required", i, id)
		}
	}
}

func TestSeedPreCompletesApproval(t *testing.T) {
	tpl, err := DefaultTemplate()
	if err != nil {
		t.Fatalf("DefaultTemplate() error = %v", err)
	}
	steps := Seed(tpl, testNow)

	completed, total := Counts(steps)
	if total != 7 || completed != 1 {
		t.Fatalf("Counts = (%d, %d), want (1, 7)", completed, total)
	}
	if !steps[0].Completed || steps[0].ID != StepApplicationApproved {
		t.Errorf("step 0 = %+v, want completed application_approved", steps[0])
	}
	if steps[0].CompletedAt == nil || !steps[0].CompletedAt.Equal(testNow) {
		t.Errorf("step 0 CompletedAt = %v, want %v", steps[0].CompletedAt, testNow)
	}
	for _, step := range steps[1:] {
		if step.Completed || step.CompletedAt != nil {
			t.Errorf("step %s should start incomplete", step.ID)
		}
	}
}

func TestSeedCustomTemplateWithoutApprovalStep(t *testing.T) {
	tpl := Template{
		Schema: TemplateSchemaV1,
		Steps: []TemplateStep{
			{ID: "keys_cut", Label: "Keys cut", Required: true},
			{ID: "parking_assigned", Label: "Parking assigned"},
		},
	}
	if err := tpl.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	steps := Seed(tpl, testNow)
	completed, total := Counts(steps)
	if total != 2 || completed != 0 {
		t.Fatalf("Counts = (%d, %d), want (0, 2)", completed, total)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 7, 0},
		{1, 7, 14},
		{1, 3, 33},
		{2, 3, 67},
		{7, 10, 70},
		{1, 8, 13},
		{7, 7, 100},
	}
	for _, tc := range tests {
		if got := Progress(tc.completed, tc.total); got != tc.want {
			t.Errorf("Progress(%d, %d) = %d, want %d", tc.completed, tc.total, got, tc.want)
		}
	}
}

func TestApply(t *testing.T) {
	tpl, err := DefaultTemplate()
	if err != nil {
		t.Fatalf("DefaultTemplate() error = %v", err)
	}
	steps := Seed(tpl, testNow)

	notes := "cashier's check received"
	later := testNow.Add(2 * time.Hour)
	updated, err := Apply(steps, "deposit_collected", true, &notes, later)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	step := findStep(t, updated, "deposit_collected")
	if !step.Completed {
		t.Fatal("deposit_collected should be completed")
	}
	if step.CompletedAt == nil || !step.CompletedAt.Equal(later) {
		t.Errorf("CompletedAt = %v, want %v", step.CompletedAt, later)
	}
	if step.Notes != notes {
		t.Errorf("Notes = %q, want %q", step.Notes, notes)
	}

	// Input slice must stay untouched.
	for _, s := range steps {
		if s.ID == "deposit_collected" && s.Completed {
			t.Error("Apply mutated its input")
		}
	}

	reopened, err := Apply(updated, "deposit_collected", false, nil, later.Add(time.Hour))
	if err != nil {
		t.Fatalf("Apply() reopen error = %v", err)
	}
	step = findStep(t, reopened, "deposit_collected")
	if step.Completed || step.CompletedAt != nil {
		t.Errorf("reopened step = %+v, want incomplete with nil CompletedAt", step)
	}
	if step.Notes != notes {
		t.Errorf("nil notes must leave notes untouched, got %q", step.Notes)
	}
}

func findStep(t *testing.T, steps []domain.ChecklistStep, id string) domain.ChecklistStep {
	t.Helper()
	for _, s := range steps {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("step %s not found", id)
	return domain.ChecklistStep{}
}

func TestApplyUnknownStep(t *testing.T) {
	tpl, err := DefaultTemplate()
	if err != nil {
		t.Fatalf("DefaultTemplate() error = %v", err)
	}
	_, err = Apply(Seed(tpl, testNow), "paint_walls", true, nil, testNow)
	if !errors.Is(err, ErrStepNotFound) {
		t.Fatalf("Apply() error = %v, want ErrStepNotFound", err)
	}
}

func TestMissingRequired(t *testing.T) {
	tpl, err := DefaultTemplate()
	if err != nil {
		t.Fatalf("DefaultTemplate() error = %v", err)
	}
	steps := Seed(tpl, testNow)
	if got := MissingRequired(steps); got != 6 {
		t.Fatalf("MissingRequired = %d, want 6", got)
	}

	for _, id := range []string{"lease_terms_defined", "lease_document_generated", "lease_signed", "deposit_collected", "utilities_transferred", "move_in_completed"} {
		steps, err = Apply(steps, id, true, nil, testNow)
		if err != nil {
			t.Fatalf("Apply(%s) error = %v", id, err)
		}
	}
	if got := MissingRequired(steps); got != 0 {
		t.Fatalf("MissingRequired after completing all = %d, want 0", got)
	}
}

func TestTemplateValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "wrong schema",
			yaml:    "schema: other.v1\nsteps:\n  - id: a\n    label: A\n",
			wantErr: "template.schema",
		},
		{
			name:    "no steps",
			yaml:    "schema: parkrow.checklist.v1\nsteps: []\n",
			wantErr: "must be non-empty",
		},
		{
			name:    "duplicate id",
			yaml:    "schema: parkrow.checklist.v1\nsteps:\n  - id: a\n    label: A\n  - id: a\n    label: B\n",
			wantErr: "must be unique",
		},
		{
			name:    "missing label",
			yaml:    "schema: parkrow.checklist.v1\nsteps:\n  - id: a\n    label: \"\"\n",
			wantErr: "label is required",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("ParseTemplate() = nil error, want containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadTemplateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.yaml")
	content := "schema: parkrow.checklist.v1\nsteps:\n  - id: keys_cut\n    label: Keys cut\n    required: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}
	tpl, err := LoadTemplateFile(path)
	if err != nil {
		t.Fatalf("LoadTemplateFile() error = %v", err)
	}
	if len(tpl.Steps) != 1 || tpl.Steps[0].ID != "keys_cut" {
		t.Fatalf("unexpected template: %+v", tpl)
	}

	if _, err := LoadTemplateFile(path + ".missing"); err == nil {
		t.Fatal("LoadTemplateFile() on missing file should error")
	}
}
