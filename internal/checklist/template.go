package checklist

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const TemplateSchemaV1 = "parkrow.checklist.v1"

//go:embed default_template.yaml
var defaultTemplateYAML []byte

// Template describes the steps seeded onto a new onboarding checklist.
type Template struct {
	Schema string         `json:"schema" yaml:"schema"`
	Steps  []TemplateStep `json:"steps" yaml:"steps"`
}

type TemplateStep struct {
	ID       string `json:"id" yaml:"id"`
	Label    string `json:"label" yaml:"label"`
	Required bool   `json:"required" yaml:"required"`
}

// DefaultTemplate returns the embedded seven-step lease onboarding template.
func DefaultTemplate() (Template, error) {
	return ParseTemplate(defaultTemplateYAML)
}

// LoadTemplateFile reads a template override from disk, typically the path in
// LEASING_CHECKLIST_TEMPLATE.
func LoadTemplateFile(path string) (Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read template %s: %w", path, err)
	}
	tpl, err := ParseTemplate(raw)
	if err != nil {
		return Template{}, fmt.Errorf("template %s: %w", path, err)
	}
	return tpl, nil
}

func ParseTemplate(input []byte) (Template, error) {
	var tpl Template
	if err := yaml.Unmarshal(input, &tpl); err != nil {
		return Template{}, fmt.Errorf("decode template: %w", err)
	}
	if err := tpl.Validate(); err != nil {
		return Template{}, err
	}
	return tpl, nil
}

func (t Template) Validate() error {
	if strings.TrimSpace(t.Schema) != TemplateSchemaV1 {
		return fmt.Errorf("template.schema must be %q", TemplateSchemaV1)
	}
	if len(t.Steps) == 0 {
		return errors.New("template.steps must be non-empty")
	}

	seen := make(map[string]struct{}, len(t.Steps))
	for i, step := range t.Steps {
		id := strings.TrimSpace(step.ID)
		if id == "" {
			return fmt.Errorf("template.steps[%d].id is required", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("template.steps[%d].id must be unique (duplicate %q)", i, id)
		}
		seen[id] = struct{}{}

		if strings.TrimSpace(step.Label) == "" {
			return fmt.Errorf("template.steps[%d].label is required", i)
		}
	}
	return nil
}
