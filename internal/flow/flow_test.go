package flow

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	doc, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Seed.Text != defaultSeedText || doc.Seed.InputType != "text" {
		t.Fatalf("unexpected seed %+v", doc.Seed)
	}
	if len(doc.Departments) != 6 || doc.TitleLimit != 40 {
		t.Fatalf("unexpected defaults %+v", doc)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	content := `
seed:
  text: "Which kind of product?"
  options: ["Web app", "Mobile app"]
departments: [Platform, Research]
default_departments: [Research]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Seed.InputType != "options" || len(doc.Seed.Options) != 2 {
		t.Fatalf("unexpected seed %+v", doc.Seed)
	}
	if len(doc.Departments) != 2 || doc.DefaultDepartments[0] != "Research" {
		t.Fatalf("unexpected departments %+v", doc)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []string{
		"seed: {input_type: mixed}",
		"seed: {input_type: options}",
		"default_departments: [Legal]",
		"seed: [",
	}
	for _, c := range cases {
		if _, err := Parse([]byte(c)); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}
