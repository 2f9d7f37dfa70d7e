// Package flow loads the intake flow document: the seed question that opens
// every new session and the department catalogue used for routing.
package flow

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Seed struct {
	Text      string   `yaml:"text"`
	InputType string   `yaml:"input_type"`
	Options   []string `yaml:"options"`
}

type Document struct {
	Seed        Seed     `yaml:"seed"`
	Departments []string `yaml:"departments"`
	// Preselected departments on a fresh tagging view.
	DefaultDepartments []string `yaml:"default_departments"`
	TitleLimit         int      `yaml:"title_limit"`
}

const defaultSeedText = "To start, what kind of project do you want to build?"

// Default is the built-in flow used when no document is configured.
func Default() Document {
	return Document{
		Seed:        Seed{Text: defaultSeedText, InputType: "text"},
		Departments: []string{"Frontend", "Backend", "Design", "Business", "DevOps", "QA"},
		TitleLimit:  40,
	}
}

// Load reads path, or returns Default when path is empty.
func Load(path string) (Document, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read flow file: %w", err)
	}
	return Parse(b)
}

// Parse decodes a flow document and fills unset fields from Default.
func Parse(b []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse flow file: %w", err)
	}
	def := Default()
	if strings.TrimSpace(doc.Seed.Text) == "" {
		doc.Seed.Text = def.Seed.Text
	}
	switch doc.Seed.InputType {
	case "":
		doc.Seed.InputType = "text"
		if len(doc.Seed.Options) > 0 {
			doc.Seed.InputType = "options"
		}
	case "text", "options":
	default:
		return Document{}, fmt.Errorf("seed input_type %q must be text or options", doc.Seed.InputType)
	}
	if doc.Seed.InputType == "options" && len(doc.Seed.Options) == 0 {
		return Document{}, fmt.Errorf("seed input_type options requires options")
	}
	if len(doc.Departments) == 0 {
		doc.Departments = def.Departments
	}
	for _, d := range doc.DefaultDepartments {
		if !contains(doc.Departments, d) {
			return Document{}, fmt.Errorf("default department %q is not in the catalogue", d)
		}
	}
	if doc.TitleLimit <= 0 {
		doc.TitleLimit = def.TitleLimit
	}
	return doc, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
