// Package catalog holds the test templates a user can start following.
// Templates ship embedded and can be replaced by a YAML file on disk.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skintrack/server/internal/models"
)

//go:embed templates.yaml
var embeddedTemplates []byte

// ErrTemplateNotFound is returned for an unknown template id
var ErrTemplateNotFound = errors.New("test template not found")

// Template is a reusable test definition
type Template struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Description  string            `json:"description,omitempty" yaml:"description"`
	DurationDays int               `json:"durationDays" yaml:"durationDays"`
	Questions    []models.Question `json:"questions" yaml:"questions"`
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// Catalog is an immutable, ordered set of templates
type Catalog struct {
	templates []Template
	byID      map[string]int
}

// Load reads templates from path. An empty path, or a path that does not
// exist, falls back to the embedded templates.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(embeddedTemplates)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Parse(embeddedTemplates)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Default returns the embedded catalog
func Default() *Catalog {
	c, err := Parse(embeddedTemplates)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML template document
func Parse(data []byte) (*Catalog, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	c := &Catalog{byID: make(map[string]int, len(file.Templates))}
	for _, t := range file.Templates {
		if strings.TrimSpace(t.ID) == "" {
			return nil, errors.New("template id cannot be empty")
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("template %q: %w", t.ID, models.ErrEmptyTestName)
		}
		if t.DurationDays < 0 {
			return nil, fmt.Errorf("template %q: %w", t.ID, models.ErrInvalidDuration)
		}
		if err := (models.FormStructure{Questions: t.Questions}).Validate(); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.ID, err)
		}

		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}

	return c, nil
}

// List returns the templates in file order
func (c *Catalog) List() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Get returns a template by id
func (c *Catalog) Get(id string) (Template, error) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return c.templates[i], nil
}

// NewTest instantiates the template as an active test for ownerID
// starting at start. A zero duration leaves the default length.
func (t Template) NewTest(ownerID string, start time.Time) (*models.Test, error) {
	var description *string
	if t.Description != "" {
		d := t.Description
		description = &d
	}

	var duration *int
	if t.DurationDays > 0 {
		d := t.DurationDays
		duration = &d
	}

	questions := make([]models.Question, len(t.Questions))
	copy(questions, t.Questions)

	return models.NewTest(ownerID, t.Name, description, models.FormStructure{Questions: questions}, start, duration, nil)
}
