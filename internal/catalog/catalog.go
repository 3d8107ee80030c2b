// Package catalog declares where every raw dataset lives and how it is laid out.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"energy-analytics/internal/models"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is the declarative description of all analysis inputs.
// Optional sections left out of the YAML stay nil and their pipelines are skipped.
// EUPrices, Substitution and Sustainable are read as whole tables addressed by header
// name, so they take no key_column or value_column.
type Catalog struct {
	LCOE         LCOE               `yaml:"lcoe"`
	EUPrices     *models.SourceSpec `yaml:"eu_prices,omitempty"`
	Mortality    *models.SourceSpec `yaml:"mortality,omitempty"`
	Substitution *models.SourceSpec `yaml:"substitution,omitempty"`
	Sustainable  *models.SourceSpec `yaml:"sustainable,omitempty"`
}

// LCOE declares the levelized-cost comparison
type LCOE struct {
	RequiredCategories int                 `yaml:"required_categories"`
	TopN               int                 `yaml:"top_n"`
	Activity           models.SourceSpec   `yaml:"activity"`
	Sources            []models.SourceSpec `yaml:"sources"`
}

// Default returns the built-in catalog matching the published dataset layout
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path selects the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every declaration without touching the files
func (c *Catalog) Validate() error {
	l := c.LCOE
	if l.RequiredCategories < 1 || l.RequiredCategories > len(models.Categories) {
		return &models.ValidationError{
			Field:   "required_categories",
			Message: fmt.Sprintf("required_categories must be between 1 and %d", len(models.Categories)),
		}
	}
	if l.TopN < 0 {
		return &models.ValidationError{Field: "top_n", Message: "top_n must not be negative"}
	}
	if err := l.Activity.Validate(); err != nil {
		return fmt.Errorf("activity: %w", err)
	}
	if len(l.Sources) == 0 {
		return &models.ValidationError{Field: "sources", Message: "at least one LCOE source is required"}
	}

	seen := make(map[string]bool)
	for i := range c.LCOE.Sources {
		s := &c.LCOE.Sources[i]
		if err := s.Validate(); err != nil {
			return err
		}
		// hand-written catalogs may use any letter case
		cat, err := models.ParseCategory(string(s.Category))
		if err != nil {
			return fmt.Errorf("source %s: %w", s.Name, err)
		}
		s.Category = cat
		if seen[s.Name] {
			return &models.ValidationError{Field: "name", Value: s.Name, Message: fmt.Sprintf("duplicate source name %q", s.Name)}
		}
		seen[s.Name] = true
	}

	for _, s := range c.optional() {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	for _, s := range c.wholeTables() {
		if s.Key != (models.ColumnRef{}) || s.Value != (models.ColumnRef{}) {
			return &models.ValidationError{
				Field:   "key_column",
				Value:   s.Name,
				Message: fmt.Sprintf("source %s: whole-table sections take no key_column or value_column", s.Name),
			}
		}
	}
	return nil
}

// WithDataDir returns a copy whose relative paths are rooted at dir
func (c *Catalog) WithDataDir(dir string) *Catalog {
	out := *c
	out.LCOE.Activity.Path = resolve(dir, c.LCOE.Activity.Path)
	out.LCOE.Sources = make([]models.SourceSpec, len(c.LCOE.Sources))
	for i, s := range c.LCOE.Sources {
		s.Path = resolve(dir, s.Path)
		out.LCOE.Sources[i] = s
	}
	out.EUPrices = resolveSpec(dir, c.EUPrices)
	out.Mortality = resolveSpec(dir, c.Mortality)
	out.Substitution = resolveSpec(dir, c.Substitution)
	out.Sustainable = resolveSpec(dir, c.Sustainable)
	return &out
}

// Sources lists every declared source, LCOE first
func (c *Catalog) Sources() []models.SourceSpec {
	out := []models.SourceSpec{c.LCOE.Activity}
	out = append(out, c.LCOE.Sources...)
	for _, s := range c.optional() {
		out = append(out, *s)
	}
	return out
}

func (c *Catalog) optional() []*models.SourceSpec {
	var out []*models.SourceSpec
	for _, s := range []*models.SourceSpec{c.EUPrices, c.Mortality, c.Substitution, c.Sustainable} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) wholeTables() []*models.SourceSpec {
	var out []*models.SourceSpec
	for _, s := range []*models.SourceSpec{c.EUPrices, c.Substitution, c.Sustainable} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func resolveSpec(dir string, s *models.SourceSpec) *models.SourceSpec {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Path = resolve(dir, s.Path)
	return &cp
}

func resolve(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, filepath.FromSlash(path))
}
