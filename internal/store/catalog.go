package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lolmeida/kstack/internal/model"
)

// Catalog is the YAML seed format shared by the memory and SQLite stores.
//
//	environments:
//	  - {id: 1, name: dev, isActive: true}
//	stacks:
//	  - {id: 1, environmentId: 1, name: web, enabled: true}
//	apps:
//	  - {id: 1, stackId: 1, name: api, category: api, enabled: true}
//	categories:
//	  - {id: 1, name: default, isActive: true}
//	manifestDefaults:
//	  - {categoryId: 1, manifestType: DEPLOYMENT, required: true, creationPriority: 10, isActive: true}
type Catalog struct {
	Environments      []model.Environment      `yaml:"environments"`
	Stacks            []model.Stack            `yaml:"stacks"`
	Apps              []model.App              `yaml:"apps"`
	AppManifests      []model.AppManifest      `yaml:"appManifests"`
	ManifestInstances []model.ManifestInstance `yaml:"manifestInstances"`
	Categories        []model.ServiceCategory  `yaml:"categories"`
	ManifestDefaults  []model.ManifestDefault  `yaml:"manifestDefaults"`
	AuthDefaults      []model.AuthDefault      `yaml:"authDefaults"`
}

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(content)
}

// ParseCatalog parses catalog YAML, normalizes manifest type names and
// validates uniqueness constraints.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) normalize() error {
	for i := range c.AppManifests {
		t, err := model.ParseManifestType(string(c.AppManifests[i].ManifestType))
		if err != nil {
			return fmt.Errorf("appManifests[%d]: %w", i, err)
		}
		c.AppManifests[i].ManifestType = t
	}
	for i := range c.ManifestInstances {
		t, err := model.ParseManifestType(string(c.ManifestInstances[i].Kind))
		if err != nil {
			return fmt.Errorf("manifestInstances[%d]: %w", i, err)
		}
		c.ManifestInstances[i].Kind = t
	}
	for i := range c.ManifestDefaults {
		t, err := model.ParseManifestType(string(c.ManifestDefaults[i].ManifestType))
		if err != nil {
			return fmt.Errorf("manifestDefaults[%d]: %w", i, err)
		}
		c.ManifestDefaults[i].ManifestType = t
	}
	return nil
}

// Validate checks the uniqueness invariants of the data model.
func (c *Catalog) Validate() error {
	var errs []error

	envIDs := make(map[int64]bool, len(c.Environments))
	for _, env := range c.Environments {
		if envIDs[env.ID] {
			errs = append(errs, fmt.Errorf("duplicate environment id %d", env.ID))
		}
		envIDs[env.ID] = true
	}

	stackKeys := make(map[string]bool, len(c.Stacks))
	for _, s := range c.Stacks {
		if !envIDs[s.EnvironmentID] {
			errs = append(errs, fmt.Errorf("stack %q references unknown environment %d", s.Name, s.EnvironmentID))
		}
		key := fmt.Sprintf("%d/%s", s.EnvironmentID, s.Name)
		if stackKeys[key] {
			errs = append(errs, fmt.Errorf("duplicate stack %q in environment %d", s.Name, s.EnvironmentID))
		}
		stackKeys[key] = true
	}

	categoryNames := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		name := strings.ToLower(cat.Name)
		if categoryNames[name] {
			errs = append(errs, fmt.Errorf("duplicate category %q", cat.Name))
		}
		categoryNames[name] = true
	}

	defaultKeys := make(map[string]bool, len(c.ManifestDefaults))
	for _, d := range c.ManifestDefaults {
		key := fmt.Sprintf("%d/%s", d.CategoryID, d.ManifestType)
		if defaultKeys[key] {
			errs = append(errs, fmt.Errorf("duplicate manifest default %s for category %d", d.ManifestType, d.CategoryID))
		}
		defaultKeys[key] = true
	}

	manifestKeys := make(map[string]bool, len(c.AppManifests))
	for _, m := range c.AppManifests {
		key := fmt.Sprintf("%d/%s", m.AppID, m.ManifestType)
		if manifestKeys[key] {
			errs = append(errs, fmt.Errorf("duplicate app manifest %s for app %d", m.ManifestType, m.AppID))
		}
		manifestKeys[key] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: invalid catalog: %w", model.ErrBadRequest, errors.Join(errs...))
	}
	return nil
}
