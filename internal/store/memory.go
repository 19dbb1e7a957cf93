package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lolmeida/kstack/internal/model"
)

// MemoryStore is a ConfigStore backed by an in-memory Catalog.
type MemoryStore struct {
	mu      sync.RWMutex
	catalog Catalog
}

// NewMemoryStore creates a store over a copy of the catalog's slices.
func NewMemoryStore(c *Catalog) *MemoryStore {
	s := &MemoryStore{}
	if c != nil {
		s.catalog = *c
	}
	return s
}

// Replace swaps the catalog atomically.
func (s *MemoryStore) Replace(c *Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = *c
}

func (s *MemoryStore) ListEnvironments(_ context.Context) ([]model.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	envs := append([]model.Environment(nil), s.catalog.Environments...)
	sort.SliceStable(envs, func(i, j int) bool { return envs[i].ID < envs[j].ID })
	return envs, nil
}

func (s *MemoryStore) GetEnvironment(_ context.Context, id int64) (*model.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, env := range s.catalog.Environments {
		if env.ID == id {
			env := env
			return &env, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", model.ErrEnvironmentNotFound, id)
}

func (s *MemoryStore) ListStacks(_ context.Context, environmentID int64) ([]model.Stack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stacks := make([]model.Stack, 0)
	for _, st := range s.catalog.Stacks {
		if st.EnvironmentID == environmentID {
			stacks = append(stacks, st)
		}
	}
	sort.SliceStable(stacks, func(i, j int) bool { return stacks[i].Name < stacks[j].Name })
	return stacks, nil
}

func (s *MemoryStore) GetStack(_ context.Context, environmentID int64, name string) (*model.Stack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.catalog.Stacks {
		if st.EnvironmentID == environmentID && st.Name == name {
			st := st
			return &st, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in environment %d", model.ErrStackNotFound, name, environmentID)
}

func (s *MemoryStore) ListApps(_ context.Context, stackID int64) ([]model.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]model.App, 0)
	for _, app := range s.catalog.Apps {
		if app.StackID == stackID {
			apps = append(apps, app)
		}
	}
	sort.SliceStable(apps, func(i, j int) bool {
		if apps[i].DeploymentPriority != apps[j].DeploymentPriority {
			return apps[i].DeploymentPriority < apps[j].DeploymentPriority
		}
		return apps[i].Name < apps[j].Name
	})
	return apps, nil
}

func (s *MemoryStore) ListAppManifests(_ context.Context, appID int64) ([]model.AppManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]model.AppManifest, 0)
	for _, m := range s.catalog.AppManifests {
		if m.AppID == appID {
			rows = append(rows, m)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreationPriority < rows[j].CreationPriority })
	return rows, nil
}

func (s *MemoryStore) ListManifestInstances(_ context.Context, appID int64) ([]model.ManifestInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]model.ManifestInstance, 0)
	for _, inst := range s.catalog.ManifestInstances {
		if inst.AppID == appID {
			rows = append(rows, inst)
		}
	}
	return rows, nil
}

func (s *MemoryStore) ListManifestDefaults(_ context.Context, category string) ([]model.ManifestDefault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cat, ok := s.findCategory(category)
	if !ok {
		return []model.ManifestDefault{}, nil
	}

	rows := make([]model.ManifestDefault, 0)
	for _, d := range s.catalog.ManifestDefaults {
		if d.CategoryID == cat.ID {
			rows = append(rows, d)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreationPriority < rows[j].CreationPriority })
	return rows, nil
}

func (s *MemoryStore) ListAuthDefaults(_ context.Context, category string) ([]model.AuthDefault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cat, ok := s.findCategory(category)
	if !ok {
		return []model.AuthDefault{}, nil
	}

	rows := make([]model.AuthDefault, 0)
	for _, a := range s.catalog.AuthDefaults {
		if a.CategoryID == cat.ID {
			rows = append(rows, a)
		}
	}
	return rows, nil
}

func (s *MemoryStore) GetServiceCategory(_ context.Context, name string) (*model.ServiceCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cat, ok := s.findCategory(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrCategoryNotFound, name)
	}
	return &cat, nil
}

// findCategory must be called with s.mu held.
func (s *MemoryStore) findCategory(name string) (model.ServiceCategory, bool) {
	for _, cat := range s.catalog.Categories {
		if strings.EqualFold(cat.Name, name) {
			return cat, true
		}
	}
	return model.ServiceCategory{}, false
}

var _ ConfigStore = (*MemoryStore)(nil)
