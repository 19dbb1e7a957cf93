// Package defaults resolves the default manifest kinds and auth blocks of a
// service category, falling back to the reserved "default" category.
package defaults

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lolmeida/kstack/internal/model"
	"github.com/lolmeida/kstack/internal/store"
)

// Entry is one default manifest kind of a category.
type Entry struct {
	ManifestType      model.ManifestType `json:"manifestType"`
	Required          bool               `json:"required"`
	CreationPriority  int                `json:"creationPriority"`
	CreationCondition string             `json:"creationCondition,omitempty"`
	DefaultConfig     map[string]any     `json:"defaultConfig,omitempty"`
}

// AuthEntry is the default configuration of one auth mechanism.
type AuthEntry struct {
	AuthType string         `json:"authType"`
	Config   map[string]any `json:"config,omitempty"`
}

// Resolver answers category default queries through a Cache. It is safe
// for concurrent use. Returned maps are shared with the cache and must not
// be mutated.
type Resolver struct {
	store store.ConfigStore
	cache *Cache
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache replaces the resolver's cache.
func WithCache(c *Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithClock sets the clock used to stamp cache entries.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.cache = NewCache(now)
	}
}

// NewResolver creates a resolver reading from s.
func NewResolver(s store.ConfigStore, opts ...Option) *Resolver {
	r := &Resolver{store: s}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewCache(nil)
	}
	return r
}

// Cache exposes the underlying cache for inspection and invalidation.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// ClearCache drops every cached category.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

// Invalidate drops one cached category.
func (r *Resolver) Invalidate(category string) {
	r.cache.Invalidate(category)
}

// Resolve returns the full cached resolution of a category.
func (r *Resolver) Resolve(ctx context.Context, category string) (*CategoryDefaults, error) {
	key := cacheKey(category)
	if key == "" {
		key = model.DefaultCategory
	}
	return r.cache.getOrLoad(key, func(key string) (*CategoryDefaults, error) {
		return r.load(ctx, key)
	})
}

// DefaultsFor returns the category's default manifest entries sorted by
// creation priority.
func (r *Resolver) DefaultsFor(ctx context.Context, category string) ([]Entry, error) {
	cd, err := r.Resolve(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(cd.Entries))
	copy(out, cd.Entries)
	return out, nil
}

// AuthTypesFor lists the auth mechanisms supported by the category.
func (r *Resolver) AuthTypesFor(ctx context.Context, category string) ([]string, error) {
	cd, err := r.Resolve(ctx, category)
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(cd.Auth))
	for _, a := range cd.Auth {
		types = append(types, a.AuthType)
	}
	return types, nil
}

// AuthConfigFor returns the default block of one auth mechanism. The auth
// type is matched case-insensitively.
func (r *Resolver) AuthConfigFor(ctx context.Context, category, authType string) (map[string]any, error) {
	cd, err := r.Resolve(ctx, category)
	if err != nil {
		return nil, err
	}
	for _, a := range cd.Auth {
		if strings.EqualFold(a.AuthType, strings.TrimSpace(authType)) {
			if a.Config == nil {
				return map[string]any{}, nil
			}
			return a.Config, nil
		}
	}
	return nil, fmt.Errorf("%w: auth type %q for category %q", model.ErrNotFound, authType, category)
}

func (r *Resolver) load(ctx context.Context, key string) (*CategoryDefaults, error) {
	cd := &CategoryDefaults{Requested: key, ManifestsFrom: key, AuthFrom: key}

	entries, err := r.activeEntries(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 && key != model.DefaultCategory {
		if entries, err = r.activeEntries(ctx, model.DefaultCategory); err != nil {
			return nil, err
		}
		cd.ManifestsFrom = model.DefaultCategory
	}
	cd.Entries = entries

	auth, err := r.activeAuth(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(auth) == 0 && key != model.DefaultCategory {
		if auth, err = r.activeAuth(ctx, model.DefaultCategory); err != nil {
			return nil, err
		}
		cd.AuthFrom = model.DefaultCategory
	}
	cd.Auth = auth

	return cd, nil
}

// categoryActive reports whether the category exists and is active.
func (r *Resolver) categoryActive(ctx context.Context, name string) (bool, error) {
	cat, err := r.store.GetServiceCategory(ctx, name)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup category %q: %w", name, err)
	}
	return cat.IsActive, nil
}

func (r *Resolver) activeEntries(ctx context.Context, name string) ([]Entry, error) {
	active, err := r.categoryActive(ctx, name)
	if err != nil || !active {
		return []Entry{}, err
	}

	rows, err := r.store.ListManifestDefaults(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list manifest defaults for %q: %w", name, err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		entries = append(entries, Entry{
			ManifestType:      row.ManifestType,
			Required:          row.Required,
			CreationPriority:  row.CreationPriority,
			CreationCondition: row.CreationCondition,
			DefaultConfig:     row.DefaultConfig,
		})
	}
	SortEntries(entries)
	return entries, nil
}

func (r *Resolver) activeAuth(ctx context.Context, name string) ([]AuthEntry, error) {
	active, err := r.categoryActive(ctx, name)
	if err != nil || !active {
		return []AuthEntry{}, err
	}

	rows, err := r.store.ListAuthDefaults(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list auth defaults for %q: %w", name, err)
	}

	auth := make([]AuthEntry, 0, len(rows))
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		auth = append(auth, AuthEntry{AuthType: row.AuthType, Config: row.DefaultConfig})
	}
	return auth, nil
}

// SortEntries orders entries by creation priority, breaking ties by
// manifest type declaration order and then by existing position.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreationPriority != entries[j].CreationPriority {
			return entries[i].CreationPriority < entries[j].CreationPriority
		}
		return entries[i].ManifestType.Ordinal() < entries[j].ManifestType.Ordinal()
	})
}
