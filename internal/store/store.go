// Package store provides read access to the environment, stack, app and
// category records consumed by the resolution engine.
package store

import (
	"context"

	"github.com/lolmeida/kstack/internal/model"
)

// ConfigStore is the read-only persistence contract. Implementations return
// errors wrapping model.ErrNotFound for missing single records and empty
// slices (never an error) for list queries that match nothing.
type ConfigStore interface {
	// ListEnvironments returns all environments ordered by id.
	ListEnvironments(ctx context.Context) ([]model.Environment, error)

	GetEnvironment(ctx context.Context, id int64) (*model.Environment, error)

	// ListStacks returns the stacks of an environment ordered by name.
	ListStacks(ctx context.Context, environmentID int64) ([]model.Stack, error)

	// GetStack resolves a stack by its unique (environmentID, name) pair.
	GetStack(ctx context.Context, environmentID int64, name string) (*model.Stack, error)

	// ListApps returns the stack's apps sorted by (DeploymentPriority, Name).
	ListApps(ctx context.Context, stackID int64) ([]model.App, error)

	// ListAppManifests returns the app's manifest rows sorted by CreationPriority.
	ListAppManifests(ctx context.Context, appID int64) ([]model.AppManifest, error)

	// ListManifestInstances returns the per-kind instance records of an app.
	ListManifestInstances(ctx context.Context, appID int64) ([]model.ManifestInstance, error)

	// ListManifestDefaults returns the rows of a category (case-insensitive)
	// sorted by CreationPriority, inactive rows included.
	ListManifestDefaults(ctx context.Context, category string) ([]model.ManifestDefault, error)

	// ListAuthDefaults returns the auth rows of a category (case-insensitive).
	ListAuthDefaults(ctx context.Context, category string) ([]model.AuthDefault, error)

	GetServiceCategory(ctx context.Context, name string) (*model.ServiceCategory, error)
}
