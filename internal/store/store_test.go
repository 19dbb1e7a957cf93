package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolmeida/kstack/internal/model"
)

const fixtureCatalog = `
environments:
  - {id: 1, name: dev, isActive: true}
  - {id: 3, name: prod, isActive: true}
  - {id: 2, name: staging, isActive: true}
stacks:
  - id: 10
    environmentId: 1
    name: web
    enabled: true
    config:
      domain: example.com
  - {id: 11, environmentId: 1, name: data, enabled: false}
apps:
  - {id: 100, stackId: 10, name: worker, category: api, enabled: true, deploymentPriority: 2}
  - id: 101
    stackId: 10
    name: api
    category: api
    enabled: true
    deploymentPriority: 1
    defaultImageRepository: ghcr.io/acme/api
    defaultImageTag: "1.2.3"
    defaultConfig:
      auth:
        enabled: true
    defaultPorts:
      - {name: http, port: 8080}
    healthCheckPath: /healthz
  - {id: 102, stackId: 10, name: admin, category: api, enabled: true, deploymentPriority: 1}
appManifests:
  - {id: 1, appId: 101, manifestType: ingress, required: false, creationPriority: 30, creationCondition: ingress.enabled}
  - {id: 2, appId: 101, manifestType: DEPLOYMENT, required: true, creationPriority: 10}
manifestInstances:
  - id: 1
    serviceId: 101
    kind: service
    enabled: true
    metadataName: api-svc
    metadataLabels: {tier: backend}
    spec:
      port: 80
categories:
  - {id: 1, name: default, isActive: true}
  - {id: 2, name: API, displayName: APIs, isActive: true}
manifestDefaults:
  - {id: 1, categoryId: 2, manifestType: HPA, required: false, creationPriority: 30, isActive: true}
  - {id: 2, categoryId: 2, manifestType: DEPLOYMENT, required: true, creationPriority: 10, isActive: true}
  - {id: 3, categoryId: 2, manifestType: SERVICE, required: true, creationPriority: 20, isActive: false}
  - {id: 4, categoryId: 1, manifestType: DEPLOYMENT, required: true, creationPriority: 10, isActive: true}
authDefaults:
  - id: 1
    categoryId: 2
    authType: jwt
    isActive: true
    defaultConfig:
      issuer: https://auth.example.com
`

func newFixtureCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := ParseCatalog([]byte(fixtureCatalog))
	require.NoError(t, err)
	return c
}

// storeFactories lets every contract test run against each implementation.
func storeFactories(t *testing.T) map[string]ConfigStore {
	t.Helper()
	c := newFixtureCatalog(t)

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "kstack.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	require.NoError(t, sqlite.Import(context.Background(), c))

	return map[string]ConfigStore{
		"memory": NewMemoryStore(c),
		"sqlite": sqlite,
	}
}

func TestStore_ListEnvironments(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			envs, err := s.ListEnvironments(context.Background())
			require.NoError(t, err)
			require.Len(t, envs, 3)
			assert.Equal(t, "dev", envs[0].Name)
			assert.Equal(t, "staging", envs[1].Name)
			assert.Equal(t, "prod", envs[2].Name)
		})
	}
}

func TestStore_GetEnvironment(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			env, err := s.GetEnvironment(context.Background(), 3)
			require.NoError(t, err)
			assert.Equal(t, "prod", env.Name)
			assert.True(t, env.IsActive)

			_, err = s.GetEnvironment(context.Background(), 99)
			assert.ErrorIs(t, err, model.ErrNotFound)
			assert.ErrorIs(t, err, model.ErrEnvironmentNotFound)
		})
	}
}

func TestStore_ListStacks(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			stacks, err := s.ListStacks(context.Background(), 1)
			require.NoError(t, err)
			require.Len(t, stacks, 2)
			assert.Equal(t, "data", stacks[0].Name)
			assert.False(t, stacks[0].Enabled)
			assert.Equal(t, "web", stacks[1].Name)
			assert.Equal(t, "example.com", stacks[1].Config["domain"])

			stacks, err = s.ListStacks(context.Background(), 2)
			require.NoError(t, err)
			assert.Empty(t, stacks)
		})
	}
}

func TestStore_GetStack(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			st, err := s.GetStack(context.Background(), 1, "web")
			require.NoError(t, err)
			assert.Equal(t, int64(10), st.ID)
			assert.True(t, st.Enabled)
			assert.Equal(t, "example.com", st.Config["domain"])

			disabled, err := s.GetStack(context.Background(), 1, "data")
			require.NoError(t, err)
			assert.False(t, disabled.Enabled)

			_, err = s.GetStack(context.Background(), 2, "web")
			assert.ErrorIs(t, err, model.ErrStackNotFound)
		})
	}
}

func TestStore_ListApps(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			apps, err := s.ListApps(context.Background(), 10)
			require.NoError(t, err)
			require.Len(t, apps, 3)

			names := []string{apps[0].Name, apps[1].Name, apps[2].Name}
			assert.Equal(t, []string{"admin", "api", "worker"}, names)

			api := apps[1]
			assert.Equal(t, "ghcr.io/acme/api", api.DefaultImageRepository)
			assert.Equal(t, "1.2.3", api.DefaultImageTag)
			require.NotNil(t, api.HealthCheckPath)
			assert.Equal(t, "/healthz", *api.HealthCheckPath)
			assert.Nil(t, api.ReadinessCheckPath)
			assert.NotNil(t, api.DefaultPorts)
			assert.Nil(t, api.DefaultResources)

			auth, ok := api.DefaultConfig["auth"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, true, auth["enabled"])

			empty, err := s.ListApps(context.Background(), 999)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_ListAppManifests(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			rows, err := s.ListAppManifests(context.Background(), 101)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, model.ManifestDeployment, rows[0].ManifestType)
			assert.Equal(t, model.ManifestIngress, rows[1].ManifestType)
			assert.Equal(t, "ingress.enabled", rows[1].CreationCondition)
		})
	}
}

func TestStore_ListManifestInstances(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			rows, err := s.ListManifestInstances(context.Background(), 101)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			inst := rows[0]
			assert.Equal(t, model.ManifestService, inst.Kind)
			assert.Equal(t, "api-svc", inst.MetadataName)
			assert.Equal(t, map[string]string{"tier": "backend"}, inst.MetadataLabels)
			assert.EqualValues(t, 80, inst.Spec["port"])
		})
	}
}

func TestStore_ListManifestDefaults(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			rows, err := s.ListManifestDefaults(context.Background(), "api")
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, []int{10, 20, 30}, []int{rows[0].CreationPriority, rows[1].CreationPriority, rows[2].CreationPriority})
			assert.False(t, rows[1].IsActive)

			none, err := s.ListManifestDefaults(context.Background(), "unknown")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_ListAuthDefaults(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			rows, err := s.ListAuthDefaults(context.Background(), "Api")
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "jwt", rows[0].AuthType)
			assert.Equal(t, "https://auth.example.com", rows[0].DefaultConfig["issuer"])
		})
	}
}

func TestStore_GetServiceCategory(t *testing.T) {
	for name, s := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			cat, err := s.GetServiceCategory(context.Background(), "api")
			require.NoError(t, err)
			assert.Equal(t, "API", cat.Name)
			assert.Equal(t, "APIs", cat.DisplayName)

			_, err = s.GetServiceCategory(context.Background(), "nope")
			assert.ErrorIs(t, err, model.ErrCategoryNotFound)
		})
	}
}
