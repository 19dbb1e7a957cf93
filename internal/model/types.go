// Package model holds the records read by the resolution engine and the
// document it produces.
package model

// Environment identifies a deployment target class (dev, staging, prod).
type Environment struct {
	ID       int64  `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	IsActive bool   `json:"isActive" yaml:"isActive"`
}

// Stack is a named group of Apps deployed together within one Environment.
type Stack struct {
	ID            int64  `json:"id" yaml:"id"`
	EnvironmentID int64  `json:"environmentId" yaml:"environmentId"`
	Name          string `json:"name" yaml:"name"`

	// Enabled stacks are the only ones that may be deployed.
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Config holds free-form stack settings copied into the stack block.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// App is a logical service belonging to a Stack.
type App struct {
	ID      int64  `json:"id" yaml:"id"`
	StackID int64  `json:"stackId" yaml:"stackId"`
	Name    string `json:"name" yaml:"name"`

	// Category selects the default manifest set for this App.
	Category string `json:"category" yaml:"category"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`

	// DeploymentPriority orders App iteration (ascending, ties by name).
	DeploymentPriority int `json:"deploymentPriority" yaml:"deploymentPriority"`

	DefaultImageRepository string `json:"defaultImageRepository" yaml:"defaultImageRepository"`
	DefaultImageTag        string `json:"defaultImageTag" yaml:"defaultImageTag"`

	// DefaultConfig is copied shallowly as the base of the App block.
	DefaultConfig map[string]any `json:"defaultConfig,omitempty" yaml:"defaultConfig,omitempty"`

	// DefaultPorts and DefaultResources are arbitrary JSON; nil means absent.
	DefaultPorts     any `json:"defaultPorts,omitempty" yaml:"defaultPorts,omitempty"`
	DefaultResources any `json:"defaultResources,omitempty" yaml:"defaultResources,omitempty"`

	HealthCheckPath    *string `json:"healthCheckPath,omitempty" yaml:"healthCheckPath,omitempty"`
	ReadinessCheckPath *string `json:"readinessCheckPath,omitempty" yaml:"readinessCheckPath,omitempty"`
}

// AppManifest records that an App needs a given manifest kind.
type AppManifest struct {
	ID                int64          `json:"id" yaml:"id"`
	AppID             int64          `json:"appId" yaml:"appId"`
	ManifestType      ManifestType   `json:"manifestType" yaml:"manifestType"`
	Required          bool           `json:"required" yaml:"required"`
	CreationPriority  int            `json:"creationPriority" yaml:"creationPriority"`
	DefaultConfig     map[string]any `json:"defaultConfig,omitempty" yaml:"defaultConfig,omitempty"`
	TemplateOverrides map[string]any `json:"templateOverrides,omitempty" yaml:"templateOverrides,omitempty"`
	CreationCondition string         `json:"creationCondition,omitempty" yaml:"creationCondition,omitempty"`
	Description       string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// ManifestInstance is a concrete per-App record for one manifest kind
// (Deployment, K8sService, Ingress, ...). Kind-specific fields live in Spec.
type ManifestInstance struct {
	ID             int64             `json:"id" yaml:"id"`
	AppID          int64             `json:"serviceId" yaml:"serviceId"`
	Kind           ManifestType      `json:"kind" yaml:"kind"`
	Enabled        bool              `json:"enabled" yaml:"enabled"`
	MetadataName   string            `json:"metadataName,omitempty" yaml:"metadataName,omitempty"`
	MetadataLabels map[string]string `json:"metadataLabels,omitempty" yaml:"metadataLabels,omitempty"`
	Component      string            `json:"component,omitempty" yaml:"component,omitempty"`
	Annotations    map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Spec           map[string]any    `json:"spec,omitempty" yaml:"spec,omitempty"`
}

// ServiceCategory groups Apps for default resolution.
type ServiceCategory struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	IsActive    bool   `json:"isActive" yaml:"isActive"`
}

// DefaultCategory is the universal fallback category name.
const DefaultCategory = "default"

// ManifestDefault is a category's template for one manifest kind.
type ManifestDefault struct {
	ID                int64          `json:"id" yaml:"id"`
	CategoryID        int64          `json:"categoryId" yaml:"categoryId"`
	ManifestType      ManifestType   `json:"manifestType" yaml:"manifestType"`
	Required          bool           `json:"required" yaml:"required"`
	CreationPriority  int            `json:"creationPriority" yaml:"creationPriority"`
	CreationCondition string         `json:"creationCondition,omitempty" yaml:"creationCondition,omitempty"`
	DefaultConfig     map[string]any `json:"defaultConfig,omitempty" yaml:"defaultConfig,omitempty"`
	IsActive          bool           `json:"isActive" yaml:"isActive"`
}

// AuthDefault is a per-category default block for one auth mechanism.
type AuthDefault struct {
	ID            int64          `json:"id" yaml:"id"`
	CategoryID    int64          `json:"categoryId" yaml:"categoryId"`
	AuthType      string         `json:"authType" yaml:"authType"`
	DefaultConfig map[string]any `json:"defaultConfig,omitempty" yaml:"defaultConfig,omitempty"`
	IsActive      bool           `json:"isActive" yaml:"isActive"`
}

// Document is a merged values tree, equivalent to a Helm values.yaml.
type Document = map[string]any
