package manifest

import (
	"strings"

	"github.com/lolmeida/kstack/internal/model"
)

// Document-level constants.
const (
	// ProdEnvironment is the environment whose namespace is pinned.
	ProdEnvironment = "prod"

	// ProdNamespace is the namespace used for the prod environment.
	ProdNamespace = "lolmeida"

	// Timezone is written to global.timezone for every stack.
	Timezone = "Europe/Lisbon"

	// StackSuffix is appended to the stack name to form the stack block key.
	StackSuffix = "Stack"
)

// FixedDefaults is overlaid on an included manifest sub-block after the
// entry's default config. String values may reference ${app}, ${stack}, ${env} and ${namespace}.
var FixedDefaults = map[model.ManifestType]map[string]any{
	model.ManifestDeployment: {
		"replicaCount":    1,
		"imagePullPolicy": "IfNotPresent",
	},
	model.ManifestService: {
		"type": "ClusterIP",
	},
	model.ManifestIngress: {
		"className": "nginx",
		"host":      "${app}.lolmeida.com",
		"annotations": map[string]any{
			"kubernetes.io/ingress.class":    "nginx",
			"cert-manager.io/cluster-issuer": "letsencrypt-prod",
		},
	},
	model.ManifestPersistentVolumeClaim: {
		"accessMode": "ReadWriteOnce",
		"size":       "2Gi",
	},
	model.ManifestHPA: {
		"minReplicas":                    1,
		"maxReplicas":                    2,
		"targetCPUUtilizationPercentage": 70,
	},
}

// Entry is one manifest kind resolved for an App: category defaults
// overlaid by the App's own AppManifest row.
type Entry struct {
	ManifestType      model.ManifestType
	Required          bool
	CreationPriority  int
	CreationCondition string
	DefaultConfig     map[string]any
	TemplateOverrides map[string]any
}

// ToggleBlocks names the App config block whose settings feed a kind's
// sub-block. The creation conditions read their flags from these blocks.
var ToggleBlocks = map[model.ManifestType]string{
	model.ManifestIngress:               "ingress",
	model.ManifestPersistentVolumeClaim: "persistence",
	model.ManifestHPA:                   "hpa",
	model.ManifestServiceAccount:        "serviceAccount",
}

// StackKey returns the top-level key of a stack block, e.g. "webStack".
func StackKey(stackName string) string {
	return stackName + StackSuffix
}

// Namespace returns the target namespace for an environment name.
func Namespace(envName string) string {
	if strings.EqualFold(envName, ProdEnvironment) {
		return ProdNamespace
	}
	return envName
}
