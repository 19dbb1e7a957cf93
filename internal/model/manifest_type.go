package model

import (
	"fmt"
	"strings"
)

// ManifestType names a Kubernetes object kind an App can require.
type ManifestType string

// Manifest types in declaration order. The order is the tie-break when two
// entries share a creation priority.
const (
	ManifestDeployment            ManifestType = "DEPLOYMENT"
	ManifestService               ManifestType = "SERVICE"
	ManifestIngress               ManifestType = "INGRESS"
	ManifestPersistentVolumeClaim ManifestType = "PERSISTENT_VOLUME_CLAIM"
	ManifestSecret                ManifestType = "SECRET"
	ManifestConfigMap             ManifestType = "CONFIG_MAP"
	ManifestServiceAccount        ManifestType = "SERVICE_ACCOUNT"
	ManifestClusterRole           ManifestType = "CLUSTER_ROLE"
	ManifestHPA                   ManifestType = "HPA"
)

// ManifestTypes lists every known manifest type in declaration order.
var ManifestTypes = []ManifestType{
	ManifestDeployment,
	ManifestService,
	ManifestIngress,
	ManifestPersistentVolumeClaim,
	ManifestSecret,
	ManifestConfigMap,
	ManifestServiceAccount,
	ManifestClusterRole,
	ManifestHPA,
}

// Ordinal returns the declaration index, or len(ManifestTypes) for unknown types
// so they sort after every known one.
func (t ManifestType) Ordinal() int {
	for i, known := range ManifestTypes {
		if known == t {
			return i
		}
	}
	return len(ManifestTypes)
}

// Key is the lowercase name used as the sub-block key in an App block.
func (t ManifestType) Key() string {
	return strings.ToLower(string(t))
}

// Valid reports whether t is one of the declared manifest types.
func (t ManifestType) Valid() bool {
	return t.Ordinal() < len(ManifestTypes)
}

// ParseManifestType normalizes s (case-insensitive) into a ManifestType.
func ParseManifestType(s string) (ManifestType, error) {
	t := ManifestType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown manifest type %q", ErrBadRequest, s)
	}
	return t, nil
}
