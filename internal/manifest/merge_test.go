package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name    string
		base    map[string]any
		overlay map[string]any
		want    map[string]any
	}{
		{
			name:    "overlay wins on scalars",
			base:    map[string]any{"replicaCount": 1, "type": "ClusterIP"},
			overlay: map[string]any{"replicaCount": 3},
			want:    map[string]any{"replicaCount": 3, "type": "ClusterIP"},
		},
		{
			name: "nested maps merge recursively",
			base: map[string]any{
				"resources": map[string]any{
					"limits":   map[string]any{"cpu": "500m", "memory": "256Mi"},
					"requests": map[string]any{"cpu": "100m"},
				},
			},
			overlay: map[string]any{
				"resources": map[string]any{
					"limits": map[string]any{"memory": "512Mi"},
				},
			},
			want: map[string]any{
				"resources": map[string]any{
					"limits":   map[string]any{"cpu": "500m", "memory": "512Mi"},
					"requests": map[string]any{"cpu": "100m"},
				},
			},
		},
		{
			name:    "lists replace by default",
			base:    map[string]any{"ports": []any{8080, 8443}},
			overlay: map[string]any{"ports": []any{9090}},
			want:    map[string]any{"ports": []any{9090}},
		},
		{
			name:    "union keys deduplicate",
			base:    map[string]any{"supportedTypes": []any{"jwt", "password"}},
			overlay: map[string]any{"supportedTypes": []string{"password", "oauth2"}},
			want:    map[string]any{"supportedTypes": []any{"jwt", "password", "oauth2"}},
		},
		{
			name:    "union key with non-scalar items replaces",
			base:    map[string]any{"accessModes": []any{"ReadWriteOnce"}},
			overlay: map[string]any{"accessModes": []any{map[string]any{"mode": "RWX"}}},
			want:    map[string]any{"accessModes": []any{map[string]any{"mode": "RWX"}}},
		},
		{
			name: "extend keys append maps",
			base: map[string]any{"extraEnv": []any{
				map[string]any{"name": "TZ", "value": "Europe/Lisbon"},
			}},
			overlay: map[string]any{"extraEnv": []any{
				map[string]any{"name": "LOG_LEVEL", "value": "debug"},
			}},
			want: map[string]any{"extraEnv": []any{
				map[string]any{"name": "TZ", "value": "Europe/Lisbon"},
				map[string]any{"name": "LOG_LEVEL", "value": "debug"},
			}},
		},
		{
			name:    "labels list normalized to map",
			base:    map[string]any{"labels": map[string]any{"app": "api"}},
			overlay: map[string]any{"labels": []any{"tier=backend", "broken"}},
			want:    map[string]any{"labels": map[string]any{"app": "api", "tier": "backend"}},
		},
		{
			name:    "new labels list becomes map",
			base:    map[string]any{},
			overlay: map[string]any{"annotations": []any{"team=platform"}},
			want:    map[string]any{"annotations": map[string]any{"team": "platform"}},
		},
		{
			name:    "non-string label values are stringified",
			base:    map[string]any{"labels": []any{"tier=backend"}},
			overlay: map[string]any{"labels": map[string]any{"version": 2, "canary": true, "weight": 0.5}},
			want: map[string]any{"labels": map[string]any{
				"tier": "backend", "version": "2", "canary": "true", "weight": "0.5",
			}},
		},
		{
			name:    "map replaced by scalar",
			base:    map[string]any{"ingress": map[string]any{"enabled": true}},
			overlay: map[string]any{"ingress": false},
			want:    map[string]any{"ingress": false},
		},
		{
			name:    "nil base",
			base:    nil,
			overlay: map[string]any{"enabled": true},
			want:    map[string]any{"enabled": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeepMerge(tt.base, tt.overlay))
		})
	}
}

func TestDeepMerge_NoMutationOfOriginals(t *testing.T) {
	base := map[string]any{"image": map[string]any{"tag": "1.0"}}
	overlay := map[string]any{"image": map[string]any{"tag": "2.0"}, "ports": []any{80}}

	result := DeepMerge(base, overlay)
	result["ports"].([]any)[0] = 81

	assert.Equal(t, map[string]any{"image": map[string]any{"tag": "1.0"}}, base)
	assert.Equal(t, []any{80}, overlay["ports"])
}

func TestOverlay_IsShallow(t *testing.T) {
	dst := map[string]any{"persistence": map[string]any{"enabled": false, "size": "1Gi"}}
	Overlay(dst, map[string]any{"persistence": map[string]any{"enabled": true}})

	assert.Equal(t, map[string]any{"persistence": map[string]any{"enabled": true}}, dst)
}

func TestDeepCopy(t *testing.T) {
	src := map[string]any{
		"labels": map[string]string{"app": "api"},
		"args":   []string{"--port", "80"},
		"nested": map[string]any{"list": []any{map[string]any{"k": "v"}}},
	}

	got := DeepCopyMap(src)
	assert.Equal(t, map[string]any{
		"labels": map[string]any{"app": "api"},
		"args":   []any{"--port", "80"},
		"nested": map[string]any{"list": []any{map[string]any{"k": "v"}}},
	}, got)

	got["nested"].(map[string]any)["list"].([]any)[0].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", src["nested"].(map[string]any)["list"].([]any)[0].(map[string]any)["k"])

	assert.Equal(t, map[string]any{}, DeepCopyMap(nil))
	assert.Nil(t, DeepCopy(nil))
}
