package manifest

import (
	"fmt"
	"strings"
)

// UnionKeys are keys where scalar lists use set-union merge (no duplicates).
var UnionKeys = map[string]bool{
	"supportedTypes": true,
	"accessModes":    true,
}

// ExtendKeys are keys where lists are extended (appended) instead of replaced.
var ExtendKeys = map[string]bool{
	"extraArgs": true,
	"extraEnv":  true,
}

// stringMapKeys hold Kubernetes string maps; list forms ("k=v") are
// normalized to maps before merging.
var stringMapKeys = map[string]bool{
	"labels":      true,
	"annotations": true,
}

// DeepMerge recursively merges overlay into base and returns a new map.
// Merge semantics:
//   - UnionKeys (supportedTypes, accessModes): set union for scalar lists
//   - ExtendKeys (extraArgs, extraEnv): append lists
//   - Default: replace lists, recursive merge for maps
//   - labels/annotations are normalized from list to map before merging
//
// Values taken from overlay are deep copied; base is never modified.
func DeepMerge(base, overlay map[string]any) map[string]any {
	result := copyMap(base)

	for key, overlayValue := range overlay {
		baseValue, exists := result[key]
		if !exists {
			if stringMapKeys[key] {
				if _, isList := overlayValue.([]any); isList {
					result[key] = normalizeToDict(overlayValue)
					continue
				}
			}
			result[key] = DeepCopy(overlayValue)
			continue
		}

		if stringMapKeys[key] && isMapOrList(baseValue) && isMapOrList(overlayValue) {
			result[key] = DeepMerge(normalizeToDict(baseValue), normalizeToDict(overlayValue))
			continue
		}

		baseMap, baseIsMap := baseValue.(map[string]any)
		overlayMap, overlayIsMap := overlayValue.(map[string]any)
		if baseIsMap && overlayIsMap {
			result[key] = DeepMerge(baseMap, overlayMap)
			continue
		}

		baseList, baseIsList := toList(baseValue)
		overlayList, overlayIsList := toList(overlayValue)
		if baseIsList && overlayIsList {
			switch {
			case UnionKeys[key]:
				if union, ok := scalarUnion(baseList, overlayList); ok {
					result[key] = union
					continue
				}
				result[key] = DeepCopy(overlayValue)
			case ExtendKeys[key]:
				extended := make([]any, 0, len(baseList)+len(overlayList))
				for _, v := range baseList {
					extended = append(extended, DeepCopy(v))
				}
				for _, v := range overlayList {
					extended = append(extended, DeepCopy(v))
				}
				result[key] = extended
			default:
				result[key] = DeepCopy(overlayValue)
			}
			continue
		}

		result[key] = DeepCopy(overlayValue)
	}

	return result
}

// Overlay writes every key of src into dst without recursion.
func Overlay(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = DeepCopy(v)
	}
}

func isMapOrList(v any) bool {
	switch v.(type) {
	case map[string]any, []any, []string:
		return true
	}
	return false
}

// normalizeToDict converts list-style labels/annotations to map format.
// Input: ["app=api", "tier=web"] -> {"app": "api", "tier": "web"}
// Input: {"app": "api"} -> {"app": "api"}
func normalizeToDict(value any) map[string]any {
	result := make(map[string]any)
	switch v := value.(type) {
	case map[string]any:
		for k, val := range v {
			result[k] = scalarString(val)
		}
	case []any:
		for _, item := range v {
			s := scalarString(item)
			if idx := strings.Index(s, "="); idx > 0 {
				result[s[:idx]] = s[idx+1:]
			}
		}
	case []string:
		for _, item := range v {
			if idx := strings.Index(item, "="); idx > 0 {
				result[item[:idx]] = item[idx+1:]
			}
		}
	}
	return result
}

// toList converts []any and []string values to []any.
func toList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		result := make([]any, len(v))
		for i, s := range v {
			result[i] = s
		}
		return result, true
	default:
		return nil, false
	}
}

// scalarUnion returns the union of two lists of scalars, keeping first
// occurrence order. It reports false when either list holds a map or list.
func scalarUnion(a, b []any) ([]any, bool) {
	seen := make(map[string]bool, len(a)+len(b))
	result := make([]any, 0, len(a)+len(b))

	for _, list := range [][]any{a, b} {
		for _, item := range list {
			switch item.(type) {
			case map[string]any, []any:
				return nil, false
			}
			key := fmt.Sprintf("%T:%v", item, item)
			if !seen[key] {
				seen[key] = true
				result = append(result, item)
			}
		}
	}

	return result, true
}

// copyMap creates a shallow copy of a map.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

// DeepCopy creates a deep copy of maps and lists; scalars are returned as-is.
func DeepCopy(value any) any {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			result[k] = DeepCopy(val)
		}
		return result
	case map[string]string:
		result := make(map[string]any, len(v))
		for k, val := range v {
			result[k] = val
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = DeepCopy(val)
		}
		return result
	case []string:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = val
		}
		return result
	default:
		return value
	}
}

// DeepCopyMap deep copies a map, returning an empty map for nil.
func DeepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	return DeepCopy(m).(map[string]any)
}
