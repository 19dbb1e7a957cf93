package manifest

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// placeholder matches ${name} in the fixed defaulting table, e.g. the
// ingress host "${app}.lolmeida.com".
var placeholder = regexp.MustCompile(`\$\{(\w+)\}`)

// Interpolate expands the ${name} placeholders of s from vars. Every
// unknown name is reported, in order of first use.
func Interpolate(s string, vars map[string]any) (string, error) {
	matches := placeholder.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var (
		b       strings.Builder
		missing []string
		last    int
	)
	for _, m := range matches {
		name := s[m[2]:m[3]]
		b.WriteString(s[last:m[0]])
		last = m[1]

		v, ok := vars[name]
		if !ok {
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			continue
		}
		b.WriteString(scalarString(v))
	}
	b.WriteString(s[last:])

	if len(missing) > 0 {
		return "", fmt.Errorf("missing variables: ${%s}", strings.Join(missing, "}, ${"))
	}
	return b.String(), nil
}

// InterpolateMap returns a copy of data with every string leaf expanded.
// Keys are never expanded; errors name the key path of the failing leaf.
func InterpolateMap(data map[string]any, vars map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for k, v := range data {
		expanded, err := interpolateValue(v, vars)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = expanded
	}
	return out, nil
}

func interpolateValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return Interpolate(val, vars)
	case map[string]any:
		return InterpolateMap(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := interpolateValue(item, vars)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return DeepCopy(v), nil
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
