package llm

import (
	"fmt"
	"sort"
	"strings"
)

// LintSchema checks a schema against the strict structured-output subset: no oneOf/anyOf/allOf,
// and every object with properties sets additionalProperties to false and lists every property
// key in required.
func LintSchema(name string, schema map[string]any) error {
	if schema == nil {
		return fmt.Errorf("schema is nil")
	}
	path := strings.TrimSpace(name)
	if path == "" {
		path = "$"
	}
	return lintNode(schema, path)
}

func lintNode(node any, path string) error {
	m, ok := node.(map[string]any)
	if !ok || m == nil {
		return nil
	}
	for _, key := range []string{"oneOf", "anyOf", "allOf"} {
		if _, ok := m[key]; ok {
			return fmt.Errorf("%s: %s is not permitted", path, key)
		}
	}
	if items, ok := m["items"]; ok {
		if err := lintNode(items, path+".items"); err != nil {
			return err
		}
	}

	propsAny, hasProps := m["properties"]
	if !hasProps || propsAny == nil {
		return nil
	}
	props, ok := propsAny.(map[string]any)
	if !ok {
		return fmt.Errorf("%s: properties must be an object", path)
	}
	if ap, ok := m["additionalProperties"]; !ok || ap != false {
		return fmt.Errorf("%s: additionalProperties must be false", path)
	}

	required, err := requiredKeys(m["required"])
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	var missing, extra []string
	for k := range props {
		if !required[k] {
			missing = append(missing, k)
		}
	}
	for k := range required {
		if _, ok := props[k]; !ok {
			extra = append(extra, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%s: required missing keys: %v", path, missing)
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("%s: required includes unknown keys: %v", path, extra)
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := lintNode(props[k], path+".properties."+k); err != nil {
			return err
		}
	}
	return nil
}

func requiredKeys(v any) (map[string]bool, error) {
	out := map[string]bool{}
	switch arr := v.(type) {
	case nil:
		return nil, fmt.Errorf("required must list every key in properties")
	case []string:
		for _, k := range arr {
			if k = strings.TrimSpace(k); k != "" {
				out[k] = true
			}
		}
	case []any:
		for _, k := range arr {
			if s := strings.TrimSpace(fmt.Sprint(k)); s != "" {
				out[s] = true
			}
		}
	default:
		return nil, fmt.Errorf("required must be an array")
	}
	return out, nil
}
