// Package template renders {context.*} placeholders inside node
// configuration strings against the execution context, e.g.
// "Olá {context.name}" or a webhook body of "{context.payload}".
package template

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{context\.([a-zA-Z0-9_.-]+)\}`)

// RenderString replaces every {context.key} placeholder in input with the
// string form of the referenced value. Unknown keys render as an empty
// string; interpolation is best effort by design, conditions that must be
// strict go through pkg/expr instead.
func RenderString(input string, context map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := resolve(path, context)
		if !ok || value == nil {
			return ""
		}

		return fmt.Sprintf("%v", value)
	})
}

// RenderValue renders input, preserving the referenced value's type when
// the whole string is a single placeholder. "{context.payload}" with a map
// payload yields the map itself rather than its string form.
func RenderValue(input string, context map[string]any) any {
	trimmed := strings.TrimSpace(input)
	if placeholderPattern.MatchString(trimmed) {
		if match := placeholderPattern.FindString(trimmed); match == trimmed {
			path := placeholderPattern.FindStringSubmatch(trimmed)[1]
			if value, ok := resolve(path, context); ok {
				return value
			}

			return nil
		}
	}

	return RenderString(input, context)
}

// RenderMap deep-copies config, rendering every string value it contains.
// Nested maps and slices are walked recursively.
func RenderMap(config map[string]any, context map[string]any) map[string]any {
	rendered := make(map[string]any, len(config))
	for key, value := range config {
		rendered[key] = renderAny(value, context)
	}

	return rendered
}

func renderAny(value any, context map[string]any) any {
	switch v := value.(type) {
	case string:
		return RenderValue(v, context)
	case map[string]any:
		return RenderMap(v, context)
	case []any:
		rendered := make([]any, len(v))
		for i, item := range v {
			rendered[i] = renderAny(item, context)
		}

		return rendered
	default:
		return value
	}
}

func resolve(path string, context map[string]any) (any, bool) {
	var current any = context

	for _, part := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = object[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
