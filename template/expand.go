package template

import (
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\$(\w+|\{[\w.]+\})`)

// Expand replaces $VAR and ${VAR} references in s using lookup. Names are
// case sensitive and references lookup does not know are kept as written.
func Expand(s string, lookup func(name string) (string, bool)) string {
	if lookup == nil || !strings.Contains(s, "$") {
		return s
	}

	return variablePattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(ref[1:], "{"), "}")
		if value, ok := lookup(name); ok {
			return value
		}
		return ref
	})
}

// MapLookup adapts a map to the lookup function Expand expects.
func MapLookup(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	}
}
