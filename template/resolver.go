package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// nullValue replaces a placeholder whose parameter is declared without value.
const nullValue = "null"

var (
	// Both braces are optional on their own, so "$NAME}" and "${NAME" match
	// together with the stray brace.
	placeholderPattern = regexp.MustCompile(`\$\{?(\w+)\}?`)

	lineBreakPattern = regexp.MustCompile(`\r?\n`)
)

// ResolveRaw replaces every placeholder of tmpl.
//
// A placeholder naming an unknown parameter is left untouched, a parameter
// declared without value is rendered as null, any other value is inserted
// verbatim.
func ResolveRaw(params Parameters, tmpl string) string {
	matches := placeholderPattern.FindAllStringSubmatchIndex(tmpl, -1)
	if len(matches) == 0 {
		return tmpl
	}

	var sb strings.Builder
	sb.Grow(len(tmpl))

	last := 0
	for _, m := range matches {
		sb.WriteString(tmpl[last:m[0]])
		if value, ok := lookup(params, tmpl[m[2]:m[3]]); ok {
			sb.WriteString(value)
		} else {
			sb.WriteString(tmpl[m[0]:m[1]])
		}
		last = m[1]
	}
	sb.WriteString(tmpl[last:])

	return sb.String()
}

// Record is one resolved key=value line of a JSON mode template.
type Record struct {
	Key   string // key as written in the template
	Value string // value after placeholder resolution
}

// ResolveJSON reads tmpl as newline separated key=value records and returns
// them as a JSON object with camelCase keys, in first-seen key order.
//
// Only the first placeholder of a value is looked up; when its parameter is
// declared the whole value is replaced by the parameter value. Every record is
// checked before failing, the returned *DataFormatError lists all malformed
// lines.
func ResolveJSON(params Parameters, tmpl string) (string, error) {
	records, err := Records(params, tmpl)
	if err != nil {
		return "", err
	}

	object := orderedmap.New[string, string](len(records))
	for _, r := range records {
		object.Set(Normalize(r.Key), r.Value)
	}

	out, err := json.Marshal(object)
	if err != nil {
		return "", fmt.Errorf("template: failed to encode message: %w", err)
	}
	return string(out), nil
}

// Records parses and resolves the key=value records of tmpl in template
// order. Empty lines are skipped. Malformed lines are collected into a
// *DataFormatError, in which case no record is returned.
func Records(params Parameters, tmpl string) ([]Record, error) {
	var (
		records  []Record
		failures []LineError
	)

	for i, line := range lineBreakPattern.Split(tmpl, -1) {
		if line == "" {
			continue
		}

		key, value, lineErr := splitRecord(i+1, line)
		if lineErr != nil {
			failures = append(failures, *lineErr)
			continue
		}

		if m := placeholderPattern.FindStringSubmatch(value); m != nil {
			if resolved, ok := lookup(params, m[1]); ok {
				value = resolved
			}
		}

		records = append(records, Record{Key: key, Value: value})
	}

	if len(failures) > 0 {
		return nil, &DataFormatError{Lines: failures}
	}
	return records, nil
}

// splitRecord splits a line on its first '='.
func splitRecord(number int, line string) (key, value string, lineErr *LineError) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", &LineError{Number: number, Text: line, Reason: ErrMissingSeparator}
	}
	if strings.TrimSpace(key) == "" {
		return "", "", &LineError{Number: number, Text: line, Reason: ErrEmptyKey}
	}
	return key, value, nil
}

// lookup resolves a placeholder name. ok is false for unknown parameters.
func lookup(params Parameters, name string) (string, bool) {
	value, ok := params.Lookup(name)
	if !ok {
		return "", false
	}
	if value == nil {
		return nullValue, true
	}
	return *value, true
}
