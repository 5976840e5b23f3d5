package template

import (
	"strings"
)

// Validate checks that tmpl is usable in JSON mode. It returns
// ErrTemplateRequired for a blank template and the first malformed line as a
// *LineError otherwise.
func Validate(tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return ErrTemplateRequired
	}

	for i, line := range lineBreakPattern.Split(tmpl, -1) {
		if line == "" {
			continue
		}
		if _, _, lineErr := splitRecord(i+1, line); lineErr != nil {
			return lineErr
		}
	}
	return nil
}
