package template

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize converts a delimiter separated identifier into lowerCamelCase.
//
//	NB_DAYS   => nbDays
//	MY_param  => myParam
//	_LEADING  => leading
//	TRAILING_ => trailing
func Normalize(identifier string) string {
	if identifier == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(identifier))

	hump := false
	for _, r := range strings.ToLower(identifier) {
		if r == '_' {
			hump = true
			continue
		}
		if hump {
			r = unicode.ToUpper(r)
			hump = false
		}
		sb.WriteRune(r)
	}

	out := sb.String()
	first, size := utf8.DecodeRuneInString(out)
	if size == 0 || unicode.IsLower(first) {
		return out
	}
	return string(unicode.ToLower(first)) + out[size:]
}
