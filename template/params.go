package template

import "strings"

// Parameters maps upper-cased parameter names to their values. A nil value
// marks a parameter that is declared but carries no value.
type Parameters map[string]*string

// NewParameters builds a parameter map from plain string values.
func NewParameters(values map[string]string) Parameters {
	p := make(Parameters, len(values))
	for name, value := range values {
		p.Set(name, value)
	}
	return p
}

// Set stores value under the upper-cased name.
func (p Parameters) Set(name, value string) {
	p[strings.ToUpper(name)] = &value
}

// SetNull declares name without a value.
func (p Parameters) SetNull(name string) {
	p[strings.ToUpper(name)] = nil
}

// Lookup returns the value stored for name. ok is false when the parameter is
// not declared; value is nil when it is declared without a value.
func (p Parameters) Lookup(name string) (value *string, ok bool) {
	value, ok = p[strings.ToUpper(name)]
	return value, ok
}

// Clone returns a shallow copy of p.
func (p Parameters) Clone() Parameters {
	c := make(Parameters, len(p))
	for name, value := range p {
		c[name] = value
	}
	return c
}

// Names returns the declared parameter names in no particular order.
func (p Parameters) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	return names
}
