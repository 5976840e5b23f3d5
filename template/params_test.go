package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameters(t *testing.T) {
	t.Run("names are upper cased on insert and lookup", func(t *testing.T) {
		p := Parameters{}
		p.Set("build_number", "42")

		value, ok := p.Lookup("Build_Number")
		require.True(t, ok)
		require.NotNil(t, value)
		assert.Equal(t, "42", *value)
		assert.Contains(t, p, "BUILD_NUMBER")
	})

	t.Run("null parameters are declared without value", func(t *testing.T) {
		p := Parameters{}
		p.SetNull("empty")

		value, ok := p.Lookup("EMPTY")
		assert.True(t, ok)
		assert.Nil(t, value)
	})

	t.Run("unknown parameters are not found", func(t *testing.T) {
		_, ok := NewParameters(map[string]string{"A": "1"}).Lookup("B")
		assert.False(t, ok)
	})

	t.Run("clone does not share the map", func(t *testing.T) {
		p := NewParameters(map[string]string{"A": "1"})
		c := p.Clone()
		c.Set("B", "2")

		assert.Len(t, p, 1)
		assert.Len(t, c, 2)
		assert.ElementsMatch(t, []string{"A", "B"}, c.Names())
	})
}
