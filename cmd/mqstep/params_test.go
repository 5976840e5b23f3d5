package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/mqstep/config"
)

func TestParseParams(t *testing.T) {
	t.Run("values and null parameters", func(t *testing.T) {
		params, err := parseParams([]string{"job_name=deploy", "URL=http://x/?a=b", "EMPTY="}, []string{"missing"})
		require.NoError(t, err)

		value, ok := params.Lookup("JOB_NAME")
		require.True(t, ok)
		assert.Equal(t, "deploy", *value)

		value, ok = params.Lookup("url")
		require.True(t, ok)
		assert.Equal(t, "http://x/?a=b", *value)

		value, ok = params.Lookup("EMPTY")
		require.True(t, ok)
		assert.Equal(t, "", *value)

		value, ok = params.Lookup("MISSING")
		require.True(t, ok)
		assert.Nil(t, value)
	})

	t.Run("rejects malformed pairs", func(t *testing.T) {
		for _, pair := range []string{"novalue", "=value", " =value"} {
			_, err := parseParams([]string{pair}, nil)
			assert.Error(t, err, pair)
		}
		_, err := parseParams(nil, []string{" "})
		assert.Error(t, err)
	})
}

func TestReadTemplate(t *testing.T) {
	t.Run("inline data", func(t *testing.T) {
		tmpl, err := readTemplate("key=value", "")
		require.NoError(t, err)
		assert.Equal(t, "key=value", tmpl)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "message.txt")
		require.NoError(t, os.WriteFile(path, []byte("a=1\nb=2"), 0o600))

		tmpl, err := readTemplate("", path)
		require.NoError(t, err)
		assert.Equal(t, "a=1\nb=2", tmpl)
	})

	t.Run("missing template", func(t *testing.T) {
		_, err := readTemplate("", "")
		assert.ErrorIs(t, err, errNoTemplate)

		_, err = readTemplate("", filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}

func TestParsePort(t *testing.T) {
	port, err := parsePort(" 5671 ")
	require.NoError(t, err)
	assert.Equal(t, 5671, port)

	for _, value := range []string{"", "abc", "0", "65536"} {
		_, err := parsePort(value)
		assert.ErrorIs(t, err, config.ErrInvalidPort, value)
	}
}
