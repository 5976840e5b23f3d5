package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level: debug
rabbit_configs:
  - name: rabbit-test
    host: roger-rabbit
    username: guest
    password: guest
  - name: secure
    host: mq.example.com
    is_secure: true
    username: ci
    password: s3cret
    virtual_host: builds
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mqstep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("reads profiles and applies defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, sampleConfig))
		require.NoError(t, err)

		require.Len(t, cfg.Profiles, 2)
		assert.Equal(t, []string{"rabbit-test", "secure"}, cfg.Names())

		plain := cfg.Profiles[0]
		assert.Equal(t, "roger-rabbit", plain.Host)
		assert.Equal(t, DefaultPort, plain.Port)
		assert.Equal(t, DefaultVirtualHost, plain.VirtualHost)
		assert.False(t, plain.Secure)

		secure := cfg.Profiles[1]
		assert.True(t, secure.Secure)
		assert.Equal(t, DefaultSecurePort, secure.Port)
		assert.Equal(t, "builds", secure.VirtualHost)

		assert.Equal(t, slog.LevelDebug, cfg.GetLogLevel())
	})

	t.Run("environment overrides the log level", func(t *testing.T) {
		t.Setenv("MQSTEP_LOG_LEVEL", "error")
		cfg, err := Load(writeConfig(t, sampleConfig))
		require.NoError(t, err)
		assert.Equal(t, slog.LevelError, cfg.GetLogLevel())
	})

	t.Run("explicit missing file fails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("rejects invalid ports", func(t *testing.T) {
		_, err := Load(writeConfig(t, "rabbit_configs:\n  - name: bad\n    host: localhost\n    port: 70000\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation failed")
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		content := "rabbit_configs:\n  - name: a\n    host: h1\n  - name: a\n    host: h2\n"
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err)
	})

	t.Run("rejects profiles without host", func(t *testing.T) {
		_, err := Load(writeConfig(t, "rabbit_configs:\n  - name: nohost\n"))
		assert.Error(t, err)
	})
}

func TestConfigProfile(t *testing.T) {
	cfg := &Config{Profiles: []Profile{{Name: "rabbit-test", Host: "roger-rabbit", Port: 5672}}}

	t.Run("finds profiles by name", func(t *testing.T) {
		p, err := cfg.Profile("rabbit-test")
		require.NoError(t, err)
		assert.Equal(t, "roger-rabbit", p.Host)
	})

	t.Run("unknown names fail", func(t *testing.T) {
		_, err := cfg.Profile("rabbit-ko")
		assert.ErrorIs(t, err, ErrUnknownProfile)
		assert.Contains(t, err.Error(), "rabbit-ko")
	})
}

func TestConfigUpsert(t *testing.T) {
	cfg := &Config{}

	require.NoError(t, cfg.Upsert(Profile{Name: "a", Host: "localhost"}))
	require.NoError(t, cfg.Upsert(Profile{Name: "a", Host: "127.0.0.1", Port: 15672}))
	require.NoError(t, cfg.Upsert(Profile{Name: "b", Host: "mq", Secure: true}))

	require.Len(t, cfg.Profiles, 2)
	assert.Equal(t, "127.0.0.1", cfg.Profiles[0].Host)
	assert.Equal(t, 15672, cfg.Profiles[0].Port)
	assert.Equal(t, DefaultSecurePort, cfg.Profiles[1].Port)

	assert.Error(t, cfg.Upsert(Profile{Name: "", Host: "localhost"}))
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mqstep.yaml")
	cfg := &Config{LogLevel: "warn"}
	require.NoError(t, cfg.Upsert(Profile{Name: "rabbit-test", Host: "roger-rabbit", Username: "u", Password: "p"}))

	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Profiles, loaded.Profiles)
	assert.Equal(t, slog.LevelWarn, loaded.GetLogLevel())
}

func TestProfileURL(t *testing.T) {
	t.Run("plain profile", func(t *testing.T) {
		p := Profile{Host: "roger-rabbit", Port: 5673, Username: "user", Password: "secret", VirtualHost: "/"}
		uri, err := amqp.ParseURI(p.URL())
		require.NoError(t, err)

		assert.Equal(t, "amqp", uri.Scheme)
		assert.Equal(t, "roger-rabbit", uri.Host)
		assert.Equal(t, 5673, uri.Port)
		assert.Equal(t, "user", uri.Username)
		assert.Equal(t, "secret", uri.Password)
		assert.Equal(t, "/", uri.Vhost)
	})

	t.Run("secure profile with virtual host", func(t *testing.T) {
		p := Profile{Host: "mq", Port: 5671, Username: "ci", Password: "pw", Secure: true, VirtualHost: "builds"}
		uri, err := amqp.ParseURI(p.URL())
		require.NoError(t, err)

		assert.Equal(t, "amqps", uri.Scheme)
		assert.Equal(t, 5671, uri.Port)
		assert.Equal(t, "builds", uri.Vhost)
	})
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort("132"))
	assert.NoError(t, ValidatePort("5672"))

	for _, bad := range []string{"aaa", "", "0", "65536", "-1"} {
		assert.ErrorIs(t, ValidatePort(bad), ErrInvalidPort, bad)
	}
}
