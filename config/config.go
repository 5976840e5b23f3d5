// Package config manages the broker profiles a build step can publish to.
// Profiles are read from a YAML file with Viper, overridden by MQSTEP_
// environment variables, and validated with go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MQSTEP"

	// DefaultFileName is looked up in the working directory and in ~/.mqstep.
	DefaultFileName = "mqstep.yaml"

	DefaultPort        = 5672
	DefaultSecurePort  = 5671
	DefaultVirtualHost = "/"

	filePermissions = 0o600
	dirPermissions  = 0o700
)

var (
	// ErrUnknownProfile is returned when no profile carries the requested name.
	ErrUnknownProfile = errors.New("config: unknown rabbit config")

	// ErrInvalidPort is returned by ValidatePort.
	ErrInvalidPort = errors.New("config: not a valid port number")
)

var validate = validator.New()

// Profile describes one broker connection.
type Profile struct {
	Name        string `mapstructure:"name" yaml:"name" validate:"required"`
	Host        string `mapstructure:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port        int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	Secure      bool   `mapstructure:"is_secure" yaml:"is_secure"`
	VirtualHost string `mapstructure:"virtual_host" yaml:"virtual_host,omitempty"`
}

// URL returns the AMQP URI of the profile.
func (p Profile) URL() string {
	scheme := "amqp"
	if p.Secure {
		scheme = "amqps"
	}

	uri := amqp.URI{
		Scheme:   scheme,
		Host:     p.Host,
		Port:     p.Port,
		Username: p.Username,
		Password: p.Password,
		Vhost:    p.VirtualHost,
	}
	return uri.String()
}

// withDefaults fills the port and virtual host when they are not set.
func (p Profile) withDefaults() Profile {
	if p.Port == 0 {
		p.Port = DefaultPort
		if p.Secure {
			p.Port = DefaultSecurePort
		}
	}
	if p.VirtualHost == "" {
		p.VirtualHost = DefaultVirtualHost
	}
	return p
}

// Config is the persisted step configuration.
type Config struct {
	Profiles []Profile `mapstructure:"rabbit_configs" yaml:"rabbit_configs" validate:"unique=Name,dive"`
	LogLevel string    `mapstructure:"log_level" yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

// Load reads the configuration from path. An empty path searches
// DefaultFileName in the working directory and in ~/.mqstep; a missing file
// yields an empty configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, filepath.Ext(DefaultFileName)))
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mqstep"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("log_level", EnvPrefix+"_LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for i := range cfg.Profiles {
		cfg.Profiles[i] = cfg.Profiles[i].withDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every profile.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Profile returns the profile called name.
func (c *Config) Profile(name string) (*Profile, error) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			p := c.Profiles[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w : %s", ErrUnknownProfile, name)
}

// Names lists the profile names in file order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// Upsert validates p and adds it, replacing a profile of the same name.
func (c *Config) Upsert(p Profile) error {
	p = p.withDefaults()
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid profile %q: %w", p.Name, err)
	}

	for i := range c.Profiles {
		if c.Profiles[i].Name == p.Name {
			c.Profiles[i] = p
			return nil
		}
	}
	c.Profiles = append(c.Profiles, p)
	return nil
}

// GetLogLevel returns the configured slog level, INFO when unset or invalid.
func (c *Config) GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Save writes cfg to path. The file holds credentials and is only readable by
// its owner.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, filePermissions); err != nil {
		return fmt.Errorf("error setting config file permissions: %w", err)
	}

	return nil
}

// DefaultPath returns ~/.mqstep/mqstep.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}
	return filepath.Join(home, ".mqstep", DefaultFileName), nil
}

// ValidatePort checks a port typed by a user.
func ValidatePort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPort, value)
	}
	if err := validate.Var(port, "min=1,max=65535"); err != nil {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}
