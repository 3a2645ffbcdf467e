// Package config loads the widgets configuration from an optional YAML file
// and WIDGETS_* environment variables. Command-line flags are applied on top
// by the commands themselves.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGCS   = "gcs"
	ProviderLocal = "local"
)

// Config holds the application configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
}

type StorageConfig struct {
	// Provider selects the backend: "gcs" or "local".
	Provider string `yaml:"provider"`

	// Directory is the bucket name.
	Directory string `yaml:"directory"`

	// Public makes uploaded objects readable by anyone.
	Public bool `yaml:"public"`

	// LocalRoot is where local directories are created.
	LocalRoot string `yaml:"local_root"`

	GCS GCSConfig `yaml:"gcs"`
}

type GCSConfig struct {
	ProjectID       string        `yaml:"project_id"`
	Location        string        `yaml:"location"`
	CredentialsFile string        `yaml:"credentials_file"`
	Endpoint        string        `yaml:"endpoint"`
	Anonymous       bool          `yaml:"anonymous"`
	SignedURLTTL    time.Duration `yaml:"signed_url_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	// Addr enables the widget cache when set.
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Storage: StorageConfig{
			Provider:  ProviderLocal,
			Public:    true,
			LocalRoot: ".",
			GCS: GCSConfig{
				SignedURLTTL: time.Hour,
			},
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load reads the YAML file at path when path is non-empty, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to open %q: %w", path, err)
		}
		defer f.Close()

		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("config: failed to parse %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	return dec.Decode(c)
}

func (c *Config) applyEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = i
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setString("WIDGETS_LOG_LEVEL", &c.LogLevel)
	setString("WIDGETS_STORAGE_PROVIDER", &c.Storage.Provider)
	setString("WIDGETS_DIRECTORY", &c.Storage.Directory)
	setBool("WIDGETS_STORAGE_PUBLIC", &c.Storage.Public)
	setString("WIDGETS_LOCAL_ROOT", &c.Storage.LocalRoot)
	setString("WIDGETS_GCS_PROJECT_ID", &c.Storage.GCS.ProjectID)
	setString("WIDGETS_GCS_LOCATION", &c.Storage.GCS.Location)
	setString("WIDGETS_GCS_CREDENTIALS_FILE", &c.Storage.GCS.CredentialsFile)
	setString("WIDGETS_GCS_ENDPOINT", &c.Storage.GCS.Endpoint)
	setBool("WIDGETS_GCS_ANONYMOUS", &c.Storage.GCS.Anonymous)
	setDuration("WIDGETS_GCS_SIGNED_URL_TTL", &c.Storage.GCS.SignedURLTTL)
	setString("WIDGETS_DATABASE_URL", &c.Database.URL)
	setString("WIDGETS_REDIS_ADDR", &c.Redis.Addr)
	setString("WIDGETS_REDIS_PASSWORD", &c.Redis.Password)
	setInt("WIDGETS_REDIS_DB", &c.Redis.DB)
	setDuration("WIDGETS_CACHE_TTL", &c.Redis.TTL)
	setInt("WIDGETS_PORT", &c.Server.Port)

	return errors.Join(errs...)
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case ProviderGCS, ProviderLocal:
	default:
		return fmt.Errorf("config: unknown storage provider %q", c.Storage.Provider)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("config: negative cache ttl %s", c.Redis.TTL)
	}
	return nil
}
