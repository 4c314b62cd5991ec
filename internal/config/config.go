// Package config loads posync settings.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults
//  2. a YAML file (--config)
//  3. a .env file in the working directory
//  4. POSYNC_* environment variables
//  5. command-line flags (applied by the CLI)
//
// Durations are written as Go duration strings ("15s", "5m").
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvDB             = "POSYNC_DB"
	EnvRemoteURL      = "POSYNC_REMOTE_URL"
	EnvListen         = "POSYNC_LISTEN"
	EnvProbeInterval  = "POSYNC_PROBE_INTERVAL"
	EnvRetryInterval  = "POSYNC_RETRY_INTERVAL"
	EnvMaxBackoff     = "POSYNC_MAX_BACKOFF"
	EnvRequestTimeout = "POSYNC_REQUEST_TIMEOUT"
	EnvLogLevel       = "POSYNC_LOG_LEVEL"
)

// DefaultEnvFile is the .env file read when present.
const DefaultEnvFile = ".env"

// Config holds every runtime setting.
type Config struct {
	DBPath         string        `yaml:"db"`
	RemoteURL      string        `yaml:"remote_url"`
	Listen         string        `yaml:"listen"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:         "posync.db",
		RemoteURL:      "http://localhost:3000",
		Listen:         ":3000",
		ProbeInterval:  15 * time.Second,
		RetryInterval:  30 * time.Second,
		MaxBackoff:     5 * time.Minute,
		RequestTimeout: 10 * time.Second,
		LogLevel:       "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped if
// empty), envFile (skipped if missing), and the process environment.
// The result is not validated; call Validate after applying flags.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// decodeYAML decodes data into cfg, rejecting unknown keys.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvDB, &c.DBPath},
		{EnvRemoteURL, &c.RemoteURL},
		{EnvListen, &c.Listen},
		{EnvLogLevel, &c.LogLevel},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && strings.TrimSpace(v) != "" {
			*s.dst = strings.TrimSpace(v)
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvProbeInterval, &c.ProbeInterval},
		{EnvRetryInterval, &c.RetryInterval},
		{EnvMaxBackoff, &c.MaxBackoff},
		{EnvRequestTimeout, &c.RequestTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db path is required")
	}
	if strings.TrimSpace(c.RemoteURL) == "" {
		return errors.New("remote url is required")
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"probe_interval", c.ProbeInterval},
		{"retry_interval", c.RetryInterval},
		{"max_backoff", c.MaxBackoff},
		{"request_timeout", c.RequestTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.d)
		}
	}
	if c.MaxBackoff < c.RetryInterval {
		return fmt.Errorf("max_backoff (%s) must be >= retry_interval (%s)", c.MaxBackoff, c.RetryInterval)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
