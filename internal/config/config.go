// Package config loads the subtrack CLI configuration from
// $XDG_CONFIG_HOME/subtrack/config.yaml and SUBTRACK_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

// AppName names the config directory.
const AppName = "subtrack"

// DefaultConfigFile is the config file name within the config directory.
const DefaultConfigFile = "config.yaml"

// PathEnv overrides the config file location.
const PathEnv = "SUBTRACK_CONFIG"

// Config is the effective client configuration. Environment variables take
// precedence over the file, and the file over the defaults.
type Config struct {
	BaseURL        string        `yaml:"base_url" env:"SUBTRACK_API_BASE_URL" default:"http://localhost:8000" usage:"root URL of the subscription service"`
	Timeout        time.Duration `yaml:"timeout" env:"SUBTRACK_TIMEOUT" default:"10s" usage:"per-request timeout"`
	NoticeDuration time.Duration `yaml:"notice_duration" env:"SUBTRACK_NOTICE_DURATION" default:"3s" usage:"how long a notification stays visible, 0 keeps it until dismissed"`
	AuthSecret     string        `yaml:"auth_secret,omitempty" env:"SUBTRACK_AUTH_SECRET" usage:"shared secret for signing bearer tokens, empty disables auth"`
	LogLevel       string        `yaml:"log_level" env:"SUBTRACK_LOG_LEVEL" default:"info" usage:"log level: debug info warn error"`
}

// fileConfig mirrors Config with raw text values so that the file can feed
// the same parser as the environment.
type fileConfig struct {
	BaseURL        string `yaml:"base_url"`
	Timeout        string `yaml:"timeout"`
	NoticeDuration string `yaml:"notice_duration"`
	AuthSecret     string `yaml:"auth_secret"`
	LogLevel       string `yaml:"log_level"`
}

func (f fileConfig) source() mapSource {
	m := mapSource{}
	set := func(key, v string) {
		if v = strings.TrimSpace(v); v != "" {
			m[key] = v
		}
	}
	set("SUBTRACK_API_BASE_URL", f.BaseURL)
	set("SUBTRACK_TIMEOUT", f.Timeout)
	set("SUBTRACK_NOTICE_DURATION", f.NoticeDuration)
	set("SUBTRACK_AUTH_SECRET", f.AuthSecret)
	set("SUBTRACK_LOG_LEVEL", f.LogLevel)
	return m
}

type mapSource map[string]string

func (m mapSource) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

type lookupFunc func(string) (string, bool)

func (f lookupFunc) LookupEnv(key string) (string, bool) { return f(key) }

// layered consults each source in order and returns the first hit.
type layered []env.Source

func (l layered) LookupEnv(key string) (string, bool) {
	for _, s := range l {
		if v, ok := s.LookupEnv(key); ok {
			return v, true
		}
	}
	return "", false
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	// Only defaults are applied against an empty source, which cannot fail.
	_ = env.Load(&cfg, &env.Options{Source: mapSource{}})
	return cfg
}

// Path returns the config file location: $SUBTRACK_CONFIG if set, otherwise
// $XDG_CONFIG_HOME/subtrack/config.yaml.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigHome, AppName, DefaultConfigFile)
}

// Load reads the configuration from path (Path() when empty) and the process
// environment. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = Path()
	}
	return load(path, os.LookupEnv)
}

func load(path string, lookup lookupFunc) (Config, error) {
	file, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := env.Load(&cfg, &env.Options{Source: layered{lookup, file.source()}}); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("reading config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fc, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return fc, nil
}

// Save writes cfg to path as yaml, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	// The file may hold the auth secret.
	return os.WriteFile(path, data, 0o600)
}

// YAML renders cfg in the config file format.
func (c Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Validate checks that every field is usable.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("base_url must be an absolute http(s) URL, got %q", c.BaseURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.NoticeDuration < 0 {
		errs = append(errs, fmt.Errorf("notice_duration must not be negative, got %s", c.NoticeDuration))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return lvl, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	lvl, err := c.Level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Usage writes the supported environment variables to w.
func Usage(w io.Writer) {
	env.Usage(&Config{}, w, &env.Options{})
}
