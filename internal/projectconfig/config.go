// Package projectconfig provides the ProjectConfig struct and loader for
// .veracity.yaml configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spboyer/veracity/internal/detectors"
	"github.com/spboyer/veracity/internal/utils"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by [Load].
const FileName = ".veracity.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultTimeout        = 30 // seconds, per detector call
	DefaultRequestTimeout = 60 // seconds, whole ensemble
	DefaultMaxRetries     = 2
	DefaultMaxWords       = 2000

	DefaultCacheDir = ".veracity-cache"
	DefaultCacheTTL = "24h"

	DefaultServerPort  = 3000
	DefaultHistoryDir  = ".veracity-history"
	DefaultAPIKeysEnv  = "VERACITY_API_KEYS"
	DefaultCORSOrigin  = "http://localhost:3000"
	maxDirectoryLevels = 10
)

// defaultAPIKeyEnv is used when a detector entry does not name its own
// environment variable.
var defaultAPIKeyEnv = map[detectors.Type]string{
	detectors.TypeOpenAI:      "OPENAI_API_KEY",
	detectors.TypeAnthropic:   "ANTHROPIC_API_KEY",
	detectors.TypeHuggingFace: "HUGGINGFACE_API_KEY",
}

// DetectorConfig is one entry of the detectors list.
type DetectorConfig struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Model      string         `yaml:"model,omitempty"`
	Endpoint   string         `yaml:"endpoint,omitempty"`
	APIKeyEnv  string         `yaml:"api_key_env,omitempty"`
	Weight     float64        `yaml:"weight"`
	Timeout    int            `yaml:"timeout,omitempty"`
	MaxRetries *int           `yaml:"max_retries,omitempty"`
	Params     map[string]any `yaml:"params,omitempty"`
}

// DefaultsConfig holds settings shared by every detector and request.
type DefaultsConfig struct {
	Timeout         int   `yaml:"timeout,omitempty"`
	RequestTimeout  int   `yaml:"request_timeout,omitempty"`
	MaxRetries      *int  `yaml:"max_retries,omitempty"`
	MaxWords        int   `yaml:"max_words,omitempty"`
	OfflineFallback *bool `yaml:"offline_fallback,omitempty"`
}

// CacheConfig holds result cache settings. RedisURL selects the Redis
// backend; otherwise results are cached under Dir.
type CacheConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Dir      string `yaml:"dir,omitempty"`
	RedisURL string `yaml:"redis_url,omitempty"`
	TTL      string `yaml:"ttl,omitempty"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	HistoryDir     string   `yaml:"history_dir,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	APIKeysEnv     string   `yaml:"api_keys_env,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .veracity.yaml.
type ProjectConfig struct {
	Detectors []DetectorConfig `yaml:"detectors,omitempty"`
	Defaults  DefaultsConfig   `yaml:"defaults,omitempty"`
	Cache     CacheConfig      `yaml:"cache,omitempty"`
	Server    ServerConfig     `yaml:"server,omitempty"`
}

// DefaultDetectors returns the built-in three-model ensemble.
func DefaultDetectors() []DetectorConfig {
	return []DetectorConfig{
		{Name: "openai", Type: string(detectors.TypeOpenAI), APIKeyEnv: "OPENAI_API_KEY", Weight: 0.40},
		{Name: "anthropic", Type: string(detectors.TypeAnthropic), APIKeyEnv: "ANTHROPIC_API_KEY", Weight: 0.35},
		{Name: "huggingface", Type: string(detectors.TypeHuggingFace), APIKeyEnv: "HUGGINGFACE_API_KEY", Weight: 0.25},
	}
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Detectors: DefaultDetectors(),
		Defaults: DefaultsConfig{
			Timeout:         DefaultTimeout,
			RequestTimeout:  DefaultRequestTimeout,
			MaxRetries:      utils.Ptr(DefaultMaxRetries),
			MaxWords:        DefaultMaxWords,
			OfflineFallback: utils.Ptr(false),
		},
		Cache: CacheConfig{
			Enabled: utils.Ptr(false),
			Dir:     DefaultCacheDir,
			TTL:     DefaultCacheTTL,
		},
		Server: ServerConfig{
			Port:           DefaultServerPort,
			HistoryDir:     DefaultHistoryDir,
			AllowedOrigins: []string{DefaultCORSOrigin},
			APIKeysEnv:     DefaultAPIKeysEnv,
		},
	}
}

// Load finds .veracity.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, _, err := FindConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// FindConfigFile walks up from dir looking for .veracity.yaml and returns its
// contents and path. Returns os.ErrNotExist if no config file is found.
func FindConfigFile(dir string) ([]byte, string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for range maxDirectoryLevels {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, "", os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst. A detectors list in
// src replaces the default ensemble entirely.
func mergeConfig(dst, src *ProjectConfig) {
	if len(src.Detectors) > 0 {
		dst.Detectors = src.Detectors
	}

	// Defaults
	if src.Defaults.Timeout != 0 {
		dst.Defaults.Timeout = src.Defaults.Timeout
	}
	if src.Defaults.RequestTimeout != 0 {
		dst.Defaults.RequestTimeout = src.Defaults.RequestTimeout
	}
	if src.Defaults.MaxRetries != nil {
		dst.Defaults.MaxRetries = src.Defaults.MaxRetries
	}
	if src.Defaults.MaxWords != 0 {
		dst.Defaults.MaxWords = src.Defaults.MaxWords
	}
	if src.Defaults.OfflineFallback != nil {
		dst.Defaults.OfflineFallback = src.Defaults.OfflineFallback
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
	if src.Cache.RedisURL != "" {
		dst.Cache.RedisURL = src.Cache.RedisURL
	}
	if src.Cache.TTL != "" {
		dst.Cache.TTL = src.Cache.TTL
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.HistoryDir != "" {
		dst.Server.HistoryDir = src.Server.HistoryDir
	}
	if len(src.Server.AllowedOrigins) > 0 {
		dst.Server.AllowedOrigins = src.Server.AllowedOrigins
	}
	if src.Server.APIKeysEnv != "" {
		dst.Server.APIKeysEnv = src.Server.APIKeysEnv
	}
}

// Resolve turns the detectors list into immutable detector configurations,
// reading API keys through getenv. A detector whose key is missing becomes
// an offline stand-in with the same name and weight when offline_fallback
// is on; otherwise it is an error.
func (c *ProjectConfig) Resolve(getenv func(string) string) ([]detectors.Config, error) {
	var out []detectors.Config

	for _, d := range c.Detectors {
		cfg := c.detectorConfig(d)

		if envName := apiKeyEnv(d); envName != "" {
			cfg.APIKey = getenv(envName)

			if cfg.APIKey == "" {
				if c.Defaults.OfflineFallback == nil || !*c.Defaults.OfflineFallback {
					return nil, fmt.Errorf("detector '%s': environment variable %s is not set (set it, or enable defaults.offline_fallback)", d.Name, envName)
				}

				slog.Warn("API key missing, using offline detector", "detector", d.Name, "env", envName)
				cfg = offlineConfig(cfg)
			}
		}

		out = append(out, cfg)
	}

	return out, nil
}

// ResolveOffline returns the ensemble with every detector replaced by an
// offline stand-in, keeping names and weights.
func (c *ProjectConfig) ResolveOffline() []detectors.Config {
	out := make([]detectors.Config, 0, len(c.Detectors))
	for _, d := range c.Detectors {
		out = append(out, offlineConfig(c.detectorConfig(d)))
	}
	return out
}

// RequestTimeout returns the whole-ensemble deadline.
func (c *ProjectConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Defaults.RequestTimeout) * time.Second
}

// CacheTTL parses cache.ttl. An empty value means entries never expire.
func (c *ProjectConfig) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}

	ttl, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("cache.ttl: %w", err)
	}
	return ttl, nil
}

// CacheEnabled reports whether results should be cached.
func (c *ProjectConfig) CacheEnabled() bool {
	return c.Cache.Enabled != nil && *c.Cache.Enabled
}

func (c *ProjectConfig) detectorConfig(d DetectorConfig) detectors.Config {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = c.Defaults.Timeout
	}

	retries := DefaultMaxRetries
	if c.Defaults.MaxRetries != nil {
		retries = *c.Defaults.MaxRetries
	}
	if d.MaxRetries != nil {
		retries = *d.MaxRetries
	}

	return detectors.Config{
		Name:       d.Name,
		Type:       detectors.Type(d.Type),
		Model:      d.Model,
		Endpoint:   d.Endpoint,
		Weight:     d.Weight,
		Timeout:    time.Duration(timeout) * time.Second,
		MaxRetries: retries,
		Params:     d.Params,
	}
}

func apiKeyEnv(d DetectorConfig) string {
	if d.APIKeyEnv != "" {
		return d.APIKeyEnv
	}
	return defaultAPIKeyEnv[detectors.Type(d.Type)]
}

func offlineConfig(cfg detectors.Config) detectors.Config {
	return detectors.Config{
		Name:    cfg.Name,
		Type:    detectors.TypeOffline,
		Weight:  cfg.Weight,
		Timeout: cfg.Timeout,
	}
}
