package projectconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spboyer/veracity/internal/detectors"
	"github.com/spboyer/veracity/internal/utils"
)

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	// Detectors
	assertEqualInt(t, "len(Detectors)", 3, len(cfg.Detectors))
	assertEqual(t, "Detectors[0].Name", "openai", cfg.Detectors[0].Name)
	assertEqual(t, "Detectors[1].Name", "anthropic", cfg.Detectors[1].Name)
	assertEqual(t, "Detectors[2].Name", "huggingface", cfg.Detectors[2].Name)

	var total float64
	for _, d := range cfg.Detectors {
		total += d.Weight
	}
	if total < 1-1e-9 || total > 1+1e-9 {
		t.Errorf("default weights sum to %v, want 1", total)
	}

	// Defaults
	assertEqualInt(t, "Defaults.Timeout", 30, cfg.Defaults.Timeout)
	assertEqualInt(t, "Defaults.RequestTimeout", 60, cfg.Defaults.RequestTimeout)
	assertEqualInt(t, "Defaults.MaxRetries", 2, *cfg.Defaults.MaxRetries)
	assertEqualInt(t, "Defaults.MaxWords", 2000, cfg.Defaults.MaxWords)
	assertBoolPtr(t, "Defaults.OfflineFallback", false, cfg.Defaults.OfflineFallback)

	// Cache
	assertBoolPtr(t, "Cache.Enabled", false, cfg.Cache.Enabled)
	assertEqual(t, "Cache.Dir", ".veracity-cache", cfg.Cache.Dir)
	assertEqual(t, "Cache.RedisURL", "", cfg.Cache.RedisURL)
	assertEqual(t, "Cache.TTL", "24h", cfg.Cache.TTL)

	// Server
	assertEqualInt(t, "Server.Port", 3000, cfg.Server.Port)
	assertEqual(t, "Server.HistoryDir", ".veracity-history", cfg.Server.HistoryDir)
	assertEqual(t, "Server.APIKeysEnv", "VERACITY_API_KEYS", cfg.Server.APIKeysEnv)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".veracity.yaml", `
detectors:
  - name: gpt
    type: openai
    model: gpt-4o
    api_key_env: MY_OPENAI_KEY
    weight: 0.6
    timeout: 10
    params:
      temperature: 0.2
  - name: local
    type: offline
    weight: 0.4
defaults:
  timeout: 45
  request_timeout: 90
  max_retries: 0
  max_words: 500
  offline_fallback: true
cache:
  enabled: true
  dir: ".my-cache"
  redis_url: "redis://localhost:6379/0"
  ttl: "1h"
server:
  port: 8080
  history_dir: "./history"
  allowed_origins: ["https://example.com"]
  api_keys_env: MY_API_KEYS
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	assertEqualInt(t, "len(Detectors)", 2, len(cfg.Detectors))
	assertEqual(t, "Detectors[0].Model", "gpt-4o", cfg.Detectors[0].Model)
	assertEqual(t, "Detectors[0].APIKeyEnv", "MY_OPENAI_KEY", cfg.Detectors[0].APIKeyEnv)
	assertEqualInt(t, "Detectors[0].Timeout", 10, cfg.Detectors[0].Timeout)
	if cfg.Detectors[0].Params["temperature"] != 0.2 {
		t.Errorf("Detectors[0].Params[temperature] = %v, want 0.2", cfg.Detectors[0].Params["temperature"])
	}
	assertEqual(t, "Detectors[1].Type", "offline", cfg.Detectors[1].Type)

	assertEqualInt(t, "Defaults.Timeout", 45, cfg.Defaults.Timeout)
	assertEqualInt(t, "Defaults.RequestTimeout", 90, cfg.Defaults.RequestTimeout)
	assertEqualInt(t, "Defaults.MaxRetries", 0, *cfg.Defaults.MaxRetries)
	assertEqualInt(t, "Defaults.MaxWords", 500, cfg.Defaults.MaxWords)
	assertBoolPtr(t, "Defaults.OfflineFallback", true, cfg.Defaults.OfflineFallback)
	assertBoolPtr(t, "Cache.Enabled", true, cfg.Cache.Enabled)
	assertEqual(t, "Cache.Dir", ".my-cache", cfg.Cache.Dir)
	assertEqual(t, "Cache.RedisURL", "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assertEqual(t, "Cache.TTL", "1h", cfg.Cache.TTL)
	assertEqualInt(t, "Server.Port", 8080, cfg.Server.Port)
	assertEqual(t, "Server.HistoryDir", "./history", cfg.Server.HistoryDir)
	assertEqual(t, "Server.AllowedOrigins", "https://example.com", strings.Join(cfg.Server.AllowedOrigins, ","))
	assertEqual(t, "Server.APIKeysEnv", "MY_API_KEYS", cfg.Server.APIKeysEnv)

	ttl, err := cfg.CacheTTL()
	if err != nil || ttl != time.Hour {
		t.Errorf("CacheTTL() = %v, %v; want 1h", ttl, err)
	}
	if cfg.RequestTimeout() != 90*time.Second {
		t.Errorf("RequestTimeout() = %v, want 90s", cfg.RequestTimeout())
	}
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".veracity.yaml", `
defaults:
  max_words: 100
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Overridden
	assertEqualInt(t, "Defaults.MaxWords", 100, cfg.Defaults.MaxWords)

	// Defaults preserved
	assertEqualInt(t, "len(Detectors)", 3, len(cfg.Detectors))
	assertEqualInt(t, "Defaults.Timeout", 30, cfg.Defaults.Timeout)
	assertBoolPtr(t, "Defaults.OfflineFallback", false, cfg.Defaults.OfflineFallback)
	assertEqualInt(t, "Server.Port", 3000, cfg.Server.Port)
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	defaults := New()
	assertEqualInt(t, "Defaults.Timeout", defaults.Defaults.Timeout, cfg.Defaults.Timeout)
	assertEqualInt(t, "Server.Port", defaults.Server.Port, cfg.Server.Port)
	assertEqualInt(t, "len(Detectors)", len(defaults.Detectors), len(cfg.Detectors))
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".veracity.yaml", `
defaults:
  timeout: [not valid yaml
    this is broken
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load() should return error for invalid YAML")
	}
}

func TestLoad_WalksUpDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".veracity.yaml", `
server:
  port: 9999
`)

	child := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(child)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	assertEqualInt(t, "Server.Port", 9999, cfg.Server.Port)
	assertEqualInt(t, "Defaults.MaxWords", 2000, cfg.Defaults.MaxWords)

	_, path, err := FindConfigFile(child)
	if err != nil {
		t.Fatalf("FindConfigFile() error: %v", err)
	}
	assertEqual(t, "path", filepath.Join(root, ".veracity.yaml"), path)
}

func TestResolve(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":    "sk-openai",
		"ANTHROPIC_API_KEY": "sk-anthropic",
	}
	getenv := func(k string) string { return env[k] }

	t.Run("missing key is an error by default", func(t *testing.T) {
		_, err := New().Resolve(getenv)
		if err == nil || !strings.Contains(err.Error(), "HUGGINGFACE_API_KEY") {
			t.Fatalf("Resolve() error = %v, want mention of HUGGINGFACE_API_KEY", err)
		}
	})

	t.Run("missing key falls back to offline", func(t *testing.T) {
		cfg := New()
		cfg.Defaults.OfflineFallback = utils.Ptr(true)

		resolved, err := cfg.Resolve(getenv)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}

		assertEqualInt(t, "len(resolved)", 3, len(resolved))
		assertEqual(t, "resolved[0].APIKey", "sk-openai", resolved[0].APIKey)
		assertEqual(t, "resolved[0].Type", string(detectors.TypeOpenAI), string(resolved[0].Type))
		assertEqual(t, "resolved[1].APIKey", "sk-anthropic", resolved[1].APIKey)
		assertEqual(t, "resolved[2].Name", "huggingface", resolved[2].Name)
		assertEqual(t, "resolved[2].Type", string(detectors.TypeOffline), string(resolved[2].Type))
		if resolved[2].Weight != 0.25 {
			t.Errorf("resolved[2].Weight = %v, want 0.25", resolved[2].Weight)
		}
		if resolved[0].Timeout != 30*time.Second {
			t.Errorf("resolved[0].Timeout = %v, want 30s", resolved[0].Timeout)
		}
		assertEqualInt(t, "resolved[0].MaxRetries", 2, resolved[0].MaxRetries)
	})

	t.Run("per-detector overrides", func(t *testing.T) {
		cfg := New()
		cfg.Detectors = []DetectorConfig{
			{Name: "gpt", Type: "openai", APIKeyEnv: "ALT_KEY", Weight: 1, Timeout: 5, MaxRetries: utils.Ptr(0)},
		}

		resolved, err := cfg.Resolve(func(k string) string {
			if k == "ALT_KEY" {
				return "alt"
			}
			return ""
		})
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		assertEqual(t, "APIKey", "alt", resolved[0].APIKey)
		assertEqualInt(t, "MaxRetries", 0, resolved[0].MaxRetries)
		if resolved[0].Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", resolved[0].Timeout)
		}
	})

	t.Run("keyless types need no env", func(t *testing.T) {
		cfg := New()
		cfg.Detectors = []DetectorConfig{
			{Name: "copilot", Type: "copilot", Weight: 0.5},
			{Name: "local", Type: "offline", Weight: 0.5},
		}

		resolved, err := cfg.Resolve(func(string) string { return "" })
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		assertEqual(t, "resolved[0].Type", "copilot", string(resolved[0].Type))
	})
}

func TestResolveOffline(t *testing.T) {
	resolved := New().ResolveOffline()

	assertEqualInt(t, "len(resolved)", 3, len(resolved))
	for _, r := range resolved {
		assertEqual(t, r.Name+".Type", string(detectors.TypeOffline), string(r.Type))
		assertEqual(t, r.Name+".APIKey", "", r.APIKey)
	}
}

func TestCacheTTL_Invalid(t *testing.T) {
	cfg := New()
	cfg.Cache.TTL = "a while"

	if _, err := cfg.CacheTTL(); err == nil {
		t.Fatal("CacheTTL() should fail for an unparseable duration")
	}

	cfg.Cache.TTL = ""
	if ttl, err := cfg.CacheTTL(); err != nil || ttl != 0 {
		t.Errorf("CacheTTL() = %v, %v; want 0, nil", ttl, err)
	}
}

// --- test helpers ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}

func assertEqualInt(t *testing.T, field string, want, got int) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %d, want %d", field, got, want)
	}
}

func assertBoolPtr(t *testing.T, field string, want bool, got *bool) {
	t.Helper()
	if got == nil {
		t.Errorf("%s is nil, want *%v", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", field, *got, want)
	}
}
