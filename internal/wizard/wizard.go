// Package wizard collects answers for a new .veracity.yaml interactively.
package wizard

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spboyer/veracity/internal/detectors"
	"github.com/spboyer/veracity/internal/projectconfig"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Answers holds all fields collected during the interactive wizard.
type Answers struct {
	Providers       []string
	OfflineFallback bool
	CacheEnabled    bool
	RedisURL        string
	Port            int
}

var providerOptions = []string{
	string(detectors.TypeOpenAI),
	string(detectors.TypeAnthropic),
	string(detectors.TypeHuggingFace),
	string(detectors.TypeCopilot),
	string(detectors.TypeOffline),
}

// Run asks which providers to use and how to run them.
func Run(in io.Reader, out io.Writer) (*Answers, error) {
	var (
		providers = []string{"openai", "anthropic", "huggingface"}
		fallback  = true
		useCache  bool
		redisURL  string
		portRaw   = strconv.Itoa(projectconfig.DefaultServerPort)
	)

	options := make([]huh.Option[string], 0, len(providerOptions))
	for _, p := range providerOptions {
		options = append(options, huh.NewOption(p, p))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Detectors").
				Description("Models that vote on each text").
				Options(options...).
				Value(&providers).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return errors.New("pick at least one detector")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Offline fallback").
				Description("Use a local heuristic when a provider key is missing").
				Value(&fallback),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Cache results").
				Value(&useCache),
			huh.NewInput().
				Title("Redis URL").
				Description("Leave empty to cache on disk").
				Placeholder("redis://localhost:6379/0").
				Value(&redisURL).
				Validate(validateRedisURL),
			huh.NewInput().
				Title("API server port").
				Value(&portRaw).
				Validate(func(s string) error {
					_, err := parsePort(s)
					return err
				}),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	port, err := parsePort(portRaw)
	if err != nil {
		return nil, err
	}

	return &Answers{
		Providers:       providers,
		OfflineFallback: fallback,
		CacheEnabled:    useCache,
		RedisURL:        strings.TrimSpace(redisURL),
		Port:            port,
	}, nil
}

// BuildConfig turns answers into a config. The built-in ensemble keeps its
// weights; any other selection gets equal weights.
func BuildConfig(a *Answers) (*projectconfig.ProjectConfig, error) {
	if len(a.Providers) == 0 {
		return nil, errors.New("at least one detector is required")
	}

	cfg := projectconfig.New()
	cfg.Detectors = detectorsFor(a.Providers)
	cfg.Defaults = projectconfig.DefaultsConfig{OfflineFallback: &a.OfflineFallback}
	cfg.Cache = projectconfig.CacheConfig{Enabled: &a.CacheEnabled}
	if a.CacheEnabled {
		cfg.Cache.RedisURL = a.RedisURL
		cfg.Cache.TTL = projectconfig.DefaultCacheTTL
	}
	cfg.Server = projectconfig.ServerConfig{Port: a.Port}

	return cfg, nil
}

func detectorsFor(providers []string) []projectconfig.DetectorConfig {
	defaults := projectconfig.DefaultDetectors()

	names := make([]string, 0, len(defaults))
	for _, d := range defaults {
		names = append(names, d.Type)
	}
	if slices.Equal(names, providers) {
		return defaults
	}

	// two decimals each; the first entry absorbs the rounding remainder
	share := math.Floor(100/float64(len(providers))) / 100
	out := make([]projectconfig.DetectorConfig, 0, len(providers))
	for _, p := range providers {
		out = append(out, projectconfig.DetectorConfig{Name: p, Type: p, Weight: share})
	}
	out[0].Weight = math.Round((1-share*float64(len(providers)-1))*100) / 100
	return out
}

// Render produces the YAML written to .veracity.yaml.
func Render(cfg *projectconfig.ProjectConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}
	header := "# veracity configuration. Run `veracity config validate` after editing.\n"
	return append([]byte(header), data...), nil
}

func validateRedisURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "redis://") || strings.HasPrefix(s, "rediss://") {
		return nil
	}
	return errors.New("redis URL must start with redis:// or rediss://")
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}
