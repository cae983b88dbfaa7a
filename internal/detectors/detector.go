// Package detectors wraps upstream AI-content-detection models behind a
// single [Detector] interface. Each implementation owns its provider's auth,
// prompt, and response schema, and only ever hands back a validated
// [models.Opinion] or an [*Error].
package detectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/veracity/internal/models"
)

type Type string

const (
	TypeOpenAI      Type = "openai"
	TypeAnthropic   Type = "anthropic"
	TypeHuggingFace Type = "huggingface"
	TypeCopilot     Type = "copilot"

	// TypeOffline is a deterministic stand-in used when no provider
	// credentials are available, and in tests.
	TypeOffline Type = "offline"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Detector scores a text for AI authorship.
type Detector interface {
	// Name returns the configured detector name, unique within an ensemble.
	Name() string

	// Type returns the provider type.
	Type() Type

	// Weight returns the ensemble weight configured for this detector.
	Weight() float64

	// Detect returns a successful opinion or an [*Error].
	Detect(ctx context.Context, text string) (*models.Opinion, error)
}

// Config is the immutable per-detector configuration. It is built once at
// startup and never read from the environment inside a detector.
type Config struct {
	Name     string
	Type     Type
	Model    string
	Endpoint string
	APIKey   string
	Weight   float64

	// Timeout bounds a single Detect call, retries included.
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Params holds provider-specific settings, decoded with mapstructure.
	Params map[string]any

	// HTTPClient overrides the client used by HTTP-backed detectors.
	HTTPClient *http.Client
}

// ValidWeight reports whether w can be used as an ensemble weight: finite and
// greater than zero.
func ValidWeight(w float64) bool {
	return w > 0 && !math.IsNaN(w) && !math.IsInf(w, 0)
}

// Create builds a detector from its configuration.
func Create(cfg Config) (Detector, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("detector name is required")
	}

	if !ValidWeight(cfg.Weight) {
		return nil, fmt.Errorf("detector '%s' must have a positive finite weight, got %v", cfg.Name, cfg.Weight)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var (
		d   Detector
		err error
	)

	switch cfg.Type {
	case TypeOpenAI:
		var args OpenAIArgs
		if err := mapstructure.Decode(cfg.Params, &args); err != nil {
			return nil, fmt.Errorf("detector '%s': %w", cfg.Name, err)
		}
		d, err = NewOpenAIDetector(cfg, args)
	case TypeAnthropic:
		var args AnthropicArgs
		if err := mapstructure.Decode(cfg.Params, &args); err != nil {
			return nil, fmt.Errorf("detector '%s': %w", cfg.Name, err)
		}
		d, err = NewAnthropicDetector(cfg, args)
	case TypeHuggingFace:
		var args HuggingFaceArgs
		if err := mapstructure.Decode(cfg.Params, &args); err != nil {
			return nil, fmt.Errorf("detector '%s': %w", cfg.Name, err)
		}
		d, err = NewHuggingFaceDetector(cfg, args)
	case TypeCopilot:
		d, err = NewCopilotDetector(cfg, nil)
	case TypeOffline:
		d = NewOfflineDetector(cfg)
	default:
		return nil, fmt.Errorf("'%s' is not a valid detector type", cfg.Type)
	}

	if err != nil {
		return nil, err
	}

	return d, nil
}

// base carries the fields and the call envelope shared by every detector.
type base struct {
	cfg Config
}

func (b *base) Name() string    { return b.cfg.Name }
func (b *base) Type() Type      { return b.cfg.Type }
func (b *base) Weight() float64 { return b.cfg.Weight }
func (b *base) Model() string   { return b.cfg.Model }

// run applies the per-call timeout, stamps identity onto the opinion, and
// rejects opinions that break the breakdown invariants.
func (b *base) run(ctx context.Context, text string, fn func(ctx context.Context) (*models.Opinion, error)) (*models.Opinion, error) {
	start := time.Now()

	opinion, err := b.call(ctx, text, fn)

	attrs := []any{
		"detector", b.cfg.Name,
		"type", b.cfg.Type,
		"model", b.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
	}

	if err != nil {
		var de *Error
		if !errors.As(err, &de) {
			de = newError(KindOf(err), err)
		}
		de.Detector = b.cfg.Name

		slog.WarnContext(ctx, "detector failed", append(attrs, "kind", de.Kind, "error", de.Err)...)
		return nil, de
	}

	slog.DebugContext(ctx, "detector succeeded", append(attrs, "ai_probability", opinion.AIProbability, "confidence", opinion.Confidence)...)
	return opinion, nil
}

func (b *base) call(ctx context.Context, text string, fn func(ctx context.Context) (*models.Opinion, error)) (*models.Opinion, error) {
	if strings.TrimSpace(text) == "" {
		return nil, malformed("empty input text")
	}

	timeout := b.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opinion, err := fn(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && KindOf(err) != KindTimeout {
			return nil, newError(KindTimeout, err)
		}
		return nil, err
	}

	if opinion == nil {
		return nil, malformed("detector returned no opinion")
	}

	if err := opinion.Validate(); err != nil {
		return nil, malformed("%v", err)
	}

	opinion.Detector = b.cfg.Name
	if opinion.ModelID == "" {
		opinion.ModelID = b.cfg.Model
	}
	opinion.Weight = b.cfg.Weight
	opinion.Succeeded = true

	return opinion, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func requireAPIKey(cfg Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("detector '%s' (%s) requires an API key", cfg.Name, cfg.Type)
	}
	return nil
}
