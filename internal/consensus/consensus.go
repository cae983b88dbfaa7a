// Package consensus asks every configured detector about a text in parallel
// and combines the opinions that came back into a single weighted verdict.
package consensus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/spboyer/veracity/internal/detectors"
	"github.com/spboyer/veracity/internal/models"
	"golang.org/x/sync/errgroup"
)

// WeightTolerance is how far the configured weights may drift from 1.0.
const WeightTolerance = 1e-6

// Aggregator runs a fixed ensemble of detectors. It holds no per-request
// state and is safe for concurrent use.
type Aggregator struct {
	detectors []detectors.Detector
	timeout   time.Duration
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout bounds a whole Detect call on top of the per-detector timeouts.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.timeout = d
	}
}

// New validates the ensemble and returns an Aggregator for it.
func New(dets []detectors.Detector, opts ...Option) (*Aggregator, error) {
	if len(dets) == 0 {
		return nil, &ConfigError{Reason: "at least one detector is required"}
	}

	seen := map[string]bool{}
	var total float64

	for _, d := range dets {
		if seen[d.Name()] {
			return nil, &ConfigError{Reason: fmt.Sprintf("duplicate detector name %q", d.Name())}
		}
		seen[d.Name()] = true

		if !detectors.ValidWeight(d.Weight()) {
			return nil, &ConfigError{Reason: fmt.Sprintf("detector %q has invalid weight %v, must be positive and finite", d.Name(), d.Weight())}
		}
		total += d.Weight()
	}

	if math.Abs(total-1) > WeightTolerance {
		return nil, &ConfigError{Reason: fmt.Sprintf("weights sum to %v, expected 1.0", total)}
	}

	a := &Aggregator{detectors: dets}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Detectors returns the configured ensemble in order.
func (a *Aggregator) Detectors() []detectors.Detector {
	return a.detectors
}

// Fingerprint identifies the ensemble (names, types, models and weights).
// Two aggregators with the same fingerprint give the same result for the
// same opinions, so it is safe to use in cache keys.
func (a *Aggregator) Fingerprint() string {
	h := sha256.New()
	for _, d := range a.detectors {
		model := ""
		if m, ok := d.(interface{ Model() string }); ok {
			model = m.Model()
		}
		fmt.Fprintf(h, "%s|%s|%s|%g\n", d.Name(), d.Type(), model, d.Weight())
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Detect queries every detector concurrently, waits for all of them to
// settle, and aggregates whatever succeeded. Individual failures are
// recorded in the result; only a total failure is returned as an error.
func (a *Aggregator) Detect(ctx context.Context, text string) (*models.ConsensusResult, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	opinions := make([]models.Opinion, len(a.detectors))

	// goroutines never return an error, so one failure can't cancel the others
	var g errgroup.Group

	for i, d := range a.detectors {
		g.Go(func() error {
			opinions[i] = invoke(ctx, d, text)
			return nil
		})
	}

	_ = g.Wait()

	result, err := Aggregate(opinions)
	if err != nil {
		slog.WarnContext(ctx, "all detectors failed", "detectors", len(opinions), "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	slog.InfoContext(ctx, "consensus reached",
		"score", result.OverallScore,
		"category", result.Category,
		"succeeded", result.ContributingModels.Succeeded,
		"total", result.ContributingModels.Total,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

func invoke(ctx context.Context, d detectors.Detector, text string) (opinion models.Opinion) {
	defer func() {
		if r := recover(); r != nil {
			opinion = failedOpinion(d, detectors.KindUnavailable, fmt.Errorf("detector panicked: %v", r))
		}
	}()

	o, err := d.Detect(ctx, text)
	if err != nil {
		return failedOpinion(d, detectors.KindOf(err), err)
	}

	if o == nil {
		return failedOpinion(d, detectors.KindMalformedResponse, errors.New("detector returned no opinion"))
	}

	return *o
}

func failedOpinion(d detectors.Detector, kind detectors.ErrorKind, err error) models.Opinion {
	return models.Opinion{
		Detector:  d.Name(),
		Weight:    d.Weight(),
		Succeeded: false,
		Error:     err.Error(),
		ErrorKind: string(kind),
	}
}
