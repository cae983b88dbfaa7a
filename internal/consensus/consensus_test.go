package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spboyer/veracity/internal/detectors"
	"github.com/spboyer/veracity/internal/models"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	name    string
	weight  float64
	opinion *models.Opinion
	err     error
	delay   time.Duration
	panics  bool
	calls   atomic.Int32
}

var _ detectors.Detector = (*stubDetector)(nil)

func (s *stubDetector) Name() string         { return s.name }
func (s *stubDetector) Type() detectors.Type { return detectors.TypeOffline }
func (s *stubDetector) Weight() float64      { return s.weight }

func (s *stubDetector) Detect(ctx context.Context, text string) (*models.Opinion, error) {
	s.calls.Add(1)

	if s.panics {
		panic("boom")
	}

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &detectors.Error{Detector: s.name, Kind: detectors.KindTimeout, Err: ctx.Err()}
		case <-time.After(s.delay):
		}
	}

	if s.err != nil {
		return nil, s.err
	}

	o := *s.opinion
	o.Detector = s.name
	o.Weight = s.weight
	o.Succeeded = true
	return &o, nil
}

func stubOK(name string, weight, p float64, b models.Breakdown, c models.Confidence) *stubDetector {
	return &stubDetector{
		name:    name,
		weight:  weight,
		opinion: &models.Opinion{AIProbability: p, Breakdown: &b, Confidence: c},
	}
}

func stubFail(name string, weight float64, kind detectors.ErrorKind) *stubDetector {
	return &stubDetector{
		name:   name,
		weight: weight,
		err:    &detectors.Error{Detector: name, Kind: kind, Err: errors.New("upstream said no")},
	}
}

func TestNew_SetupInvariants(t *testing.T) {
	testCases := []struct {
		name string
		dets []detectors.Detector
		msg  string
	}{
		{"empty", nil, "at least one detector"},
		{"duplicate names", []detectors.Detector{stubFail("a", 0.5, detectors.KindTimeout), stubFail("a", 0.5, detectors.KindTimeout)}, `duplicate detector name "a"`},
		{"zero weight", []detectors.Detector{stubFail("a", 1, detectors.KindTimeout), stubFail("b", 0, detectors.KindTimeout)}, "invalid weight"},
		{"NaN weight", []detectors.Detector{stubFail("a", 0.6, detectors.KindTimeout), stubFail("b", math.NaN(), detectors.KindTimeout)}, "invalid weight NaN"},
		{"infinite weight", []detectors.Detector{stubFail("a", 0.6, detectors.KindTimeout), stubFail("b", math.Inf(1), detectors.KindTimeout)}, "invalid weight +Inf"},
		{"weights do not sum to 1", []detectors.Detector{stubFail("a", 0.5, detectors.KindTimeout), stubFail("b", 0.6, detectors.KindTimeout)}, "weights sum to"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.dets)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			require.ErrorContains(t, err, tc.msg)
		})
	}

	_, err := New([]detectors.Detector{stubFail("a", 0.40, detectors.KindTimeout), stubFail("b", 0.35, detectors.KindTimeout), stubFail("c", 0.25, detectors.KindTimeout)})
	require.NoError(t, err)
}

func TestDetect_PartialFailure(t *testing.T) {
	openai := stubOK("openai", 0.40, 80, models.Breakdown{AIGenerated: 70, Mixed: 20, Human: 10}, models.ConfidenceHigh)
	anthropic := stubFail("anthropic", 0.35, detectors.KindRateLimited)
	hf := stubOK("huggingface", 0.25, 20, models.Breakdown{AIGenerated: 10, Mixed: 10, Human: 80}, models.ConfidenceLow)

	agg, err := New([]detectors.Detector{openai, anthropic, hf})
	require.NoError(t, err)

	result, err := agg.Detect(context.Background(), "some text")
	require.NoError(t, err)
	require.Equal(t, 57, result.OverallScore)
	require.Equal(t, 100, result.Breakdown.Sum())
	require.Equal(t, models.ContributingModels{Succeeded: 2, Total: 3}, result.ContributingModels)
	require.Equal(t, []string{"openai", "anthropic", "huggingface"}, []string{result.Opinions[0].Detector, result.Opinions[1].Detector, result.Opinions[2].Detector})
	require.Equal(t, string(detectors.KindRateLimited), result.Opinions[1].ErrorKind)
	require.Equal(t, 0.35, result.Opinions[1].Weight)

	for _, d := range []*stubDetector{openai, anthropic, hf} {
		require.Equal(t, int32(1), d.calls.Load(), d.name)
	}
}

func TestDetect_AllFailed(t *testing.T) {
	agg, err := New([]detectors.Detector{
		stubFail("openai", 0.40, detectors.KindAuthFailure),
		stubFail("anthropic", 0.35, detectors.KindTimeout),
		stubFail("huggingface", 0.25, detectors.KindMalformedResponse),
	})
	require.NoError(t, err)

	result, err := agg.Detect(context.Background(), "some text")
	require.Nil(t, result)
	require.ErrorIs(t, err, ErrAllModelsFailed)

	var amf *AllModelsFailedError
	require.ErrorAs(t, err, &amf)
	require.Len(t, amf.Failures, 3)
	require.Equal(t, detectors.KindAuthFailure, amf.Failures[0].Kind)
	require.Contains(t, amf.Failures[0].Reason, "upstream said no")
}

func TestDetect_CompletionOrderDoesNotMatter(t *testing.T) {
	build := func(delays [3]time.Duration) *Aggregator {
		a := stubOK("a", 0.40, 66, models.Breakdown{AIGenerated: 50, Mixed: 30, Human: 20}, models.ConfidenceHigh)
		b := stubOK("b", 0.35, 33, models.Breakdown{AIGenerated: 20, Mixed: 30, Human: 50}, models.ConfidenceModerate)
		c := stubOK("c", 0.25, 91, models.Breakdown{AIGenerated: 85, Mixed: 5, Human: 10}, models.ConfidenceHigh)
		a.delay, b.delay, c.delay = delays[0], delays[1], delays[2]

		agg, err := New([]detectors.Detector{a, b, c})
		require.NoError(t, err)
		return agg
	}

	first, err := build([3]time.Duration{30 * time.Millisecond, 15 * time.Millisecond, time.Millisecond}).Detect(context.Background(), "x")
	require.NoError(t, err)

	second, err := build([3]time.Duration{time.Millisecond, 15 * time.Millisecond, 30 * time.Millisecond}).Detect(context.Background(), "x")
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	require.JSONEq(t, string(firstJSON), string(secondJSON))
}

func TestDetect_SlowDetectorDoesNotBlockOthers(t *testing.T) {
	slow := stubOK("slow", 0.5, 90, models.Breakdown{AIGenerated: 90, Human: 10}, models.ConfidenceHigh)
	slow.delay = 5 * time.Second
	fast := stubOK("fast", 0.5, 10, models.Breakdown{AIGenerated: 10, Human: 90}, models.ConfidenceHigh)

	agg, err := New([]detectors.Detector{slow, fast}, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	result, err := agg.Detect(context.Background(), "x")
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, 10, result.OverallScore)
	require.Equal(t, string(detectors.KindTimeout), result.Opinions[0].ErrorKind)
}

func TestDetect_CancelledRequest(t *testing.T) {
	a := stubOK("a", 0.5, 90, models.Breakdown{AIGenerated: 90, Human: 10}, models.ConfidenceHigh)
	b := stubOK("b", 0.5, 90, models.Breakdown{AIGenerated: 90, Human: 10}, models.ConfidenceHigh)
	a.delay, b.delay = time.Minute, time.Minute

	agg, err := New([]detectors.Detector{a, b})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = agg.Detect(ctx, "x")
	require.ErrorIs(t, err, ErrAllModelsFailed)
}

func TestDetect_PanickingDetector(t *testing.T) {
	bad := &stubDetector{name: "bad", weight: 0.5, panics: true}
	good := stubOK("good", 0.5, 42, models.Breakdown{AIGenerated: 42, Human: 58}, models.ConfidenceModerate)

	agg, err := New([]detectors.Detector{bad, good})
	require.NoError(t, err)

	result, err := agg.Detect(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, 42, result.OverallScore)
	require.Contains(t, result.Opinions[0].Error, "panicked")
}

func TestDetect_OfflineEnsemble(t *testing.T) {
	var dets []detectors.Detector
	for _, cfg := range []detectors.Config{
		{Name: "openai", Type: detectors.TypeOffline, Weight: 0.40},
		{Name: "anthropic", Type: detectors.TypeOffline, Weight: 0.35},
		{Name: "huggingface", Type: detectors.TypeOffline, Weight: 0.25},
	} {
		d, err := detectors.Create(cfg)
		require.NoError(t, err)
		dets = append(dets, d)
	}

	agg, err := New(dets)
	require.NoError(t, err)

	text := "Artificial intelligence has transformed many industries. It offers new opportunities. It also raises new questions."

	first, err := agg.Detect(context.Background(), text)
	require.NoError(t, err)
	second, err := agg.Detect(context.Background(), text)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 3, first.ContributingModels.Succeeded)
	require.Equal(t, 100, first.Breakdown.Sum())
}

func TestFingerprint(t *testing.T) {
	mk := func(weights ...float64) *Aggregator {
		var dets []detectors.Detector
		for i, w := range weights {
			d, err := detectors.Create(detectors.Config{Name: string(rune('a' + i)), Type: detectors.TypeOffline, Weight: w})
			require.NoError(t, err)
			dets = append(dets, d)
		}
		agg, err := New(dets)
		require.NoError(t, err)
		return agg
	}

	require.Equal(t, mk(0.5, 0.5).Fingerprint(), mk(0.5, 0.5).Fingerprint())
	require.NotEqual(t, mk(0.5, 0.5).Fingerprint(), mk(0.6, 0.4).Fingerprint())
	require.Len(t, mk(1).Fingerprint(), 16)
}
