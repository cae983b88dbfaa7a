package detectors

import (
	"context"
	"errors"
	"math"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/spboyer/veracity/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	testCases := []struct {
		cfg  Config
		kind Type
	}{
		{Config{Name: "a", Type: TypeOpenAI, APIKey: "k", Weight: 1}, TypeOpenAI},
		{Config{Name: "b", Type: TypeAnthropic, APIKey: "k", Weight: 1}, TypeAnthropic},
		{Config{Name: "c", Type: TypeHuggingFace, APIKey: "k", Weight: 1}, TypeHuggingFace},
		{Config{Name: "d", Type: TypeCopilot, Weight: 1}, TypeCopilot},
		{Config{Name: "e", Type: TypeOffline, Weight: 1}, TypeOffline},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			d, err := Create(tc.cfg)
			require.NoError(t, err)
			require.Equal(t, tc.cfg.Name, d.Name())
			require.Equal(t, tc.kind, d.Type())
			require.Equal(t, 1.0, d.Weight())
		})
	}
}

func TestCreate_Errors(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		msg  string
	}{
		{"no name", Config{Type: TypeOffline, Weight: 1}, "name is required"},
		{"zero weight", Config{Name: "x", Type: TypeOffline}, "positive finite weight"},
		{"negative weight", Config{Name: "x", Type: TypeOffline, Weight: -0.5}, "positive finite weight"},
		{"NaN weight", Config{Name: "x", Type: TypeOffline, Weight: math.NaN()}, "positive finite weight"},
		{"infinite weight", Config{Name: "x", Type: TypeOffline, Weight: math.Inf(1)}, "positive finite weight"},
		{"unknown type", Config{Name: "x", Type: "gemini", Weight: 1}, "'gemini' is not a valid detector type"},
		{"missing key", Config{Name: "x", Type: TypeOpenAI, Weight: 1}, "requires an API key"},
		{"bad params", Config{Name: "x", Type: TypeOpenAI, APIKey: "k", Weight: 1, Params: map[string]any{"max_tokens": "lots"}}, "detector 'x'"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Create(tc.cfg)
			require.ErrorContains(t, err, tc.msg)
		})
	}
}

func TestBase_Run(t *testing.T) {
	b := &base{cfg: Config{Name: "stub", Type: TypeOffline, Model: "stub-1", Weight: 0.5, Timeout: 20 * time.Millisecond}}

	t.Run("stamps identity", func(t *testing.T) {
		opinion, err := b.run(context.Background(), "text", func(ctx context.Context) (*models.Opinion, error) {
			return &models.Opinion{AIProbability: 40, Breakdown: &models.Breakdown{AIGenerated: 40, Human: 60}, Confidence: models.ConfidenceLow}, nil
		})
		require.NoError(t, err)
		require.Equal(t, "stub", opinion.Detector)
		require.Equal(t, "stub-1", opinion.ModelID)
		require.Equal(t, 0.5, opinion.Weight)
		require.True(t, opinion.Succeeded)
	})

	t.Run("out of range probability", func(t *testing.T) {
		_, err := b.run(context.Background(), "text", func(ctx context.Context) (*models.Opinion, error) {
			return &models.Opinion{AIProbability: 140, Breakdown: &models.Breakdown{Human: 100}}, nil
		})
		requireKind(t, err, KindMalformedResponse)
	})

	t.Run("nil opinion", func(t *testing.T) {
		_, err := b.run(context.Background(), "text", func(ctx context.Context) (*models.Opinion, error) {
			return nil, nil
		})
		requireKind(t, err, KindMalformedResponse)
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		_, err := b.run(context.Background(), "text", func(ctx context.Context) (*models.Opinion, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("waiting: %w", ctx.Err())
		})
		requireKind(t, err, KindTimeout)

		var de *Error
		require.ErrorAs(t, err, &de)
		require.Equal(t, "stub", de.Detector)
	})

	t.Run("plain errors are unavailable", func(t *testing.T) {
		_, err := b.run(context.Background(), "text", func(ctx context.Context) (*models.Opinion, error) {
			return nil, errors.New("boom")
		})
		requireKind(t, err, KindUnavailable)
	})
}

func TestKindForStatus(t *testing.T) {
	require.Equal(t, KindAuthFailure, kindForStatus(http.StatusUnauthorized))
	require.Equal(t, KindAuthFailure, kindForStatus(http.StatusForbidden))
	require.Equal(t, KindRateLimited, kindForStatus(http.StatusTooManyRequests))
	require.Equal(t, KindTimeout, kindForStatus(http.StatusGatewayTimeout))
	require.Equal(t, KindUnavailable, kindForStatus(http.StatusServiceUnavailable))
	require.Equal(t, KindUnavailable, kindForStatus(http.StatusBadRequest))
}

func TestError_Retryable(t *testing.T) {
	require.True(t, (&Error{Kind: KindRateLimited, StatusCode: 429}).retryable())
	require.True(t, (&Error{Kind: KindUnavailable}).retryable())
	require.True(t, (&Error{Kind: KindUnavailable, StatusCode: 503}).retryable())
	require.False(t, (&Error{Kind: KindUnavailable, StatusCode: 400}).retryable())
	require.False(t, (&Error{Kind: KindAuthFailure, StatusCode: 401}).retryable())
	require.False(t, (&Error{Kind: KindTimeout}).retryable())
}

func TestError_Message(t *testing.T) {
	err := &Error{Detector: "gpt", Kind: KindTimeout, Err: context.DeadlineExceeded}
	require.Equal(t, "detector gpt: timeout: context deadline exceeded", err.Error())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
}
