package detectors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/veracity/internal/models"
	"github.com/spboyer/veracity/internal/utils"
)

const (
	DefaultCopilotModel = "gpt-4.1"
	reportToolName      = "report_ai_detection"
)

// CopilotDetectorOptions allows tests to swap in a fake client.
type CopilotDetectorOptions struct {
	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// copilotDetector asks a model through the Copilot SDK, using the logged-in
// user's credentials. The model reports its verdict by calling a tool, which
// avoids parsing free text.
type copilotDetector struct {
	base
	newClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// NewCopilotDetector creates a Copilot-backed detector. options may be nil.
func NewCopilotDetector(cfg Config, options *CopilotDetectorOptions) (*copilotDetector, error) {
	cfg.Model = withDefault(cfg.Model, DefaultCopilotModel)

	d := &copilotDetector{
		base:      base{cfg: cfg},
		newClient: newCopilotClient,
	}

	if options != nil && options.NewCopilotClient != nil {
		d.newClient = options.NewCopilotClient
	}

	return d, nil
}

func (d *copilotDetector) Detect(ctx context.Context, text string) (*models.Opinion, error) {
	return d.run(ctx, text, func(ctx context.Context) (*models.Opinion, error) {
		client := d.newClient(&copilot.ClientOptions{
			AutoStart:       utils.Ptr(true),
			AutoRestart:     utils.Ptr(true),
			UseLoggedInUser: utils.Ptr(true),
			LogLevel:        "error",
		})

		defer func() {
			if err := client.Stop(); err != nil {
				slog.ErrorContext(ctx, "error stopping copilot client", "detector", d.Name(), "error", err)
			}
		}()

		report := &verdictReport{}

		session, err := client.CreateSession(ctx, &copilot.SessionConfig{
			Model:     d.cfg.Model,
			Streaming: true,
			Tools:     []copilot.Tool{report.tool()},
		})
		if err != nil {
			return nil, newError(KindUnavailable, fmt.Errorf("starting copilot session: %w", err))
		}

		unregister := session.On(utils.SessionToSlog)
		defer unregister()

		prompt := systemPrompt + "\n\nInstead of replying with JSON, call the " + reportToolName +
			" tool exactly once with those fields.\n\n" + userPrompt(text)

		if _, err := session.SendAndWait(ctx, copilot.MessageOptions{
			Prompt: prompt,
			Mode:   "enqueue",
		}); err != nil {
			if ctx.Err() != nil {
				return nil, newError(KindTimeout, err)
			}
			return nil, classifyCopilotError(err)
		}

		return report.result()
	})
}

// classifyCopilotError maps SDK failures onto the detector error taxonomy.
// The SDK does not expose typed errors, so this inspects the message.
func classifyCopilotError(err error) *Error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "not logged in") || strings.Contains(msg, "authentication"):
		return newError(KindAuthFailure, err)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return newError(KindRateLimited, err)
	default:
		return newError(KindUnavailable, err)
	}
}

// verdictReport collects the arguments of the report tool call.
type verdictReport struct {
	mu      sync.Mutex
	opinion *models.Opinion
	err     error
}

func (r *verdictReport) tool() copilot.Tool {
	return copilot.Tool{
		Name:        reportToolName,
		Description: "Reports the AI-content detection verdict for the analyzed text. Call this exactly once.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ai_probability": map[string]any{
					"type":        "number",
					"description": "Overall likelihood (0-100) that the text is AI-generated",
				},
				"breakdown": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"ai_generated": map[string]any{"type": "number"},
						"mixed":        map[string]any{"type": "number"},
						"human":        map[string]any{"type": "number"},
					},
					"required": []string{"ai_generated", "mixed", "human"},
				},
				"confidence": map[string]any{
					"type": "string",
					"enum": []string{"low", "moderate", "high"},
				},
			},
			"required": []string{"ai_probability", "breakdown", "confidence"},
		},
		Handler: func(invocation copilot.ToolInvocation) (copilot.ToolResult, error) {
			var args map[string]any

			r.mu.Lock()
			defer r.mu.Unlock()

			if err := mapstructure.Decode(invocation.Arguments, &args); err != nil {
				r.err = malformed("report tool arguments: %v", err)
				return copilot.ToolResult{}, nil
			}

			r.opinion, r.err = opinionFromMap(args)
			return copilot.ToolResult{}, nil
		},
	}
}

func (r *verdictReport) result() (*models.Opinion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	if r.opinion == nil {
		return nil, malformed("model did not call %s", reportToolName)
	}

	return r.opinion, nil
}
