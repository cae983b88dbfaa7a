package utils

import (
	"context"
	"log/slog"

	copilot "github.com/github/copilot-sdk/go"
)

// SessionToSlog forwards Copilot session events to the default logger at
// debug level. Streaming deltas are dropped; the final message carries the
// same content.
func SessionToSlog(event copilot.SessionEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	if event.Data.DeltaContent != nil {
		return
	}

	attrs := []any{
		"source", "copilot",
		"type", event.Type,
	}

	attrs = addIf(attrs, "content", event.Data.Content)
	attrs = addIf(attrs, "toolName", event.Data.ToolName)
	attrs = addIf(attrs, "toolCallID", event.Data.ToolCallID)
	attrs = addIf(attrs, "reasoningText", event.Data.ReasoningText)

	slog.Debug("copilot session event", attrs...)
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name, *v)
	}

	return attrs
}
