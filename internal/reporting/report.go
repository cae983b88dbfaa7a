// Package reporting renders consensus results for the terminal and for
// machine consumption.
package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spboyer/veracity/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format selects how a result is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", s)
	}
}

const barWidth = 30

var printer = message.NewPrinter(language.English)

// Meta is optional context printed alongside a result.
type Meta struct {
	WordCount int
	Cached    bool
	HistoryID string
}

// Write renders result in the requested format.
func Write(w io.Writer, format Format, result *models.ConsensusResult, meta Meta) error {
	if format == FormatJSON {
		return WriteJSON(w, result)
	}
	_, err := io.WriteString(w, RenderText(result, meta))
	return err
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// InterpretScore explains an overall 0-100 score in plain language.
func InterpretScore(score int) string {
	switch {
	case score >= 85:
		return "Almost certainly machine-written"
	case score >= 70:
		return "Probably machine-written"
	case score >= 40:
		return "Could go either way; review by hand"
	case score >= 20:
		return "Probably human-written"
	default:
		return "Almost certainly human-written"
	}
}

// RenderText produces the human-readable report.
func RenderText(r *models.ConsensusResult, meta Meta) string {
	var b strings.Builder

	b.WriteString("=== AI Content Detection ===\n\n")
	printer.Fprintf(&b, "Score:      %d/100 %s\n", r.OverallScore, bar(r.OverallScore))
	printer.Fprintf(&b, "Verdict:    %s\n", r.Label)
	printer.Fprintf(&b, "Risk:       %s (confidence: %s)\n", r.RiskLevel, r.Confidence)
	printer.Fprintf(&b, "Meaning:    %s\n", InterpretScore(r.OverallScore))
	printer.Fprintf(&b, "Models:     %d of %d responded\n", r.ContributingModels.Succeeded, r.ContributingModels.Total)
	if meta.WordCount > 0 {
		printer.Fprintf(&b, "Words:      %d\n", meta.WordCount)
	}
	if meta.Cached {
		b.WriteString("Source:     cache\n")
	}
	if meta.HistoryID != "" {
		printer.Fprintf(&b, "Saved as:   %s\n", meta.HistoryID)
	}

	b.WriteString("\nBreakdown:\n")
	rows := [][]string{
		{"AI-generated", printer.Sprintf("%d%%", r.Breakdown.AIGenerated)},
		{"Mixed", printer.Sprintf("%d%%", r.Breakdown.Mixed)},
		{"Human", printer.Sprintf("%d%%", r.Breakdown.Human)},
	}
	writeTable(&b, nil, rows)

	if len(r.Opinions) > 0 {
		b.WriteString("\nDetectors:\n")
		var opinionRows [][]string
		for _, o := range r.Opinions {
			opinionRows = append(opinionRows, opinionRow(o))
		}
		writeTable(&b, []string{"", "name", "model", "weight", "ai %", "confidence"}, opinionRows)
	}

	return b.String()
}

func opinionRow(o models.Opinion) []string {
	if !o.Succeeded {
		reason := o.ErrorKind
		if o.Error != "" {
			reason += ": " + runewidth.Truncate(o.Error, 40, "…")
		}
		return []string{"✗", o.Detector, o.ModelID, printer.Sprintf("%.2f", o.Weight), "-", reason}
	}
	return []string{
		"✓",
		o.Detector,
		o.ModelID,
		printer.Sprintf("%.2f", o.Weight),
		printer.Sprintf("%.1f", o.AIProbability),
		string(o.Confidence),
	}
}

func bar(score int) string {
	filled := max(0, min(barWidth, score*barWidth/100))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

// writeTable left-aligns columns by display width so wide runes line up.
func writeTable(b *strings.Builder, header []string, rows [][]string) {
	all := rows
	if header != nil {
		all = append([][]string{header}, rows...)
	}

	var widths []int
	for _, row := range all {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range all {
		b.WriteString("  ")
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}
}
