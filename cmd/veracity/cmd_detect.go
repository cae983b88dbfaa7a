package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spboyer/veracity/internal/cache"
	"github.com/spboyer/veracity/internal/history"
	"github.com/spboyer/veracity/internal/models"
	"github.com/spboyer/veracity/internal/reporting"
	"github.com/spboyer/veracity/internal/spinner"
	"github.com/spboyer/veracity/internal/textprep"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type detectOptions struct {
	file    string
	format  string
	offline bool
	noCache  bool
	save     bool
	markdown bool
}

func newDetectCommand() *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:   "detect [text]",
		Short: "Score a text for AI authorship",
		Long: `Score a text for AI authorship using every configured detector.

The text is taken from the arguments, from --file, or from standard input
when it is piped. Markdown files (or any input with --markdown) are reduced to
their prose first. Exits with status 1 when no detector could produce an
opinion.`,
		Example: `  veracity detect "Some paragraph to check"
  veracity detect --file essay.txt --format json
  cat essay.txt | veracity detect --offline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return detectCommandE(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the text from a file")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use the local heuristic instead of provider APIs")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Skip the result cache")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Record the result in the history directory")
	cmd.Flags().BoolVar(&opts.markdown, "markdown", false, "Strip Markdown syntax and code before scoring (automatic for .md files)")

	return cmd
}

func detectCommandE(cmd *cobra.Command, args []string, opts detectOptions) error {
	format, err := reporting.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	text, err := readInput(cmd.InOrStdin(), args, opts.file)
	if err != nil {
		return err
	}

	if opts.markdown || textprep.IsMarkdownFile(opts.file) {
		if text = textprep.MarkdownToPlain([]byte(text)); text == "" {
			return errors.New("no prose left after removing Markdown syntax and code")
		}
	}

	cfg, err := loadProject()
	if err != nil {
		return err
	}

	words := len(strings.Fields(text))
	if limit := cfg.Defaults.MaxWords; limit > 0 && words > limit {
		return fmt.Errorf("text has %d words, the limit is %d (defaults.max_words)", words, limit)
	}

	agg, err := buildEnsemble(cfg, opts.offline)
	if err != nil {
		return err
	}

	var (
		result *models.ConsensusResult
		cached bool
		c      cache.Cache
	)

	if !opts.noCache {
		if c, err = openCache(cfg); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	stop := spinner.StartOnTerminal(cmd.ErrOrStderr(), fmt.Sprintf("Asking %d detectors", len(agg.Detectors())))
	if c != nil {
		defer closeCache(c)
		result, cached, err = cache.NewCachedDetector(agg, c).DetectWithSource(ctx, text)
	} else {
		result, err = agg.Detect(ctx, text)
	}
	stop()
	if err != nil {
		return err
	}

	meta := reporting.Meta{WordCount: words, Cached: cached}

	if opts.save {
		rec := &history.Record{InputText: text, WordCount: words, Result: result}
		if err := history.NewFileStore(cfg.Server.HistoryDir).Save(rec); err != nil {
			return fmt.Errorf("saving to history: %w", err)
		}
		meta.HistoryID = rec.ID
	}

	return reporting.Write(cmd.OutOrStdout(), format, result, meta)
}

// readInput picks the text from args, a file, or piped stdin, in that order.
func readInput(stdin io.Reader, args []string, file string) (string, error) {
	var text string

	switch {
	case len(args) > 0 && file != "":
		return "", errors.New("pass text as an argument or with --file, not both")
	case len(args) > 0:
		text = strings.Join(args, " ")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		text = string(data)
	default:
		if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return "", errors.New("no text given: pass it as an argument, with --file, or on stdin")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	if strings.TrimSpace(text) == "" {
		return "", errors.New("text is empty")
	}
	return text, nil
}
