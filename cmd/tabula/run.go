package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/tabula/internal/config"
	"github.com/jackzampolin/tabula/internal/jobs"
	"github.com/jackzampolin/tabula/internal/llmcall"
	"github.com/jackzampolin/tabula/internal/output"
	"github.com/jackzampolin/tabula/internal/prompts"
	"github.com/jackzampolin/tabula/internal/providers"
	"github.com/jackzampolin/tabula/internal/table"
)

var runFlags struct {
	profile      string
	template     string
	prompt       string
	promptFile   string
	columns      []string
	delimiter    string
	concurrency  int
	retries      int
	outputColumn string
	sheet        string
	errorLog     string
	noProgress   bool
}

var runCmd = &cobra.Command{
	Use:   "run INPUT OUTPUT",
	Short: "Run every row of a table through the model",
	Long: `Run every row of INPUT (.xlsx or .csv) through the selected model profile
and write the table, with the answers in a new column, to OUTPUT.

The prompt comes from --prompt, --prompt-file, --template, the configured
default template, or the built-in literature-screening template, in that
order. {merged_text} and {delimiter} are substituted per row.

Ctrl+C stops submitting rows and stops waiting for rows in flight; what has
been processed so far is still saved.

Examples:
  tabula run papers.xlsx out.xlsx --columns Title,Abstract
  tabula run papers.csv out.csv --columns Title --template my-screening --concurrency 5
  tabula run papers.xlsx out.xlsx --columns Title --prompt "Is {merged_text} about RNA? yes{delimiter}score"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		logger := svc.Logger
		cfg := svc.Config.Get()

		profile, err := cfg.ProfileName(runFlags.profile)
		if err != nil {
			return err
		}

		content, delimiter, err := resolvePrompt(cmd, svc.Templates, cfg)
		if err != nil {
			return err
		}
		for _, warning := range prompts.CheckPlaceholders(content) {
			logger.Warn("prompt template", "warning", warning)
		}

		client, err := svc.Registry.Client(ctx, profile)
		if err != nil {
			return err
		}
		limiter := svc.Registry.Limiter(profile)
		invoker := llmcall.NewInvoker(llmcall.Config{
			Client:   client,
			Limiter:  limiter,
			Recorder: svc.Recorder,
			Logger:   logger.With("profile", profile),
		})

		files := table.Files{Sheet: runFlags.sheet, Logger: logger}
		scheduler := jobs.NewScheduler(jobs.SchedulerConfig{
			Invoker: invoker,
			Loader:  files,
			Saver:   files,
			Logger:  logger,
		})

		req := jobs.RunRequest{
			InputPath:      args[0],
			OutputPath:     args[1],
			Columns:        runFlags.columns,
			Delimiter:      delimiter,
			PromptTemplate: content,
			OutputColumn:   flagOr(cmd, "output-column", runFlags.outputColumn, cfg.Defaults.OutputColumn),
			Concurrency:    intFlagOr(cmd, "concurrency", runFlags.concurrency, cfg.Defaults.Concurrency),
			MaxRetries:     intFlagOr(cmd, "retries", runFlags.retries, cfg.Defaults.MaxRetries),
		}

		bar := newRowBar(runFlags.noProgress)
		res, runErr := scheduler.Run(ctx, req, jobs.Callbacks{
			OnSnapshot: bar.update,
		})
		bar.finish()

		if runFlags.errorLog != "" && len(res.Failures) > 0 {
			if err := writeErrorLog(runFlags.errorLog, res.Failures); err != nil {
				logger.Warn("failed to write error log", "path", runFlags.errorLog, "error", err)
			}
		}

		report := runReport{
			Profile: profile,
			Result:  res,
			Calls:   svc.Recorder.Stats(),
		}
		if limiter != nil {
			st := limiter.Status()
			report.RateLimit = &st
		}
		if err := output.Print(report); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.profile, "profile", "", "model profile (default: defaults.profile from config)")
	f.StringVar(&runFlags.template, "template", "", "saved prompt template name")
	f.StringVar(&runFlags.prompt, "prompt", "", "prompt template text")
	f.StringVar(&runFlags.promptFile, "prompt-file", "", "read the prompt template from a file")
	f.StringSliceVar(&runFlags.columns, "columns", nil, "columns to merge into each row's text, in order (required)")
	f.StringVar(&runFlags.delimiter, "delimiter", "", "field delimiter the model must use (default: template's, then config's)")
	f.IntVar(&runFlags.concurrency, "concurrency", jobs.DefaultConcurrency, "concurrent model calls (1-100)")
	f.IntVar(&runFlags.retries, "retries", jobs.DefaultMaxRetries, "attempts per row")
	f.StringVar(&runFlags.outputColumn, "output-column", jobs.DefaultOutputColumn, "column the answers are written to")
	f.StringVar(&runFlags.sheet, "sheet", "", "worksheet to read (default: first)")
	f.StringVar(&runFlags.errorLog, "error-log", "", "write failed rows to this file")
	f.BoolVar(&runFlags.noProgress, "no-progress", false, "disable the progress bar")
	_ = runCmd.MarkFlagRequired("columns")
	runCmd.MarkFlagsMutuallyExclusive("prompt", "prompt-file", "template")
}

// runReport is what `tabula run` prints.
type runReport struct {
	Profile string        `json:"profile" yaml:"profile"`
	Result  *jobs.Result  `json:"result" yaml:"result"`
	Calls   llmcall.Stats `json:"calls" yaml:"calls"`

	RateLimit *providers.RateLimiterStatus `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// resolvePrompt picks the prompt content and delimiter for a run.
func resolvePrompt(cmd *cobra.Command, store *prompts.Store, cfg *config.Config) (content, delimiter string, err error) {
	var tmpl *prompts.Template
	switch {
	case runFlags.prompt != "":
		content = runFlags.prompt
	case runFlags.promptFile != "":
		data, err := os.ReadFile(runFlags.promptFile)
		if err != nil {
			return "", "", fmt.Errorf("failed to read prompt file: %w", err)
		}
		content = string(data)
	default:
		name := runFlags.template
		if name == "" {
			name = cfg.Defaults.Template
		}
		if name == "" {
			name = prompts.DefaultName
		}
		tmpl, err = store.Get(name)
		if err != nil {
			return "", "", err
		}
		content = tmpl.Content
	}

	switch {
	case cmd.Flags().Changed("delimiter"):
		delimiter = runFlags.delimiter
	case tmpl != nil && tmpl.Delimiter != "":
		delimiter = tmpl.Delimiter
	default:
		delimiter = cfg.Defaults.Delimiter
	}
	return content, delimiter, nil
}

func flagOr(cmd *cobra.Command, name, flagValue, configValue string) string {
	if cmd.Flags().Changed(name) || configValue == "" {
		return flagValue
	}
	return configValue
}

func intFlagOr(cmd *cobra.Command, name string, flagValue, configValue int) int {
	if cmd.Flags().Changed(name) || configValue == 0 {
		return flagValue
	}
	return configValue
}

func writeErrorLog(path string, failures []jobs.RowFailure) error {
	var b strings.Builder
	for _, f := range failures {
		fmt.Fprintf(&b, "row %d: %s\n", f.Row, f.Reason)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// rowBar renders run snapshots on stderr. The total is only known once
// the table is loaded, so the bar is created on the first update.
type rowBar struct {
	disabled  bool
	bar       *progressbar.ProgressBar
	completed int
	total     int
}

func newRowBar(disabled bool) *rowBar {
	return &rowBar{disabled: disabled}
}

func (b *rowBar) update(p jobs.Progress) {
	if b.disabled {
		return
	}
	if b.bar == nil {
		b.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(rowsLabel(p)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}
	b.completed, b.total = p.Completed, p.Total
	b.bar.Describe(rowsLabel(p))
	_ = b.bar.Set(p.Completed)
}

// rowsLabel describes a snapshot: failures so far and the remaining time.
func rowsLabel(p jobs.Progress) string {
	eta := "eta --"
	if p.ETA >= 0 {
		eta = "eta " + p.ETA.Round(time.Second).String()
	}
	if p.Failed > 0 {
		return fmt.Sprintf("rows (%d failed, %s)", p.Failed, eta)
	}
	return fmt.Sprintf("rows (%s)", eta)
}

func (b *rowBar) finish() {
	if b.bar == nil {
		return
	}
	// A cancelled run leaves the bar where it stopped.
	if b.completed == b.total {
		_ = b.bar.Finish()
	}
	fmt.Fprintln(os.Stderr)
}
