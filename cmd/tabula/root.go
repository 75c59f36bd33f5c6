package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/tabula/internal/config"
	"github.com/jackzampolin/tabula/internal/home"
	"github.com/jackzampolin/tabula/internal/llmcall"
	"github.com/jackzampolin/tabula/internal/output"
	"github.com/jackzampolin/tabula/internal/prompts"
	"github.com/jackzampolin/tabula/internal/providers"
	"github.com/jackzampolin/tabula/internal/svcctx"
	"github.com/jackzampolin/tabula/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "tabula",
	Short: "Enrich spreadsheet rows with LLM responses",
	Long: `Tabula sends every row of a spreadsheet through a chat model and writes
the answers back as a new column.

Selected columns are merged into one text per row, rendered into a prompt
template, and sent to an OpenAI-compatible or Gemini endpoint with bounded
retries. Identical rows are only sent once. Replies must contain the
delimiter to count as valid; anything else is recorded as FAIL<d>FAIL.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.tabula/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "tabula home directory (default: ~/.tabula)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		output.SetFormat(format)

		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))

		// A .env in the working directory feeds ${ENV_VAR} references in
		// the config. Its absence is normal.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to load .env", "error", err)
		}
		return nil
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(configCmd)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// loadServices builds the shared services once per invocation and
// attaches them to the command context.
func loadServices(cmd *cobra.Command) (*svcctx.Services, error) {
	if s := svcctx.ServicesFrom(cmd.Context()); s != nil {
		return s, nil
	}

	logger := slog.Default()

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}
	if f := mgr.ConfigFile(); f != "" {
		logger.Debug("loaded config", "file", f)
	}

	s := &svcctx.Services{
		Config:    mgr,
		Registry:  providers.NewRegistry(mgr.Get().ToProfiles(), logger),
		Templates: prompts.NewStore(h.TemplatesPath(), logger),
		Recorder:  llmcall.NewRecorder(),
		Logger:    logger,
		Home:      h,
	}
	cmd.SetContext(svcctx.WithServices(cmd.Context(), s))
	return s, nil
}
