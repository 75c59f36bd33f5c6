package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tabula/internal/config"
	"github.com/jackzampolin/tabula/internal/jobs"
	"github.com/jackzampolin/tabula/internal/prompts"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteErrorLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error_log.txt")
	err := writeErrorLog(path, []jobs.RowFailure{
		{Row: 2, Reason: jobs.ReasonEmptyResponse},
		{Row: 7, Reason: jobs.ReasonMissingDelimiter},
	})
	if err != nil {
		t.Fatalf("writeErrorLog() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "row 2: empty response\nrow 7: missing delimiter\n"
	if string(data) != want {
		t.Errorf("error log = %q, want %q", data, want)
	}
}

func newTestRunCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().StringVar(&runFlags.delimiter, "delimiter", "", "")
	cmd.Flags().IntVar(&runFlags.concurrency, "concurrency", jobs.DefaultConcurrency, "")
	return cmd
}

func TestResolvePrompt(t *testing.T) {
	store := prompts.NewStore(t.TempDir(), slog.New(slog.DiscardHandler))
	if _, err := store.Save(prompts.Template{Name: "hash", Content: "Q {merged_text} {delimiter}", Delimiter: "#"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	cfg := config.DefaultConfig()

	reset := func() {
		runFlags.prompt, runFlags.promptFile, runFlags.template, runFlags.delimiter = "", "", "", ""
	}
	t.Cleanup(reset)

	t.Run("built-in default", func(t *testing.T) {
		reset()
		content, delim, err := resolvePrompt(newTestRunCmd(), store, cfg)
		if err != nil {
			t.Fatalf("resolvePrompt() error = %v", err)
		}
		if content != prompts.DefaultTemplate().Content || delim != "|" {
			t.Errorf("got delimiter %q and %d bytes of content", delim, len(content))
		}
	})

	t.Run("saved template carries its delimiter", func(t *testing.T) {
		reset()
		runFlags.template = "hash"
		content, delim, err := resolvePrompt(newTestRunCmd(), store, cfg)
		if err != nil {
			t.Fatalf("resolvePrompt() error = %v", err)
		}
		if content != "Q {merged_text} {delimiter}" || delim != "#" {
			t.Errorf("resolvePrompt() = %q, %q", content, delim)
		}
	})

	t.Run("explicit delimiter wins", func(t *testing.T) {
		reset()
		runFlags.template = "hash"
		cmd := newTestRunCmd()
		if err := cmd.Flags().Set("delimiter", ";"); err != nil {
			t.Fatal(err)
		}
		_, delim, err := resolvePrompt(cmd, store, cfg)
		if err != nil {
			t.Fatalf("resolvePrompt() error = %v", err)
		}
		if delim != ";" {
			t.Errorf("delimiter = %q, want ;", delim)
		}
	})

	t.Run("inline prompt uses config delimiter", func(t *testing.T) {
		reset()
		runFlags.prompt = "inline {merged_text}"
		content, delim, err := resolvePrompt(newTestRunCmd(), store, cfg)
		if err != nil {
			t.Fatalf("resolvePrompt() error = %v", err)
		}
		if content != "inline {merged_text}" || delim != cfg.Defaults.Delimiter {
			t.Errorf("resolvePrompt() = %q, %q", content, delim)
		}
	})

	t.Run("prompt file", func(t *testing.T) {
		reset()
		path := filepath.Join(t.TempDir(), "prompt.txt")
		if err := os.WriteFile(path, []byte("from file {merged_text}"), 0o644); err != nil {
			t.Fatal(err)
		}
		runFlags.promptFile = path
		content, _, err := resolvePrompt(newTestRunCmd(), store, cfg)
		if err != nil {
			t.Fatalf("resolvePrompt() error = %v", err)
		}
		if content != "from file {merged_text}" {
			t.Errorf("content = %q", content)
		}
	})

	t.Run("unknown template", func(t *testing.T) {
		reset()
		runFlags.template = "missing"
		if _, _, err := resolvePrompt(newTestRunCmd(), store, cfg); err == nil {
			t.Error("expected error for unknown template")
		}
	})
}

func TestIntFlagOr(t *testing.T) {
	cmd := newTestRunCmd()
	if got := intFlagOr(cmd, "concurrency", 20, 8); got != 8 {
		t.Errorf("unset flag should defer to config, got %d", got)
	}
	if err := cmd.Flags().Set("concurrency", "3"); err != nil {
		t.Fatal(err)
	}
	if got := intFlagOr(cmd, "concurrency", 3, 8); got != 3 {
		t.Errorf("set flag should win, got %d", got)
	}
	if got := intFlagOr(newTestRunCmd(), "concurrency", 20, 0); got != 20 {
		t.Errorf("zero config should fall back to the flag default, got %d", got)
	}
}

func TestRowsLabel(t *testing.T) {
	tests := []struct {
		name string
		p    jobs.Progress
		want string
	}{
		{"unknown", jobs.Progress{Total: 10, ETA: -1}, "rows (eta --)"},
		{"rounded", jobs.Progress{Completed: 4, Total: 10, ETA: 90*time.Second + 400*time.Millisecond}, "rows (eta 1m30s)"},
		{"failures", jobs.Progress{Completed: 10, Total: 10, Failed: 2}, "rows (2 failed, eta 0s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rowsLabel(tt.p); got != tt.want {
				t.Errorf("rowsLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}
