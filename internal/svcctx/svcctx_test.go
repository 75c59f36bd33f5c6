package svcctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackzampolin/tabula/internal/home"
	"github.com/jackzampolin/tabula/internal/llmcall"
	"github.com/jackzampolin/tabula/internal/prompts"
	"github.com/jackzampolin/tabula/internal/providers"
)

func TestServicesFromEmptyContext(t *testing.T) {
	ctx := context.Background()

	if ServicesFrom(ctx) != nil {
		t.Error("expected nil services")
	}
	if RegistryFrom(ctx) != nil || TemplatesFrom(ctx) != nil || HomeFrom(ctx) != nil || ConfigFrom(ctx) != nil || RecorderFrom(ctx) != nil {
		t.Error("expected nil extractors on empty context")
	}
	if LoggerFrom(ctx) != slog.Default() {
		t.Error("expected default logger fallback")
	}
}

func TestWithServices(t *testing.T) {
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	logger := slog.New(slog.DiscardHandler)
	s := &Services{
		Registry:  providers.NewRegistry(nil, logger),
		Templates: prompts.NewStore(h.TemplatesPath(), logger),
		Recorder:  llmcall.NewRecorder(),
		Logger:    logger,
		Home:      h,
	}
	ctx := WithServices(context.Background(), s)

	if ServicesFrom(ctx) != s {
		t.Error("ServicesFrom returned a different struct")
	}
	if RegistryFrom(ctx) != s.Registry {
		t.Error("RegistryFrom mismatch")
	}
	if TemplatesFrom(ctx) != s.Templates {
		t.Error("TemplatesFrom mismatch")
	}
	if RecorderFrom(ctx) != s.Recorder {
		t.Error("RecorderFrom mismatch")
	}
	if LoggerFrom(ctx) != logger {
		t.Error("LoggerFrom mismatch")
	}
	if HomeFrom(ctx) != h {
		t.Error("HomeFrom mismatch")
	}
}
