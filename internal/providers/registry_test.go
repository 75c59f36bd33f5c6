package providers

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry(t *testing.T) {
	profiles := map[string]ProfileConfig{
		"deepseek-chat": {
			Type:      TypeOpenAI,
			BaseURL:   "https://api.deepseek.com",
			Model:     "deepseek-chat",
			APIKey:    "sk-test",
			RateLimit: 120,
			Enabled:   true,
		},
		"no-key": {
			Type:    TypeOpenAI,
			Model:   "deepseek-chat",
			Enabled: true,
		},
		"off": {
			Type:    TypeOpenAI,
			Model:   "deepseek-chat",
			APIKey:  "sk-test",
			Enabled: false,
		},
		"weird": {
			Type:    "carrier-pigeon",
			APIKey:  "sk-test",
			Enabled: true,
		},
	}

	t.Run("creates and caches clients", func(t *testing.T) {
		r := NewRegistry(profiles, nil)

		first, err := r.Client(context.Background(), "deepseek-chat")
		if err != nil {
			t.Fatalf("Client() error = %v", err)
		}
		if _, ok := first.(*OpenAIClient); !ok {
			t.Errorf("expected *OpenAIClient, got %T", first)
		}
		second, _ := r.Client(context.Background(), "deepseek-chat")
		if first != second {
			t.Error("expected cached client on second lookup")
		}
		if r.Limiter("deepseek-chat") == nil {
			t.Error("expected limiter for rate-limited profile")
		}
	})

	t.Run("errors", func(t *testing.T) {
		r := NewRegistry(profiles, nil)
		tests := []struct {
			name string
			want error
		}{
			{"missing", ErrUnknownProfile},
			{"no-key", ErrMissingAPIKey},
			{"off", ErrProfileDisabled},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := r.Client(context.Background(), tt.name)
				if !errors.Is(err, tt.want) {
					t.Errorf("Client(%q) error = %v, want %v", tt.name, err, tt.want)
				}
			})
		}

		if _, err := r.Client(context.Background(), "weird"); err == nil {
			t.Error("expected error for unsupported type")
		}
	})

	t.Run("register overrides profile", func(t *testing.T) {
		r := NewRegistry(profiles, nil)
		mock := NewMockClient()
		r.Register("deepseek-chat", mock, 0)

		client, err := r.Client(context.Background(), "deepseek-chat")
		if err != nil {
			t.Fatalf("Client() error = %v", err)
		}
		if client != mock {
			t.Error("got different client than registered")
		}
		if r.Limiter("deepseek-chat") != nil {
			t.Error("rate 0 should mean no limiter")
		}
	})

	t.Run("list hides keys and sorts", func(t *testing.T) {
		r := NewRegistry(profiles, nil)
		infos := r.List()
		if len(infos) != len(profiles) {
			t.Fatalf("List() returned %d, want %d", len(infos), len(profiles))
		}
		for i := 1; i < len(infos); i++ {
			if infos[i-1].Name > infos[i].Name {
				t.Errorf("not sorted: %s before %s", infos[i-1].Name, infos[i].Name)
			}
		}
		for _, info := range infos {
			if info.Name == "no-key" && info.HasKey {
				t.Error("no-key should report HasKey=false")
			}
		}
		if !r.Has("off") || r.Has("missing") {
			t.Error("Has() mismatch")
		}
	})
}
