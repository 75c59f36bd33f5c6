package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "templates"), nil)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestDefaultTemplate(t *testing.T) {
	d := DefaultTemplate()
	if d.Name != DefaultName || !d.BuiltIn {
		t.Errorf("unexpected default template: %+v", d)
	}
	if !strings.Contains(d.Content, PlaceholderMergedText) {
		t.Error("default template must contain {merged_text}")
	}
	if !strings.Contains(d.Content, "是{delimiter}保留{delimiter}85") {
		t.Error("default template must carry the delimiter example")
	}
	if warnings := CheckPlaceholders(d.Content); len(warnings) != 0 {
		t.Errorf("default template warnings: %v", warnings)
	}
}

func TestCheckPlaceholders(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"complete", "Text: {merged_text} sep {delimiter}", 0},
		{"no merged text", "Classify with {delimiter}", 1},
		{"no delimiter", "Classify {merged_text}", 1},
		{"neither", "Classify this", 2},
		{"unknown token", "{merged_text} {delimiter} {title}", 1},
		{"json braces ignored", `{merged_text} {delimiter} {"a": 1}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPlaceholders(tt.content); len(got) != tt.want {
				t.Errorf("CheckPlaceholders() = %v, want %d warnings", got, tt.want)
			}
		})
	}
}

func TestStoreSaveGetDelete(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.Save(Template{Name: "筛选-v2", Content: "判断 {merged_text}", Delimiter: "#"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}

	got, err := s.Get("筛选-v2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Content != "判断 {merged_text}" || got.Delimiter != "#" {
		t.Errorf("Get() = %+v", got)
	}

	if err := s.Delete("筛选-v2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get("筛选-v2"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound after delete, got %v", err)
	}
	if err := s.Delete("筛选-v2"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("second Delete() = %v, want ErrTemplateNotFound", err)
	}
}

func TestStoreValidation(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"", " padded ", "../escape", "a/b", ".."} {
		if _, err := s.Save(Template{Name: name, Content: "x"}); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
	if _, err := s.Save(Template{Name: "blank", Content: "  \n"}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestStoreBuiltInFallback(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(DefaultName)
	if err != nil {
		t.Fatalf("Get(default) error = %v", err)
	}
	if !got.BuiltIn {
		t.Error("expected built-in template")
	}

	if _, err := s.Save(Template{Name: DefaultName, Content: "custom {merged_text}"}); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(DefaultName)
	if err != nil {
		t.Fatal(err)
	}
	if got.BuiltIn || got.Content != "custom {merged_text}" {
		t.Errorf("saved template should shadow built-in, got %+v", got)
	}
}

func TestStoreList(t *testing.T) {
	s := newTestStore(t)

	list, err := s.List()
	if err != nil {
		t.Fatalf("List() on missing dir error = %v", err)
	}
	if len(list) != 1 || list[0].Name != DefaultName {
		t.Fatalf("List() = %v, want only the built-in", list)
	}

	for _, name := range []string{"zeta", "alpha"} {
		if _, err := s.Save(Template{Name: name, Content: "{merged_text}"}); err != nil {
			t.Fatal(err)
		}
	}

	legacy := `{"name": "old", "content": "旧 {merged_text}", "delimiter": ",", "created_time": "2024-05-01 10:00:00"}`
	if err := os.WriteFile(filepath.Join(s.Dir(), "old.json"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "broken.yaml"), []byte("name: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err = s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, tmpl := range list {
		names = append(names, tmpl.Name)
	}
	if got := strings.Join(names, ","); got != DefaultName+",alpha,old,zeta" {
		t.Errorf("List() names = %s", got)
	}

	old, err := s.Get("old")
	if err != nil {
		t.Fatalf("Get(old) error = %v", err)
	}
	if old.Delimiter != "," || old.CreatedAt.Year() != 2024 {
		t.Errorf("legacy template not parsed: %+v", old)
	}
}
