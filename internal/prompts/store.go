package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrTemplateNotFound is returned when no template has the given name.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidName is returned for names that cannot be used as file names.
	ErrInvalidName = errors.New("invalid template name")

	// ErrEmptyContent is returned when saving a template with no content.
	ErrEmptyContent = errors.New("template content is empty")
)

// legacyTimeLayout is the created_time format of JSON templates.
const legacyTimeLayout = "2006-01-02 15:04:05"

// Store keeps templates as one YAML file per name in a directory. JSON
// files in the older {name, content, delimiter, created_time} layout are
// read too, so existing template folders keep working.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created on
// first save.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger, now: time.Now}
}

// Dir returns the directory the store reads and writes.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateName rejects names that are empty or not a plain file name.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\:*?"<>|`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// List returns the built-in template followed by saved templates sorted
// by name. Unreadable files are logged and skipped.
func (s *Store) List() ([]Template, error) {
	templates := []Template{DefaultTemplate()}

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return templates, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates directory: %w", err)
	}

	type listed struct {
		Template
		legacy bool
	}
	byName := make(map[string]listed)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		var t *Template
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			t, err = readYAML(path)
		case ".json":
			t, err = readLegacyJSON(path)
		default:
			continue
		}
		if err != nil {
			s.logger.Warn("skipping unreadable template", "path", path, "error", err)
			continue
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		legacy := filepath.Ext(e.Name()) == ".json"
		// YAML wins over a legacy file of the same name
		if prev, ok := byName[t.Name]; ok && legacy && !prev.legacy {
			continue
		}
		byName[t.Name] = listed{Template: *t, legacy: legacy}
	}

	saved := make([]Template, 0, len(byName))
	for _, l := range byName {
		saved = append(saved, l.Template)
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].Name < saved[j].Name })
	return append(templates, saved...), nil
}

// Get returns the named template. A saved template shadows the built-in
// one of the same name.
func (s *Store) Get(name string) (*Template, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	for _, ext := range []string{".yaml", ".yml"} {
		t, err := readYAML(filepath.Join(s.dir, name+ext))
		if err == nil {
			if t.Name == "" {
				t.Name = name
			}
			return t, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	t, err := readLegacyJSON(filepath.Join(s.dir, name+".json"))
	if err == nil {
		if t.Name == "" {
			t.Name = name
		}
		return t, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if name == DefaultName {
		d := DefaultTemplate()
		return &d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

// Save writes t as <dir>/<name>.yaml, replacing any existing file.
// CreatedAt is stamped when zero.
func (s *Store) Save(t Template) (*Template, error) {
	if err := ValidateName(t.Name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Content) == "" {
		return nil, ErrEmptyContent
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().Truncate(time.Second)
	}
	t.BuiltIn = false

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create templates directory: %w", err)
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal template: %w", err)
	}
	path := filepath.Join(s.dir, t.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}

	s.logger.Info("template saved", "name", t.Name, "path", path)
	return &t, nil
}

// Delete removes every file stored under name.
func (s *Store) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	removed := 0
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		err := os.Remove(filepath.Join(s.dir, name+ext))
		if err == nil {
			removed++
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete template: %w", err)
		}
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	s.logger.Info("template deleted", "name", name)
	return nil
}

func readYAML(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &t, nil
}

// legacyTemplate is the JSON layout {name, content, delimiter, created_time}.
type legacyTemplate struct {
	Name        string  `json:"name"`
	Content     string  `json:"content"`
	Delimiter   *string `json:"delimiter"`
	CreatedTime string  `json:"created_time"`
}

func readLegacyJSON(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lt legacyTemplate
	if err := json.Unmarshal(data, &lt); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	t := &Template{Name: lt.Name, Content: lt.Content}
	if lt.Delimiter != nil {
		t.Delimiter = *lt.Delimiter
	}
	if lt.CreatedTime != "" {
		if ts, err := time.ParseInLocation(legacyTimeLayout, lt.CreatedTime, time.Local); err == nil {
			t.CreatedAt = ts
		}
	}
	return t, nil
}
