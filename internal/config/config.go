package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// keyDelimiter replaces viper's "." so profile names such as
// "siliconflow-glm-4.7" stay single keys.
const keyDelimiter = "::"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading configuration.
type Manager struct {
	mu     sync.RWMutex
	v      *viper.Viper
	config *Config
}

// NewManager creates a new config manager and loads the initial config.
// With cfgFile empty, config.yaml is looked up in the working directory
// and then in each of searchPaths; a missing file is not an error.
func NewManager(cfgFile string, searchPaths ...string) (*Manager, error) {
	cm := &Manager{
		v: viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter)),
	}

	if err := cm.initViper(cfgFile, searchPaths); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string, searchPaths []string) error {
	v := cm.v
	defaults := DefaultConfig()
	for name, p := range defaults.Profiles {
		prefix := "profiles" + keyDelimiter + name + keyDelimiter
		v.SetDefault(prefix+"type", p.Type)
		v.SetDefault(prefix+"label", p.Label)
		v.SetDefault(prefix+"base_url", p.BaseURL)
		v.SetDefault(prefix+"model", p.Model)
		v.SetDefault(prefix+"api_key", p.APIKey)
		v.SetDefault(prefix+"rate_limit", p.RateLimit)
		v.SetDefault(prefix+"timeout_seconds", p.TimeoutSeconds)
		v.SetDefault(prefix+"enabled", p.Enabled)
	}
	d := defaults.Defaults
	v.SetDefault("defaults"+keyDelimiter+"profile", d.Profile)
	v.SetDefault("defaults"+keyDelimiter+"concurrency", d.Concurrency)
	v.SetDefault("defaults"+keyDelimiter+"max_retries", d.MaxRetries)
	v.SetDefault("defaults"+keyDelimiter+"delimiter", d.Delimiter)
	v.SetDefault("defaults"+keyDelimiter+"output_column", d.OutputColumn)
	v.SetDefault("defaults"+keyDelimiter+"template", d.Template)

	// Environment variables with TABULA_ prefix, e.g. TABULA_DEFAULTS_CONCURRENCY
	v.SetEnvPrefix("TABULA")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_", "-", "_", ".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the path of the file that was read, or "" when
// running on defaults alone.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// Reload re-reads the config file and replaces the current config.
func (cm *Manager) Reload() error {
	if cm.v.ConfigFileUsed() != "" {
		if err := cm.v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	cfg, err := cm.load()
	if err != nil {
		return err
	}
	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()
	return nil
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := []byte(`# Tabula configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell or a .env file: DEEPSEEK_API_KEY=xxx SILICONFLOW_API_KEY=xxx GEMINI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
