package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sageflow configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Upstream generator
	LLM LLMConfig `yaml:"llm"`

	// Task lifecycle engine
	Tasks TasksConfig `yaml:"tasks"`

	// Session scheduling
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Per-agent policy overrides, keyed by agent name (ObservationAgent,
	// TaskDecomposeAgent).
	Agents map[string]AgentConfig `yaml:"agents,omitempty"`
}

// LLMConfig configures the streaming generator.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // gemini
	APIKey      string  `yaml:"api_key,omitempty"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// TasksConfig configures the task engine.
type TasksConfig struct {
	DefaultExecutor string `yaml:"default_executor"`
	IDStyle         string `yaml:"id_style"`     // sequential, uuid
	JournalPath     string `yaml:"journal_path"` // empty disables the SQLite journal
}

// SessionConfig configures how sessions are driven.
type SessionConfig struct {
	Parallel  int `yaml:"parallel"`   // concurrent sessions for RunAll; 0 = unlimited
	ChunkSize int `yaml:"chunk_size"` // runes per fragment when replaying transcripts
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// AgentConfig overrides parts of a built-in agent policy.
type AgentConfig struct {
	Displayable []string `yaml:"displayable,omitempty"`
	Separator   *string  `yaml:"separator,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty"`      // inline text/template
	PromptFile  string   `yaml:"prompt_file,omitempty"` // read when Prompt is empty
}

// PromptText returns the configured prompt template, if any.
func (a AgentConfig) PromptText() (string, error) {
	if a.Prompt != "" || a.PromptFile == "" {
		return a.Prompt, nil
	}
	data, err := os.ReadFile(a.PromptFile)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	return string(data), nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "sageflow",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Temperature: 1.0,
			Timeout:     "300s",
		},

		Tasks: TasksConfig{
			DefaultExecutor: "ExecutorAgent",
			IDStyle:         "sequential",
		},

		Session: SessionConfig{
			Parallel:  4,
			ChunkSize: 8,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file. The API key is never written.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	out.LLM.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if model := os.Getenv("SAGE_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("SAGE_JOURNAL"); path != "" {
		c.Tasks.JournalPath = path
	}
	if level := os.Getenv("SAGE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 300 * time.Second
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"gemini"}

// ValidIDStyles lists the task id schemes.
var ValidIDStyles = []string{"sequential", "uuid"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !slices.Contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); c.LLM.Timeout != "" && err != nil {
		return fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	if !slices.Contains(ValidIDStyles, c.Tasks.IDStyle) {
		return fmt.Errorf("invalid tasks.id_style: %s (valid: %v)", c.Tasks.IDStyle, ValidIDStyles)
	}
	if c.Session.Parallel < 0 {
		return fmt.Errorf("session.parallel must be >= 0, got %d", c.Session.Parallel)
	}
	switch c.Logging.Format {
	case "", "json", "console", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}
	return nil
}

// RequireAPIKey reports whether a live generator can be reached.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY)")
	}
	return nil
}
