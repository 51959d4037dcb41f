// Package logging provides config-driven categorised zap loggers for sageflow.
// Every subsystem asks for a logger by Category; disabled categories get a
// no-op logger so call sites never need to check.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Boot/initialization
	CategorySession      Category = "session"      // Orchestrator sessions
	CategoryTasks        Category = "tasks"        // Task lifecycle engine
	CategoryArticulation Category = "articulation" // Raw output -> records
	CategoryPerception   Category = "perception"   // Upstream token sources
	CategoryStore        Category = "store"        // Journal persistence
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	Categories map[string]bool // missing categories are enabled
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	categories map[string]bool
)

// ParseLevel maps a config level string onto a zap level. Unknown values
// fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Build creates a zap logger for the given options without installing it.
func Build(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch opts.Format {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	return cfg.Build()
}

// Initialize builds the root logger from opts and installs it.
// Should be called once at startup.
func Initialize(opts Options) (*zap.Logger, error) {
	logger, err := Build(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetRoot(logger, opts.Categories)
	Get(CategoryBoot).Debug("logging initialized",
		zap.String("level", opts.Level),
		zap.String("format", opts.Format))
	return logger, nil
}

// SetRoot installs logger as the parent of all category loggers. A nil logger
// restores the no-op default.
func SetRoot(logger *zap.Logger, enabled map[string]bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = logger
	categories = enabled
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns a named logger for the category, or a no-op logger when the
// category is disabled.
func Get(category Category) *zap.Logger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop()
	}
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(string(category))
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
}
