package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestBuildRejectsUnknownFormat(t *testing.T) {
	_, err := Build(Options{Format: "xml"})
	require.Error(t, err)
}

func TestBuildFormats(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		logger, err := Build(Options{Format: format, Level: "warn"})
		require.NoError(t, err, format)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	}
}

// TestCategoryToggle verifies disabled categories drop entries while enabled
// and unlisted categories reach the root core.
func TestCategoryToggle(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core), map[string]bool{
		string(CategoryStore): false,
		string(CategoryTasks): true,
	})
	t.Cleanup(func() { SetRoot(nil, nil) })

	assert.False(t, IsCategoryEnabled(CategoryStore))
	assert.True(t, IsCategoryEnabled(CategoryTasks))
	assert.True(t, IsCategoryEnabled(CategorySession))

	Get(CategoryStore).Info("dropped")
	Get(CategoryTasks).Info("kept")
	Get(CategorySession).Warn("also kept")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "tasks", entries[0].LoggerName)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, "session", entries[1].LoggerName)
}

func TestSetRootNilRestoresNop(t *testing.T) {
	SetRoot(nil, nil)
	assert.NotPanics(t, func() {
		Get(CategoryBoot).Error("nowhere")
		Sync()
	})
}
