package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_FileOutput(t *testing.T) {
	t.Run("output path alone opens the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		require.NoError(t, Init(Config{Output: path, Level: "info"}))

		zlog.Info().Msg("hello")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello")
	})

	t.Run("explicit file path wins", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "explicit.log")
		require.NoError(t, Init(Config{Output: filepath.Join(dir, "ignored.log"), File: path, Level: "info"}))

		zlog.Info().Msg("hello")

		_, err := os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("unwritable path errors", func(t *testing.T) {
		assert.Error(t, Init(Config{Output: filepath.Join(t.TempDir(), "missing", "app.log")}))
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), tt.input)
	}
}
