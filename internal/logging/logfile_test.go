package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLogFilename(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected string
	}{
		{"basic timestamp", time.Date(2026, 3, 13, 9, 51, 5, 123000000, time.UTC), "sandboxops-20260313-095105-123.log"},
		{"midnight", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "sandboxops-20260101-000000-000.log"},
		{"non-utc input", time.Date(2026, 1, 1, 9, 0, 0, 0, time.FixedZone("JST", 9*3600)), "sandboxops-20260101-000000-000.log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GenerateLogFilename(tt.time))
		})
	}
}

func TestNewLogFile(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		lf, err := NewLogFile(&LogConfig{Output: "none", Dir: t.TempDir()})
		require.NoError(t, err)
		defer lf.Close()
		assert.Empty(t, lf.Path)
		assert.NotNil(t, lf.Writer())
	})

	t.Run("stderr", func(t *testing.T) {
		lf, err := NewLogFile(&LogConfig{Output: "-", Dir: t.TempDir()})
		require.NoError(t, err)
		defer lf.Close()
		assert.Empty(t, lf.Path)
		assert.Equal(t, os.Stderr, lf.Writer())
	})

	t.Run("auto generated", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "logs")
		lf, err := NewLogFile(&LogConfig{Dir: dir})
		require.NoError(t, err)
		defer lf.Close()
		assert.Equal(t, dir, filepath.Dir(lf.Path))
		assert.FileExists(t, lf.Path)
	})

	t.Run("relative path", func(t *testing.T) {
		dir := t.TempDir()
		lf, err := NewLogFile(&LogConfig{Output: "server.log", Dir: dir})
		require.NoError(t, err)
		defer lf.Close()
		assert.Equal(t, filepath.Join(dir, "server.log"), lf.Path)
	})

	t.Run("rotating", func(t *testing.T) {
		dir := t.TempDir()
		lf, err := NewLogFile(&LogConfig{Output: "server.log", Dir: dir, MaxSizeMB: 1, MaxBackups: 2})
		require.NoError(t, err)
		_, err = lf.Writer().Write([]byte("hello\n"))
		require.NoError(t, err)
		require.NoError(t, lf.Close())

		data, err := os.ReadFile(filepath.Join(dir, "server.log"))
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(data))
	})
}

func TestCleanupOldLogFiles(t *testing.T) {
	dir := t.TempDir()
	oldTime := time.Now().AddDate(0, 0, -10)
	newTime := time.Now().AddDate(0, 0, -3)

	write := func(name string, mtime time.Time) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0644))
		require.NoError(t, os.Chtimes(p, mtime, mtime))
		return p
	}
	oldFile := write("sandboxops-20260101-120000-000.log", oldTime)
	newFile := write("sandboxops-20260110-120000-000.log", newTime)
	otherFile := write("other.log", oldTime)

	require.NoError(t, CleanupOldLogFiles(dir, 7))

	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, newFile)
	assert.FileExists(t, otherFile)

	assert.NoError(t, CleanupOldLogFiles(filepath.Join(dir, "missing"), 7))
	assert.NoError(t, CleanupOldLogFiles(dir, 0))
}

func TestNewWithWriter(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	l, err := NewWithWriter("json", slog.LevelInfo, &buf)
	require.NoError(t, err)
	l.With("workspaceId", "dev").Info(ctx, "CMD:workspace.plan/S")
	l.Debug(ctx, "hidden")
	out := buf.String()
	assert.Contains(t, out, `"msg":"CMD:workspace.plan/S"`)
	assert.Contains(t, out, `"workspaceId":"dev"`)
	assert.NotContains(t, out, "hidden")

	buf.Reset()
	l, err = NewWithWriter("human", slog.LevelDebug, &buf)
	require.NoError(t, err)
	l.Debugf(ctx, "value=%d", 3)
	assert.True(t, strings.HasPrefix(buf.String(), "level=DEBUG"), buf.String())

	_, err = NewWithWriter("xml", slog.LevelInfo, &buf)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn, "ERROR": slog.LevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter("text", slog.LevelInfo, &buf)
	require.NoError(t, err)
	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info(ctx, "stored")
	assert.Contains(t, buf.String(), "msg=stored")
	assert.NotNil(t, FromContext(context.Background()))
}
