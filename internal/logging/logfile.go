package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFilePrefix is the prefix of auto-generated log file names.
const LogFilePrefix = "sandboxops-"

// LogConfig holds configuration for log output.
type LogConfig struct {
	Format        string // "human" (default), "text" or "json"
	Level         string // "DEBUG", "INFO" (default), "WARN", "ERROR"
	Output        string // Path, "-" for stderr, "none" to disable
	Dir           string // Log directory (default: $SANDBOX_DIR/logs)
	RetentionDays int    // Days to retain auto-generated log files (default: 7)
	MaxSizeMB     int    // Rotate file output once it reaches this size; 0 disables rotation
	MaxBackups    int    // Rotated files to keep when MaxSizeMB > 0
}

// LogFile manages a log output destination.
type LogFile struct {
	Path   string // Full path to the log file (empty for stderr or disabled)
	closer io.Closer
	writer io.Writer
}

// NewLogFile opens the log destination described by cfg.
//
// Output behavior:
//   - empty: auto-generated file in Dir
//   - "-": os.Stderr
//   - "none": io.Discard
//   - path: absolute, or relative to Dir
//
// File destinations are written through a lumberjack rotator when MaxSizeMB > 0.
func NewLogFile(cfg *LogConfig) (*LogFile, error) {
	lf := &LogFile{}

	switch strings.ToLower(cfg.Output) {
	case "none":
		lf.writer = io.Discard
		return lf, nil
	case "-":
		lf.writer = os.Stderr
		return lf, nil
	case "":
		lf.Path = filepath.Join(cfg.Dir, GenerateLogFilename(time.Now().UTC()))
	default:
		if filepath.IsAbs(cfg.Output) {
			lf.Path = cfg.Output
		} else {
			lf.Path = filepath.Join(cfg.Dir, cfg.Output)
		}
	}

	dir := filepath.Dir(lf.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory %q: %w", dir, err)
	}

	if cfg.MaxSizeMB > 0 {
		rot := &lumberjack.Logger{
			Filename:   lf.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.RetentionDays,
		}
		lf.writer, lf.closer = rot, rot
		return lf, nil
	}

	f, err := os.OpenFile(lf.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %q: %w", lf.Path, err)
	}
	lf.writer, lf.closer = f, f
	return lf, nil
}

// Writer returns the io.Writer for log output.
func (lf *LogFile) Writer() io.Writer {
	return lf.writer
}

// Close closes the underlying file if one was opened.
func (lf *LogFile) Close() error {
	if lf.closer != nil {
		return lf.closer.Close()
	}
	return nil
}

// GenerateLogFilename returns sandboxops-YYYYMMDD-HHMMSS-sss.log for t in UTC.
func GenerateLogFilename(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s%s-%03d.log", LogFilePrefix, t.Format("20060102-150405"), t.Nanosecond()/1_000_000)
}

// CleanupOldLogFiles removes sandboxops-*.log files older than retentionDays from dir.
// Files that cannot be removed are skipped.
func CleanupOldLogFiles(dir string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading log directory %q: %w", dir, err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, LogFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, name))
	}
	return nil
}
