package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Receives the log file once a run is over.
type Uploader interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error
}

// Structured logger of one run, writing to stderr and to a temporary file shipped to the log bucket.
type RunLogger struct {
	*slog.Logger

	mu      sync.Mutex
	logFile *os.File
	runID   string
}

// Writer that serializes the writes on the file with the uploads.
type lockedWriter struct {
	l *RunLogger
	w io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.l.mu.Lock()
	defer lw.l.mu.Unlock()
	return lw.w.Write(p)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Create the run logger with a temporary file.
func New(level string) (*RunLogger, error) {
	f, err := os.CreateTemp("", "log-*.log")
	if err != nil {
		return nil, err
	}

	l := &RunLogger{
		logFile: f,
		runID:   uuid.NewString(),
	}
	writer := &lockedWriter{l: l, w: io.MultiWriter(os.Stderr, f)}
	l.Logger = slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: parseLevel(level)})).
		With("run", l.runID)
	return l, nil
}

// Logger dropping everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (l *RunLogger) RunID() string {
	return l.runID
}

// Object key of the log of this run.
func (l *RunLogger) ObjectKey(now time.Time) string {
	return fmt.Sprintf("logs/%s/%s.log", now.UTC().Format("2006-01-02"), l.runID)
}

// Clean the file contents.
func (l *RunLogger) cleanFile() error {
	if err := l.logFile.Truncate(0); err != nil {
		return err
	}
	_, err := l.logFile.Seek(0, io.SeekStart)
	return err
}

// Upload the log file and start a new one.
func (l *RunLogger) UploadToBucket(ctx context.Context, uploader Uploader, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.logFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}

	content, err := io.ReadAll(l.logFile)
	if err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	if err := uploader.PutObject(ctx, key, bytes.NewReader(content), "text/plain"); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return l.cleanFile()
}

// Close and remove the temporary file.
func (l *RunLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	name := l.logFile.Name()
	if err := l.logFile.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
