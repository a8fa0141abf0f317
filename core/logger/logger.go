package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/sroki/core/buildinfo"
	coreconfig "github.com/m3rciful/sroki/core/config"
)

var (
	mu      sync.Mutex
	started bool
	stopped bool
	writers []*asyncWriter
	files   []io.Closer
	level   slog.LevelVar

	base atomic.Pointer[slog.Logger]
)

// InitLogger installs the process-wide structured logger. Calls after the first are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return nil
	}
	if cfg == nil {
		cfg = &coreconfig.Config{}
	}
	lc := cfg.Logging
	level.Set(parseLevel(lc.Level))

	console := io.Writer(os.Stdout)
	if lc.Stderr {
		console = os.Stderr
	}
	sinks := []io.Writer{console}
	var errSinks []io.Writer
	if dir := strings.TrimSpace(lc.Dir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("logger: create %s: %w", dir, err)
		}
		for _, target := range []struct {
			name string
			dst  *[]io.Writer
		}{{lc.BotFile, &sinks}, {lc.ErrorsFile, &errSinks}} {
			if strings.TrimSpace(target.name) == "" {
				continue
			}
			f, err := os.OpenFile(filepath.Join(dir, target.name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				closeFiles()
				return fmt.Errorf("logger: open %s: %w", target.name, err)
			}
			files = append(files, f)
			*target.dst = append(*target.dst, f)
		}
	}

	h := &lineHandler{
		level: &level,
		out:   newAsyncWriter(sinks, 64*1024),
		json:  useJSON(lc),
	}
	writers = append(writers, h.out)
	if len(errSinks) > 0 {
		h.errOut = newAsyncWriter(errSinks, 16*1024)
		writers = append(writers, h.errOut)
	}

	l := slog.New(h)
	slog.SetDefault(l)
	base.Store(l)
	started = true

	l.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("go_version", runtime.Version()),
		slog.String("version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("profile", profile(lc)),
	)
	return nil
}

// Shutdown drains queued lines and closes the log files.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if stopped || !started {
		return nil
	}
	stopped = true

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	errs = append(errs, closeFiles())
	return errors.Join(errs...)
}

func closeFiles() error {
	var errs []error
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	files = nil
	return errors.Join(errs...)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// useJSON picks the line format. Without an explicit format, dev and debug
// profiles get key=value lines and everything else gets JSON.
func useJSON(lc coreconfig.LoggingConfig) bool {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "json":
		return true
	case "kv", "text":
		return false
	}
	switch profile(lc) {
	case "dev", "debug":
		return false
	}
	return true
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		return p
	}
	return "prod"
}

func emit(ctx context.Context, component string, lvl slog.Level, event string, attrs []slog.Attr) {
	l := base.Load()
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, lvl) {
		return
	}
	if component = strings.TrimSpace(component); component != "" {
		attrs = append([]slog.Attr{slog.String("component", component)}, attrs...)
	}
	l.LogAttrs(ctx, lvl, event, attrs...)
}

// Debug logs event for component at debug level. It does nothing before InitLogger.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, component, slog.LevelDebug, event, attrs)
}

// Info logs at info level.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, component, slog.LevelInfo, event, attrs)
}

// Warn logs at warn level.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, component, slog.LevelWarn, event, attrs)
}

// Error logs at error level.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, component, slog.LevelError, event, attrs)
}
