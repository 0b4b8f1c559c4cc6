// Package logger wraps logrus with context-first, key/value logging methods.
//
//	cleanup, err := logger.New(cfg.Logger)
//	defer cleanup()
//	log := logger.StdLogger()
//	log.Info(ctx, "Job submitted", "job_id", id, "kind", kind)
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ncobase/jobpanel/ctxutil"
	"github.com/ncobase/jobpanel/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// VersionKey is the log field carrying the build version.
const VersionKey = "version"

// Logger is a logrus logger whose methods take a context and key/value pairs.
type Logger struct {
	*logrus.Logger
	version string
	logFile *os.File
}

var (
	standardLogger *Logger
	once           sync.Once
)

// StdLogger returns the process wide logger.
func StdLogger() *Logger {
	once.Do(func() {
		standardLogger = &Logger{Logger: logrus.New()}
		standardLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})
	return standardLogger
}

// New configures the process wide logger and returns a cleanup function
// that closes the log file, if any. A nil config keeps the defaults.
func New(cfg *config.Config) (func(), error) {
	return StdLogger().Init(cfg)
}

// NewWithWriter returns a standalone logger writing to w. Tests use it to
// capture output.
func NewWithWriter(w io.Writer, level logrus.Level) *Logger {
	l := &Logger{Logger: logrus.New()}
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return l
}

// Init applies cfg to the logger.
func (l *Logger) Init(cfg *config.Config) (func(), error) {
	noop := func() {}
	if cfg == nil {
		return noop, nil
	}

	l.SetLevel(logrus.Level(cfg.Level))
	l.version = cfg.Version

	switch cfg.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch cfg.Output {
	case "stderr":
		l.SetOutput(os.Stderr)
	case "file":
		if cfg.OutputFile == "" {
			return noop, fmt.Errorf("logger output is file but output_file is empty")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0o755); err != nil {
			return noop, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.OutputFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			return noop, fmt.Errorf("failed to open log file: %w", err)
		}
		l.logFile = f
		l.SetOutput(f)
	default:
		l.SetOutput(os.Stdout)
	}

	return func() {
		if l.logFile != nil {
			_ = l.logFile.Close()
			l.logFile = nil
		}
	}, nil
}

// SetLevelFromInt changes the level at runtime, e.g. on config reload.
func (l *Logger) SetLevelFromInt(level int) {
	l.SetLevel(logrus.Level(level))
}

// entry builds an entry carrying the trace id, the version and the given
// key/value pairs. A trailing key without a value is kept under "!BADKEY".
func (l *Logger) entry(ctx context.Context, keysAndValues ...any) *logrus.Entry {
	fields := logrus.Fields{}

	if ctx != nil {
		if traceID := ctxutil.GetTraceID(ctx); traceID != "" {
			fields[ctxutil.TraceIDKey] = traceID
		}
	}
	if l.version != "" {
		fields[VersionKey] = l.version
	}

	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 >= len(keysAndValues) {
			fields["!BADKEY"] = keysAndValues[i]
			break
		}
		key := fmt.Sprint(keysAndValues[i])
		val := keysAndValues[i+1]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		fields[key] = val
	}

	return l.WithFields(fields)
}

func (l *Logger) Debug(ctx context.Context, msg string, keysAndValues ...any) {
	l.entry(ctx, keysAndValues...).Debug(msg)
}

func (l *Logger) Info(ctx context.Context, msg string, keysAndValues ...any) {
	l.entry(ctx, keysAndValues...).Info(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string, keysAndValues ...any) {
	l.entry(ctx, keysAndValues...).Warn(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, keysAndValues ...any) {
	l.entry(ctx, keysAndValues...).Error(msg)
}

func (l *Logger) Infof(ctx context.Context, format string, args ...any) {
	l.entry(ctx).Infof(format, args...)
}

func (l *Logger) Errorf(ctx context.Context, format string, args ...any) {
	l.entry(ctx).Errorf(format, args...)
}
