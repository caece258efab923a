// Package logging builds the zap loggers used by the coretex CLI and SDK
// packages and defines the Coretex log severity scale.
//
// The Coretex platform grades log lines on a five step scale (fatal, error,
// warning, info, debug). Severity maps that scale onto zap levels so logs
// shipped from an experiment keep the grading the platform expects.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Severity is the Coretex log severity. Lower values are more severe.
type Severity int

const (
	SeverityFatal   Severity = 1
	SeverityError   Severity = 2
	SeverityWarning Severity = 3
	SeverityInfo    Severity = 4
	SeverityDebug   Severity = 5
)

// Color returns the terminal colour name used when echoing a line of this
// severity.
func (s Severity) Color() string {
	switch s {
	case SeverityFatal, SeverityError:
		return "red"
	case SeverityWarning, SeverityDebug:
		return "yellow"
	case SeverityInfo:
		return "white"
	default:
		return ""
	}
}

// Prefix returns the capitalised severity name, e.g. "Warning".
func (s Severity) Prefix() string {
	switch s {
	case SeverityFatal:
		return "Fatal"
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	case SeverityInfo:
		return "Info"
	case SeverityDebug:
		return "Debug"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// String implements fmt.Stringer.
func (s Severity) String() string {
	return strings.ToLower(s.Prefix())
}

// IsValid reports whether s is on the Coretex scale.
func (s Severity) IsValid() bool {
	return s >= SeverityFatal && s <= SeverityDebug
}

// Level converts the severity to the equivalent zap level.
func (s Severity) Level() zapcore.Level {
	switch s {
	case SeverityFatal:
		return zapcore.FatalLevel
	case SeverityError:
		return zapcore.ErrorLevel
	case SeverityWarning:
		return zapcore.WarnLevel
	case SeverityDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// FromLevel converts a zap level into the Coretex severity. Levels without a
// Coretex equivalent (DPanic, Panic) are rejected.
func FromLevel(level zapcore.Level) (Severity, error) {
	switch level {
	case zapcore.FatalLevel:
		return SeverityFatal, nil
	case zapcore.ErrorLevel:
		return SeverityError, nil
	case zapcore.WarnLevel:
		return SeverityWarning, nil
	case zapcore.InfoLevel:
		return SeverityInfo, nil
	case zapcore.DebugLevel:
		return SeverityDebug, nil
	default:
		return 0, fmt.Errorf("no coretex severity for log level %q", level)
	}
}

// ParseSeverity accepts a severity name ("warning") or the short zap form
// ("warn"), case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fatal":
		return SeverityFatal, nil
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	case "debug":
		return SeverityDebug, nil
	default:
		return 0, fmt.Errorf("invalid log severity: %q (valid: fatal, error, warning, info, debug)", s)
	}
}

// New builds a zap logger that writes human readable records to stderr and,
// when logPath is not empty, also appends them to logPath. The parent folder
// of logPath is created if needed.
func New(severity Severity, logPath string) (*zap.Logger, error) {
	if !severity.IsValid() {
		return nil, fmt.Errorf("invalid log severity %d", int(severity))
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(severity.Level())
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, logPath)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named("coretex"), nil
}

// OrNop returns l, or a no-op logger when l is nil. Library types accept a
// nil logger through this.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
