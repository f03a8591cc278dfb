package logger

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
// Unknown values default to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger provides structured JSON logging with optional PII redaction.
type Logger struct {
	mu        sync.RWMutex
	zl        *zap.Logger
	level     zap.AtomicLevel
	redactPII bool
}

var defaultLogger = newDefault()

func newDefault() *Logger {
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	zl, err := build(lvl, "json", "")
	if err != nil {
		zl = zap.NewNop()
	}
	return &Logger{zl: zl, level: lvl, redactPII: true}
}

func build(lvl zap.AtomicLevel, format, service string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.MessageKey = "msg"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = lvl
	zl, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	if service != "" {
		zl = zl.With(zap.String("service", service))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		zl = zl.With(zap.String("hostname", hostname))
	}
	return zl, nil
}

// Init rebuilds the default logger. format is "json" or "console".
func Init(level, format, service string) error {
	lvl := zap.NewAtomicLevelAt(ParseLevel(level).zapLevel())
	zl, err := build(lvl, format, service)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defaultLogger.mu.Lock()
	defaultLogger.zl = zl
	defaultLogger.level = lvl
	defaultLogger.mu.Unlock()
	return nil
}

// Use swaps the backing zap logger; tests pass an observer core here.
func Use(zl *zap.Logger) {
	defaultLogger.mu.Lock()
	defaultLogger.zl = zl
	defaultLogger.mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() {
	defaultLogger.mu.RLock()
	defer defaultLogger.mu.RUnlock()
	_ = defaultLogger.zl.Sync()
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level.SetLevel(l.zapLevel()) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	zl, redact := l.zl, l.redactPII
	l.mu.RUnlock()

	if !zl.Core().Enabled(level.zapLevel()) {
		return
	}

	// Parse key-value pairs from fields
	zf := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		var val string
		if err, ok := fields[i+1].(error); ok {
			val = err.Error()
		} else {
			val = fmt.Sprintf("%v", fields[i+1])
		}
		if redact {
			val = redactPIIValue(key, val)
		}
		zf = append(zf, zap.String(key, val))
	}

	switch level {
	case DEBUG:
		zl.Debug(msg, zf...)
	case WARN:
		zl.Warn(msg, zf...)
	case ERROR:
		zl.Error(msg, zf...)
	default:
		zl.Info(msg, zf...)
	}
}

var phoneRegex = regexp.MustCompile(`\+?\d[\d\s().-]{8,}\d`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "phone") || strings.Contains(key, "telefone") {
		return RedactPhone(val)
	}
	if strings.Contains(key, "name") && !strings.HasSuffix(key, "_type") {
		return RedactName(val)
	}
	// Redact any embedded phone numbers in generic fields
	if key == "msg" || key == "error" || key == "err" {
		return phoneRegex.ReplaceAllStringFunc(val, RedactPhone)
	}
	return val
}
