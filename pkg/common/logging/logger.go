/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package logging provides per-module loggers for the client.
//
// Basic Flow:
//  1. Optionally call Initialize to choose the output format and sink
//  2. Create a logger for a module with NewLogger
//  3. Adjust module levels with SetLevel
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level defines all available log levels for log messages.
type Level int

// Log levels.
const (
	CRITICAL Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

var levelNames = []string{"CRITICAL", "ERROR", "WARNING", "INFO", "DEBUG"}

func (l Level) String() string {
	if l < CRITICAL || l > DEBUG {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Format names accepted by Options.Format.
const (
	FormatConsole = "console"
	FormatLogfmt  = "logfmt"
	FormatJSON    = "json"
)

// Options configures the zap backend shared by all module loggers.
type Options struct {
	// Format is one of console (default), logfmt or json
	Format string
	// Writer defaults to os.Stderr
	Writer io.Writer
	// DefaultLevel applies to modules without an explicit level (INFO when unset)
	DefaultLevel *Level
}

var (
	backendMtx sync.RWMutex
	backendLog *zap.Logger
	generation uint64

	levelsMtx sync.RWMutex
	levels    = map[string]Level{}
)

// Initialize replaces the logging backend. Loggers created before the call pick up
// the new backend on their next write.
func Initialize(opts Options) {
	l := newZapLogger(opts)

	backendMtx.Lock()
	backendLog = l
	generation++
	backendMtx.Unlock()

	if opts.DefaultLevel != nil {
		SetLevel("", *opts.DefaultLevel)
	}
}

func newZapLogger(opts Options) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case FormatLogfmt:
		enc = zaplogfmt.NewEncoder(encCfg)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	// module levels are enforced by Logger; the core lets everything through
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.DPanicLevel))
}

func backend() (*zap.Logger, uint64) {
	backendMtx.RLock()
	l, gen := backendLog, generation
	backendMtx.RUnlock()
	if l != nil {
		return l, gen
	}

	backendMtx.Lock()
	defer backendMtx.Unlock()
	if backendLog == nil {
		backendLog = newZapLogger(Options{})
	}
	return backendLog, generation
}

// SetLevel sets the log level for the given module. The empty module sets the default.
func SetLevel(module string, level Level) {
	levelsMtx.Lock()
	defer levelsMtx.Unlock()
	levels[module] = level
}

// GetLevel returns the log level for the given module.
func GetLevel(module string) Level {
	levelsMtx.RLock()
	defer levelsMtx.RUnlock()
	if level, ok := levels[module]; ok {
		return level
	}
	if level, ok := levels[""]; ok {
		return level
	}
	return INFO
}

// IsEnabledFor returns true if the given level is enabled for the module.
func IsEnabledFor(module string, level Level) bool {
	return level <= GetLevel(module)
}

// LogLevel returns the log level from a string representation.
func LogLevel(level string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "CRITICAL":
		return CRITICAL, nil
	case "ERROR":
		return ERROR, nil
	case "WARNING", "WARN":
		return WARNING, nil
	case "INFO":
		return INFO, nil
	case "DEBUG":
		return DEBUG, nil
	}
	return ERROR, errors.Errorf("invalid log level: %s", level)
}

// Logger writes messages for a single module.
type Logger struct {
	module string

	mtx   sync.Mutex
	gen   uint64
	sugar *zap.SugaredLogger
}

// NewLogger creates and returns a Logger for the module. The backend is resolved lazily.
func NewLogger(module string) *Logger {
	return &Logger{module: module}
}

// Module returns the module name.
func (l *Logger) Module() string {
	return l.module
}

func (l *Logger) s() *zap.SugaredLogger {
	b, gen := backend()

	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.sugar == nil || l.gen != gen {
		l.sugar = b.Named(l.module).WithOptions(zap.AddCallerSkip(1)).Sugar()
		l.gen = gen
	}
	return l.sugar
}

// Fatal is a CRITICAL log followed by os.Exit(1).
func (l *Logger) Fatal(args ...interface{}) {
	l.s().Fatal(args...)
}

// Fatalf is a formatted CRITICAL log followed by os.Exit(1).
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.s().Fatalf(format, args...)
}

// Panic is a CRITICAL log followed by panic.
func (l *Logger) Panic(args ...interface{}) {
	l.s().Panic(args...)
}

// Panicf is a formatted CRITICAL log followed by panic.
func (l *Logger) Panicf(format string, args ...interface{}) {
	l.s().Panicf(format, args...)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(args ...interface{}) {
	if IsEnabledFor(l.module, DEBUG) {
		l.s().Debug(args...)
	}
}

// Debugf logs at DEBUG level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if IsEnabledFor(l.module, DEBUG) {
		l.s().Debugf(format, args...)
	}
}

// Info logs at INFO level.
func (l *Logger) Info(args ...interface{}) {
	if IsEnabledFor(l.module, INFO) {
		l.s().Info(args...)
	}
}

// Infof logs at INFO level.
func (l *Logger) Infof(format string, args ...interface{}) {
	if IsEnabledFor(l.module, INFO) {
		l.s().Infof(format, args...)
	}
}

// Warn logs at WARNING level.
func (l *Logger) Warn(args ...interface{}) {
	if IsEnabledFor(l.module, WARNING) {
		l.s().Warn(args...)
	}
}

// Warnf logs at WARNING level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	if IsEnabledFor(l.module, WARNING) {
		l.s().Warnf(format, args...)
	}
}

// Error logs at ERROR level.
func (l *Logger) Error(args ...interface{}) {
	if IsEnabledFor(l.module, ERROR) {
		l.s().Error(args...)
	}
}

// Errorf logs at ERROR level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	if IsEnabledFor(l.module, ERROR) {
		l.s().Errorf(format, args...)
	}
}

// Infow logs a message with structured key/value context at INFO level.
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	if IsEnabledFor(l.module, INFO) {
		l.s().Infow(msg, keysAndValues...)
	}
}

// Debugw logs a message with structured key/value context at DEBUG level.
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	if IsEnabledFor(l.module, DEBUG) {
		l.s().Debugw(msg, keysAndValues...)
	}
}
