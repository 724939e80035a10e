// Package logging provides category-scoped zap loggers for the dirigent
// subsystems. Call Init once at startup; Get returns a named sub-logger
// that is safe for concurrent use. Before Init everything goes to a nop
// logger, so library code can log unconditionally.
package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a subsystem for log routing and filtering.
type Category string

const (
	CategoryRouter    Category = "router"
	CategoryDispatch  Category = "dispatch"
	CategoryExecution Category = "execution"
	CategoryHistory   Category = "history"
	CategoryScheduler Category = "scheduler"
	CategoryChannel   Category = "channel"
	CategoryStore     Category = "store"
	CategoryModel     Category = "model"
	CategoryTasks     Category = "tasks"
	CategoryMCP       Category = "mcp"
	CategoryLoops     Category = "loops"
)

// Options configure the process-wide logger.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is json or console.
	Format string
	// File is an optional path; when set, log output is mirrored there.
	File string
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	sugared = map[Category]*zap.SugaredLogger{}
)

// Init builds the root logger from opts and replaces the process logger.
// It may be called again (e.g. by tests) to swap configurations.
func Init(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		fileEnc := zapcore.NewJSONEncoder(encCfg)
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.Lock(f), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	mu.Lock()
	defer mu.Unlock()
	root = logger
	sugared = map[Category]*zap.SugaredLogger{}
	return nil
}

// Root returns the current root logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Get returns the sugared logger for a category. Loggers are cached per
// category so repeated calls are cheap.
func Get(c Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := sugared[c]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := sugared[c]; ok {
		return l
	}
	l := root.Named(string(c)).Sugar()
	sugared[c] = l
	return l
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %q", s)
	}
}

// Ellipse shortens s to at most max runes for log output, appending an
// ellipsis marker when truncation happened.
func Ellipse(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
