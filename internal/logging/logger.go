package logging

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the process-wide logger is built
type Options struct {
	Debug bool // enable debug level
	JSON  bool // production JSON encoding instead of console
}

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init builds the process-wide logger. Until it is called every subsystem
// logger is a no-op, so packages can log freely from tests.
func Init(opts Options) error {
	var cfg zap.Config
	if opts.JSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	Set(logger)
	return nil
}

// Set replaces the process-wide logger (tests use zaptest loggers)
func Set(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = logger
}

// For returns a logger tagged with the given subsystem
func For(subsystem string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sugar().With("subsystem", subsystem)
}

// Sync flushes buffered entries; call before exit
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// Truncate truncates a string to maxLen and adds ellipsis
func Truncate(s string, maxLen int) string {
	// Replace newlines with spaces for one-line logs
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
