// Package debug provides category-based debug logging for agentbridge.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via AGENTBRIDGE_DEBUG env or config
//   - Levels (HOW MUCH detail): controlled via AGENTBRIDGE_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log("agent", "starting run", zap.String("url", url))
//	if debug.Enabled("bridge") { /* expensive formatting */ }
//
// Categories: agent, bridge, transport, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelTrace is below zap's debug level for maximum verbosity.
// At TRACE, full snapshot payloads are logged.
const LevelTrace = zapcore.DebugLevel - 1

// categories holds the set of enabled debug categories and logger the
// sink for debug output. Both are written only by Init.
var (
	categories map[string]bool
	logger     = zap.NewNop()
)

func init() {
	// Initialize from environment for immediate availability.
	categories = parseCategories(os.Getenv("AGENTBRIDGE_DEBUG"))
}

// Init configures the debug system with the process logger and the
// configured categories. The environment overrides config.
func Init(l *zap.Logger, configCategories string) {
	cats := os.Getenv("AGENTBRIDGE_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	if l == nil {
		l = zap.NewNop()
	}
	logger = l.Named("debug")
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, fields ...zap.Field) {
	if !Enabled(category) {
		return
	}
	logger.Debug(msg, append([]zap.Field{zap.String("debug", category)}, fields...)...)
}

// Trace emits a trace-level message for the given category.
// Only visible when the log level is TRACE.
func Trace(category string, msg string, fields ...zap.Field) {
	if !Enabled(category) {
		return
	}
	if ce := logger.Check(LevelTrace, msg); ce != nil {
		ce.Write(append([]zap.Field{zap.String("debug", category)}, fields...)...)
	}
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return logger.Core().Enabled(LevelTrace)
}

// ParseLevel converts a level string to a zap level.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO", "":
		return zapcore.InfoLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Categories returns the list of enabled categories (for health/status reporting).
func Categories() []string {
	var result []string
	for k := range categories {
		result = append(result, k)
	}
	return result
}

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
