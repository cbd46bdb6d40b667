// Package logger builds the process-wide zap logger.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rhuss/agentbridge/pkg/debug"
)

// Options selects the level and encoding of the logger.
type Options struct {
	Level  string // ERROR, WARN, INFO, DEBUG or TRACE
	Format string // "console" (default) or "json"
	Output io.Writer
}

// New creates a logger writing to opts.Output (stderr when nil).
func New(opts Options) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(out),
		debug.ParseLevel(opts.Level),
	)

	return zap.New(core, zap.AddCaller())
}

// NewLogger returns a console logger at INFO, or DEBUG when debug is set.
func NewLogger(debugMode bool) *zap.Logger {
	level := "INFO"
	if debugMode {
		level = "DEBUG"
	}
	return New(Options{Level: level})
}
