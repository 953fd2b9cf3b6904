// Package logging builds the process-wide zap logger.
//
// The MCP stdio transport owns stdout, so all log output goes to stderr.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs the root logger. Debug mode switches to the development
// encoder with human-readable timestamps; production mode emits JSON.
func New(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// MustNew is New for main(); it writes the construction error to stderr and
// exits because there is nowhere to log it.
func MustNew(debug bool) *zap.Logger {
	logger, err := New(debug)
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	return logger
}
