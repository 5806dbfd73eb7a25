// Package logging builds the zap logger every service starts with.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production sugared logger tagged with the service name.
// debug lowers the level so local runs show per-message logging.
func New(service string, debug bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zap.Must(cfg.Build()).Sugar().With("service", service)
}
