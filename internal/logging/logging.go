// Package logging constructs the shared zap logger.
package logging

import (
	"go.uber.org/zap"
)

// New returns a production JSON logger, or a human-readable development
// logger when debug is true. The returned logger is safe for concurrent use
// and should be passed into components at construction.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	// Sampling drops repeats under burst load; every cycle log line matters
	// for a pipeline that runs a handful of times per hour.
	cfg.Sampling = nil
	return cfg.Build()
}
