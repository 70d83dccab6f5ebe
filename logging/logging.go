// Package logging builds the application's zap logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a JSON production logger when environment is "production" and
// a console development logger otherwise, filtered at level.
func New(environment, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level = lvl

	return cfg.Build()
}
