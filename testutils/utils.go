// Package testutils holds shared helpers for package tests.
package testutils

import (
	"github.com/covclient/coveralls-go/config"
	"github.com/covclient/coveralls-go/pkg/lumber"
)

// GetLogger returns a console-only lumber.Logger for tests.
func GetLogger() (lumber.Logger, error) {
	logger, err := lumber.NewLogger(lumber.LoggingConfig{EnableConsole: true, ConsoleLevel: lumber.Debug}, true, lumber.InstanceZapLogger)
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// GetConfig returns a CoverallsConfig with the defaults tests rely on.
func GetConfig() *config.CoverallsConfig {
	return &config.CoverallsConfig{
		RepoRoot: ".",
		Profiles: []string{"coverage.out"},
	}
}
