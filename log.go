package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/utils"
)

func setupLog() (func() error, error) {
	cfg, err := parseEnv()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	log.SetReportTimestamp(true)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if cfg.LogStderr {
		log.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile, err = utils.CachePath(utils.AppName + ".log")
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return f.Close, nil
}
