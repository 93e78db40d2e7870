package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureHomeDir creates the cropadvisor home directory.
func EnsureHomeDir() error {
	dir := HomeDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create home directory %q: %w", dir, err)
	}
	return nil
}

// EnsureLogDir creates the parent directory of the configured log file.
// It does nothing when logging goes to stderr.
func EnsureLogDir() error {
	cfg := GetGlobalConfig()
	if cfg.Logging.File == "" {
		return nil
	}
	logDir := filepath.Dir(cfg.Logging.File)
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}
	return nil
}

// EnsureCacheDir creates the soil cache directory when one is configured.
func EnsureCacheDir() error {
	dir := GetGlobalConfig().Sources.CacheDir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create cache directory %q: %w", dir, err)
	}
	return nil
}
