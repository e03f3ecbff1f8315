// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package xdg provides XDG Base Directory paths for TickBridge.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "tickbridge"

// ConfigFileName is the name of the config file inside ConfigDir.
const ConfigFileName = "config.yaml"

// baseDir resolves an XDG base variable, falling back to $HOME/fallback.
func baseDir(env string, fallback ...string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return base, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.With("env", env).Hint("cannot resolve home directory").Wrap(err)
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}

// ConfigDir returns the XDG config directory for tickbridge.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base, err := baseDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName), nil
}

// DataDir returns the XDG data directory for tickbridge.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() (string, error) {
	base, err := baseDir("XDG_DATA_HOME", ".local", "share")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName), nil
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// ExtensionsDir returns the default extensions directory.
func ExtensionsDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "extensions"), nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.With("path", path).Wrapf(err, "create directory")
	}
	return nil
}
