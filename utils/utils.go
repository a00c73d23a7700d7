// Package utils provides utility functions.
package utils

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
)

// AppName is used for config, data and cache directories.
const AppName = "readaloud"

// ExpandPath expands tilde and all environment variables from the given path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	s, err := homedir.Expand(os.ExpandEnv(path))
	if err == nil {
		return s
	}
	return path
}

// DataPath returns the path of name inside the user data directory.
func DataPath(name string) (string, error) {
	dir, err := gap.NewScope(gap.User, AppName).DataPath("")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// CachePath returns the path of name inside the user cache directory.
func CachePath(name string) (string, error) {
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
