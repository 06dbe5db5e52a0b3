package slicer

import (
	"fmt"
	"path/filepath"
)

// ConvertToAbsolute returns an absolute path for the given path, resolving
// relative paths against the given base directory (typically the directory
// holding a config file).
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return path, fmt.Errorf("unable to make base directory %q absolute: %v", baseDir, err)
	}
	return filepath.Join(absDir, path), nil
}
