package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
)

// GlobalConfigDir returns the path to the global cadence directory.
// This is typically ~/.cadence on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.CadenceHome), nil
}

// GlobalConfigPath returns the full path to the global configuration file.
// This is typically ~/.cadence/config.yaml on Unix systems.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path of the working directory config file.
func ProjectConfigPath() string {
	return constants.ProjectConfigName
}

// ResolvePath picks the config file to load. An explicit path must exist.
// Without one, ./cadence.yaml wins over ~/.cadence/config.yaml. It returns
// "" when no file exists, which means defaults only.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", errors.Wrapf(errors.ErrConfigNotFound, "%s", explicit)
		}
		return explicit, nil
	}

	if project := ProjectConfigPath(); fileExists(project) {
		return project, nil
	}

	if global, err := GlobalConfigPath(); err == nil && fileExists(global) {
		return global, nil
	}
	return "", nil
}

// fileExists returns true if a regular file exists at path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
