// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/logger"
)

const appDirName = "treesurvey"

// GetDefaultConfigPaths returns the configuration search paths for the
// current OS. When one of them already holds config.yaml only that path is
// returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("operation", "get-executable-path").
				Build()
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", appDirName),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", appDirName),
			"/etc/" + appDirName,
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// FindConfigFile returns the path of the config file viper loaded
func FindConfigFile() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	return "", errors.Newf("config file not found").
		Category(errors.CategoryNotFound).
		Build()
}

// ResolvePath joins a relative path onto the configured data directory.
func (s *Settings) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || s.Main.DataDir == "" {
		return path
	}
	return filepath.Join(s.Main.DataDir, path)
}

// GetLogger returns the config package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
