// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tphakala/treesurvey/internal/logger"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "TREESURVEY_DEBUG", validateEnvBool},
		{"main.datadir", "TREESURVEY_DATADIR", nil},

		{"datastore.type", "TREESURVEY_DATASTORE", validateEnvDatastoreType},
		{"datastore.sqlite.path", "TREESURVEY_SQLITE_PATH", nil},
		{"datastore.mysql.host", "TREESURVEY_MYSQL_HOST", nil},
		{"datastore.mysql.port", "TREESURVEY_MYSQL_PORT", validateEnvPort},
		{"datastore.mysql.username", "TREESURVEY_MYSQL_USERNAME", nil},
		{"datastore.mysql.password", "TREESURVEY_MYSQL_PASSWORD", nil},
		{"datastore.mysql.database", "TREESURVEY_MYSQL_DATABASE", nil},

		{"upload.http.enabled", "TREESURVEY_UPLOAD_ENABLED", validateEnvBool},
		{"upload.http.url", "TREESURVEY_UPLOAD_URL", validateEnvURL},
		{"upload.mqtt.enabled", "TREESURVEY_MQTT_ENABLED", validateEnvBool},
		{"upload.mqtt.broker", "TREESURVEY_MQTT_BROKER", validateEnvURL},
		{"upload.mqtt.username", "TREESURVEY_MQTT_USERNAME", nil},
		{"upload.mqtt.password", "TREESURVEY_MQTT_PASSWORD", nil},

		{"publish.ftp.password", "TREESURVEY_FTP_PASSWORD", nil},
		{"publish.sftp.password", "TREESURVEY_SFTP_PASSWORD", nil},
		{"publish.gdrive.credentialsfile", "TREESURVEY_GDRIVE_CREDENTIALS", nil},

		{"webserver.port", "TREESURVEY_PORT", validateEnvPort},
		{"sentry.enabled", "TREESURVEY_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "TREESURVEY_SENTRY_DSN", validateEnvURL},
	}
}

// loadDotEnv loads the first .env file found in the working directory or a
// config path. Variables already set in the environment win.
func loadDotEnv(configPaths []string) error {
	candidates := append([]string{"."}, configPaths...)
	for _, dir := range candidates {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("error loading %s: %w", path, err)
		}
		GetLogger().Debug("loaded environment file", logger.String("path", path))
		return nil
	}
	return nil
}

// bindEnvVars binds environment variables to config keys and validates
// any values that are set.
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port '%s': %w", value, err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host, got '%s'", value)
	}
	return nil
}

func validateEnvDatastoreType(value string) error {
	switch strings.ToLower(value) {
	case DatastoreSQLite, DatastoreMySQL:
		return nil
	default:
		return fmt.Errorf("datastore must be %q or %q, got '%s'", DatastoreSQLite, DatastoreMySQL, value)
	}
}
