// Package conf provides configuration management for the tree survey tool.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/treesurvey/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings holds application wide settings
type MainSettings struct {
	Name    string // instance name shown in notifications
	DataDir string // base directory for relative paths
}

// SurveySettings holds capture form defaults
type SurveySettings struct {
	DefaultHeight     int      // default tree height in cm
	DefaultLocation   string   // prefilled planting location
	DefaultJob        string   // prefilled job name
	DefaultSupervisor string   // prefilled supervisor
	DefaultVendor     string   // prefilled vendor
	DefaultTeam       string   // prefilled team
	Species           []string // species offered in the capture form
	PageSize          int      // entries per page in listings
}

// FirstSpecies returns the species the capture form starts on, or an
// empty string when none is configured.
func (s SurveySettings) FirstSpecies() string {
	if len(s.Species) == 0 {
		return ""
	}
	return s.Species[0]
}

// SQLiteSettings holds the SQLite store location
type SQLiteSettings struct {
	Path string
}

// MySQLSettings holds MySQL connection parameters
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DatastoreSettings selects and configures the entry store
type DatastoreSettings struct {
	Type   string // sqlite or mysql
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// ExportSettings controls where export artifacts are written
type ExportSettings struct {
	OutputDir  string
	FilePrefix string // artifact base name, e.g. "survey" -> survey_20240102_030405.csv
}

// HTTPUploadSettings configures the per-entry upload endpoint
type HTTPUploadSettings struct {
	Enabled   bool
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// MQTTSettings configures the per-entry MQTT publisher
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool
}

// UploadSettings groups the per-entry upload channels
type UploadSettings struct {
	HTTP HTTPUploadSettings
	MQTT MQTTSettings
}

// LocalTargetSettings configures publishing to a local or mounted directory
type LocalTargetSettings struct {
	Enabled bool
	Path    string
}

// FTPTargetSettings configures publishing to an FTP server
type FTPTargetSettings struct {
	Enabled    bool
	Host       string
	Port       int
	Username   string
	Password   string
	RemotePath string
	Timeout    time.Duration
}

// SFTPTargetSettings configures publishing to an SFTP server
type SFTPTargetSettings struct {
	Enabled        bool
	Host           string
	Port           int
	Username       string
	Password       string
	KeyFile        string
	KnownHostsFile string
	RemotePath     string
	Timeout        time.Duration
}

// GDriveTargetSettings configures publishing to a Google Drive folder
type GDriveTargetSettings struct {
	Enabled         bool
	CredentialsFile string
	FolderID        string
}

// PublishSettings configures where finished artifacts are copied
type PublishSettings struct {
	Enabled bool
	Timeout time.Duration
	Local   LocalTargetSettings
	FTP     FTPTargetSettings
	SFTP    SFTPTargetSettings
	GDrive  GDriveTargetSettings
}

// NotificationSettings configures shoutrrr notifications
type NotificationSettings struct {
	Enabled bool
	URLs    []string
	Timeout time.Duration
}

// WebServerSettings configures the HTTP API
type WebServerSettings struct {
	Enabled   bool
	Port      string
	BodyLimit string // maximum request size, e.g. "20M"
}

// MetricsSettings toggles the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool
}

// SentrySettings configures error telemetry
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// Settings contains all configuration options
type Settings struct {
	Debug        bool
	Main         MainSettings
	Survey       SurveySettings
	Datastore    DatastoreSettings
	Export       ExportSettings
	Upload       UploadSettings
	Publish      PublishSettings
	Notification NotificationSettings
	WebServer    WebServerSettings
	Metrics      MetricsSettings
	Sentry       SentrySettings
	Logging      logger.LoggingConfig
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	once             sync.Once
)

// Load reads the configuration file, environment and .env files into a new
// Settings instance and makes it the current one.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig(viper.GetViper())

	if err := loadDotEnv(configPaths); err != nil {
		GetLogger().Warn("failed to load .env file", logger.Error(err))
	}

	if err := bindEnvVars(viper.GetViper()); err != nil {
		GetLogger().Warn("environment variable configuration issues", logger.Error(err))
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to the first config path
func createDefaultConfig(configPaths []string) error {
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// Defaults returns settings built from the built-in defaults only, without
// touching the file system or the environment.
func Defaults() *Settings {
	v := viper.New()
	setDefaultConfig(v)

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		// defaults are static; a failure here is a programming error
		panic(fmt.Sprintf("conf: invalid built-in defaults: %v", err))
	}
	return settings
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				GetLogger().Error("error loading settings, using defaults", logger.Error(err))
				settingsMutex.Lock()
				settingsInstance = Defaults()
				settingsMutex.Unlock()
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to configPath atomically. Comments in the
// existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
