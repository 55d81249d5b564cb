// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Datastore types
const (
	DatastoreSQLite = "sqlite"
	DatastoreMySQL  = "mysql"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateSurveySettings,
		validateDatastoreSettings,
		validateUploadSettings,
		validatePublishSettings,
		validateNotificationSettings,
		validateWebServerSettings,
		validateSentrySettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateSurveySettings(s *Settings) []string {
	var errs []string
	if s.Survey.DefaultHeight < 0 {
		errs = append(errs, fmt.Sprintf("survey.defaultheight must be non-negative, got %d", s.Survey.DefaultHeight))
	}
	if s.Survey.PageSize < 1 {
		errs = append(errs, fmt.Sprintf("survey.pagesize must be at least 1, got %d", s.Survey.PageSize))
	}
	for i, species := range s.Survey.Species {
		if strings.TrimSpace(species) == "" {
			errs = append(errs, fmt.Sprintf("survey.species[%d] is empty", i))
		}
	}
	return errs
}

func validateDatastoreSettings(s *Settings) []string {
	var errs []string
	switch strings.ToLower(s.Datastore.Type) {
	case DatastoreSQLite:
		if s.Datastore.SQLite.Path == "" {
			errs = append(errs, "datastore.sqlite.path is required")
		}
	case DatastoreMySQL:
		if s.Datastore.MySQL.Host == "" || s.Datastore.MySQL.Database == "" {
			errs = append(errs, "datastore.mysql.host and datastore.mysql.database are required")
		}
		if err := validateEnvPort(s.Datastore.MySQL.Port); err != nil {
			errs = append(errs, "datastore.mysql.port: "+err.Error())
		}
	default:
		errs = append(errs, fmt.Sprintf("datastore.type must be %q or %q, got %q", DatastoreSQLite, DatastoreMySQL, s.Datastore.Type))
	}
	return errs
}

func validateUploadSettings(s *Settings) []string {
	var errs []string
	if s.Upload.HTTP.Enabled {
		u, err := url.Parse(s.Upload.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("upload.http.url must be an http(s) URL, got %q", s.Upload.HTTP.URL))
		}
	}
	if s.Upload.MQTT.Enabled {
		if s.Upload.MQTT.Broker == "" {
			errs = append(errs, "upload.mqtt.broker is required when MQTT upload is enabled")
		}
		if s.Upload.MQTT.Topic == "" {
			errs = append(errs, "upload.mqtt.topic is required when MQTT upload is enabled")
		}
	}
	return errs
}

func validatePublishSettings(s *Settings) []string {
	if !s.Publish.Enabled {
		return nil
	}

	var errs []string
	p := s.Publish
	if !p.Local.Enabled && !p.FTP.Enabled && !p.SFTP.Enabled && !p.GDrive.Enabled {
		errs = append(errs, "publish is enabled but no target is enabled")
	}
	if p.Local.Enabled && p.Local.Path == "" {
		errs = append(errs, "publish.local.path is required")
	}
	if p.FTP.Enabled {
		if p.FTP.Host == "" {
			errs = append(errs, "publish.ftp.host is required")
		}
		if err := validateEnvPort(strconv.Itoa(p.FTP.Port)); err != nil {
			errs = append(errs, "publish.ftp.port: "+err.Error())
		}
	}
	if p.SFTP.Enabled {
		if p.SFTP.Host == "" || p.SFTP.Username == "" {
			errs = append(errs, "publish.sftp.host and publish.sftp.username are required")
		}
		if p.SFTP.Password == "" && p.SFTP.KeyFile == "" {
			errs = append(errs, "publish.sftp needs a password or a key file")
		}
		if err := validateEnvPort(strconv.Itoa(p.SFTP.Port)); err != nil {
			errs = append(errs, "publish.sftp.port: "+err.Error())
		}
	}
	if p.GDrive.Enabled && p.GDrive.CredentialsFile == "" {
		errs = append(errs, "publish.gdrive.credentialsfile is required")
	}
	return errs
}

func validateNotificationSettings(s *Settings) []string {
	if s.Notification.Enabled && len(s.Notification.URLs) == 0 {
		return []string{"notification is enabled but no urls are configured"}
	}
	return nil
}

func validateWebServerSettings(s *Settings) []string {
	if !s.WebServer.Enabled {
		return nil
	}
	if err := validateEnvPort(s.WebServer.Port); err != nil {
		return []string{"webserver.port: " + err.Error()}
	}
	return nil
}

func validateSentrySettings(s *Settings) []string {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return []string{"sentry.dsn is required when sentry is enabled"}
	}
	return nil
}
