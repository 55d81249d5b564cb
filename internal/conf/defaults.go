// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultSpecies is the species list offered when none is configured
var DefaultSpecies = []string{"Akasia", "Sengon", "Jati", "Mahoni"}

// setDefaultConfig registers default values on v.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "TreeSurvey")
	v.SetDefault("main.datadir", "data")

	v.SetDefault("survey.defaultheight", 50)
	v.SetDefault("survey.defaultlocation", "")
	v.SetDefault("survey.defaultjob", "")
	v.SetDefault("survey.defaultsupervisor", "")
	v.SetDefault("survey.defaultvendor", "")
	v.SetDefault("survey.defaultteam", "")
	v.SetDefault("survey.species", DefaultSpecies)
	v.SetDefault("survey.pagesize", 5)

	v.SetDefault("datastore.type", "sqlite")
	v.SetDefault("datastore.sqlite.path", "treesurvey.db")
	v.SetDefault("datastore.mysql.host", "localhost")
	v.SetDefault("datastore.mysql.port", "3306")
	v.SetDefault("datastore.mysql.username", "")
	v.SetDefault("datastore.mysql.password", "")
	v.SetDefault("datastore.mysql.database", "treesurvey")

	v.SetDefault("export.outputdir", "exports")
	v.SetDefault("export.fileprefix", "survey")

	v.SetDefault("upload.http.enabled", false)
	v.SetDefault("upload.http.url", "")
	v.SetDefault("upload.http.timeout", 30*time.Second)
	v.SetDefault("upload.http.useragent", "TreeSurvey/1.0")

	v.SetDefault("upload.mqtt.enabled", false)
	v.SetDefault("upload.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("upload.mqtt.clientid", "treesurvey")
	v.SetDefault("upload.mqtt.username", "")
	v.SetDefault("upload.mqtt.password", "")
	v.SetDefault("upload.mqtt.topic", "treesurvey/entries")
	v.SetDefault("upload.mqtt.retain", false)

	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.timeout", 5*time.Minute)
	v.SetDefault("publish.local.enabled", false)
	v.SetDefault("publish.local.path", "published")
	v.SetDefault("publish.ftp.enabled", false)
	v.SetDefault("publish.ftp.port", 21)
	v.SetDefault("publish.ftp.remotepath", "/")
	v.SetDefault("publish.ftp.timeout", 30*time.Second)
	v.SetDefault("publish.sftp.enabled", false)
	v.SetDefault("publish.sftp.port", 22)
	v.SetDefault("publish.sftp.remotepath", "/")
	v.SetDefault("publish.sftp.timeout", 30*time.Second)
	v.SetDefault("publish.gdrive.enabled", false)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.timeout", 10*time.Second)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.port", "8080")
	v.SetDefault("webserver.bodylimit", "20M")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", true)
	v.SetDefault("logging.file_output.path", "logs/treesurvey.log")
	v.SetDefault("logging.file_output.level", "info")
}
