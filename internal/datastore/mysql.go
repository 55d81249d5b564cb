package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func mysqlDSN(s conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// Open connects to MySQL and migrates the schema
func (store *MySQLStore) Open() error {
	cfg := store.Settings.Datastore.MySQL
	if cfg.Host == "" || cfg.Database == "" {
		return validationError("mysql host and database are required", "datastore.mysql", cfg.Host)
	}

	db, err := gorm.Open(mysql.Open(mysqlDSN(cfg)), newGormConfig(store.Settings.Debug))
	if err != nil {
		return dbError(err, "open", errors.PriorityCritical,
			"db_type", "mysql",
			"host", cfg.Host,
			"port", cfg.Port,
			"database", cfg.Database)
	}

	store.DB = db
	return performAutoMigration(db, "MySQL", fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Database))
}

// Close closes the MySQL connection pool
func (store *MySQLStore) Close() error {
	return store.closeDB()
}
