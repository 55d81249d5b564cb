package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open creates the database file if needed and migrates the schema.
// The special path ":memory:" opens a private in-memory database.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Datastore.SQLite.Path
	if path == "" {
		return validationError("sqlite path is empty", "datastore.sqlite.path", path)
	}

	dsn := path
	if path != ":memory:" {
		dsn = store.Settings.ResolvePath(path)
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", dsn).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), newGormConfig(store.Settings.Debug))
	if err != nil {
		return dbError(err, "open", errors.PriorityCritical, "db_type", "sqlite", "path", dsn)
	}

	if path == ":memory:" {
		// each pooled connection would otherwise see its own empty database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	store.DB = db
	return performAutoMigration(db, "SQLite", dsn)
}

// Close closes the SQLite database
func (store *SQLiteStore) Close() error {
	return store.closeDB()
}
