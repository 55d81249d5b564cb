// interfaces.go defines the entry store and its GORM implementation
package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/logger"
	"github.com/tphakala/treesurvey/internal/survey"
)

// Interface abstracts the database holding survey entries.
type Interface interface {
	Open() error
	Save(ctx context.Context, entry *survey.Entry) error
	Get(ctx context.Context, entryID string) (*survey.Entry, error)
	All(ctx context.Context) ([]*survey.Entry, error)
	Count(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
	Close() error
}

// OperationRecorder receives timing for every store operation
type OperationRecorder interface {
	RecordDBOperation(operation, status string, seconds float64)
}

// DataStore implements Interface on top of a GORM database.
type DataStore struct {
	DB       *gorm.DB
	recorder OperationRecorder
}

// New returns the store selected by settings.Datastore.Type.
func New(settings *conf.Settings) (Interface, error) {
	switch settings.Datastore.Type {
	case conf.DatastoreSQLite, "":
		return &SQLiteStore{Settings: settings}, nil
	case conf.DatastoreMySQL:
		return &MySQLStore{Settings: settings}, nil
	}
	return nil, errors.Newf("unsupported datastore type %q", settings.Datastore.Type).
		Component("datastore").
		Category(errors.CategoryConfiguration).
		Build()
}

// GetLogger returns the datastore module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// SetMetrics attaches a recorder for operation timings
func (ds *DataStore) SetMetrics(r OperationRecorder) {
	ds.recorder = r
}

func (ds *DataStore) observe(operation string, start time.Time, err error) {
	if ds.recorder == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	ds.recorder.RecordDBOperation(operation, status, time.Since(start).Seconds())
}

// Save stores entry. Entries are append-only, so Save always inserts.
func (ds *DataStore) Save(ctx context.Context, entry *survey.Entry) (err error) {
	if ds.DB == nil {
		return notInitializedError("save")
	}
	if entry == nil || entry.ID == "" {
		return validationError("entry id is required", "entry_id", "")
	}
	start := time.Now()
	defer func() { ds.observe("save", start, err) }()

	if err = ds.DB.WithContext(ctx).Create(recordFromEntry(entry)).Error; err != nil {
		return dbError(err, "save", errors.PriorityHigh, "entry_id", entry.ID)
	}
	return nil
}

// Get returns the first stored entry with entryID.
func (ds *DataStore) Get(ctx context.Context, entryID string) (*survey.Entry, error) {
	if ds.DB == nil {
		return nil, notInitializedError("get")
	}

	var record EntryRecord
	err := ds.DB.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("id ASC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("entry %s not found", entryID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("entry_id", entryID).
				Build()
		}
		return nil, dbError(err, "get", "", "entry_id", entryID)
	}
	return record.toEntry()
}

// All returns every entry in insertion order.
func (ds *DataStore) All(ctx context.Context) (entries []*survey.Entry, err error) {
	if ds.DB == nil {
		return nil, notInitializedError("all")
	}
	start := time.Now()
	defer func() { ds.observe("all", start, err) }()

	var records []EntryRecord
	if err = ds.DB.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, dbError(err, "all", "")
	}

	entries = make([]*survey.Entry, 0, len(records))
	for i := range records {
		e, convErr := records[i].toEntry()
		if convErr != nil {
			GetLogger().Warn("skipping unreadable entry",
				logger.String("entry_id", records[i].EntryID),
				logger.Error(convErr))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (ds *DataStore) Count(ctx context.Context) (int64, error) {
	if ds.DB == nil {
		return 0, notInitializedError("count")
	}
	var n int64
	if err := ds.DB.WithContext(ctx).Model(&EntryRecord{}).Count(&n).Error; err != nil {
		return 0, dbError(err, "count", "")
	}
	return n, nil
}

// Reset deletes every entry.
func (ds *DataStore) Reset(ctx context.Context) (err error) {
	if ds.DB == nil {
		return notInitializedError("reset")
	}
	start := time.Now()
	defer func() { ds.observe("reset", start, err) }()

	result := ds.DB.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&EntryRecord{})
	if err = result.Error; err != nil {
		return dbError(err, "reset", errors.PriorityHigh)
	}
	GetLogger().Info("all entries deleted", logger.Int64("rows", result.RowsAffected))
	return nil
}

// closeDB releases the underlying connection pool.
func (ds *DataStore) closeDB() error {
	if ds.DB == nil {
		return notInitializedError("close")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", "")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "")
	}
	return nil
}

func newGormConfig(debug bool) *gorm.Config {
	slow := 200 * time.Millisecond
	if debug {
		slow = 50 * time.Millisecond
	}
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger(), slow),
	}
}

func performAutoMigration(db *gorm.DB, dbType, connectionInfo string) error {
	start := time.Now()
	if err := db.AutoMigrate(&EntryRecord{}); err != nil {
		return dbError(fmt.Errorf("auto-migrate %s database: %w", dbType, err), "migrate", errors.PriorityCritical)
	}
	GetLogger().Info("database ready",
		logger.String("db_type", dbType),
		logger.String("location", connectionInfo),
		logger.Duration("migration", time.Since(start)))
	return nil
}
