// model.go defines the persisted form of a survey entry
package datastore

import (
	"time"

	"github.com/tphakala/treesurvey/internal/survey"
)

// EntryRecord is one captured tree as stored in the database
type EntryRecord struct {
	ID           uint      `gorm:"primaryKey"`
	EntryID      string    `gorm:"type:varchar(32);index:idx_entries_entry_id"`
	CapturedAt   time.Time `gorm:"index:idx_entries_captured_at"`
	HeightCm     int
	PlantingYear int
	Species      string `gorm:"type:varchar(128);index:idx_entries_species"`
	Health       string `gorm:"type:varchar(16)"` // crew label: Sehat, Merana, Mati
	Location     string
	JobName      string
	Supervisor   string
	Vendor       string
	Team         string
	HasGPS       bool
	Latitude     float64
	Longitude    float64
	Accuracy     float64
	Photo        []byte `gorm:"type:longblob"`
	CreatedAt    time.Time
}

// TableName keeps the table name stable across struct renames
func (EntryRecord) TableName() string {
	return "survey_entries"
}

func recordFromEntry(e *survey.Entry) *EntryRecord {
	r := &EntryRecord{
		EntryID:      e.ID,
		CapturedAt:   e.CapturedAt,
		HeightCm:     e.HeightCm,
		PlantingYear: e.PlantingYear,
		Species:      e.Species,
		Health:       e.Health.Label(),
		Location:     e.Location,
		JobName:      e.JobName,
		Supervisor:   e.Supervisor,
		Vendor:       e.Vendor,
		Team:         e.Team,
		Photo:        e.Photo,
	}
	if e.GPS != nil {
		r.HasGPS = true
		r.Latitude = e.GPS.Latitude
		r.Longitude = e.GPS.Longitude
		r.Accuracy = e.GPS.AccuracyMeters
	}
	return r
}

func (r *EntryRecord) toEntry() (*survey.Entry, error) {
	health, err := survey.ParseHealth(r.Health)
	if err != nil {
		return nil, validationError("stored entry has unknown health value", "health", r.Health)
	}

	e := &survey.Entry{
		ID:           r.EntryID,
		CapturedAt:   r.CapturedAt,
		HeightCm:     r.HeightCm,
		PlantingYear: r.PlantingYear,
		Species:      r.Species,
		Health:       health,
		Location:     r.Location,
		JobName:      r.JobName,
		Supervisor:   r.Supervisor,
		Vendor:       r.Vendor,
		Team:         r.Team,
		Photo:        r.Photo,
	}
	if r.HasGPS {
		e.GPS = &survey.GeoFix{
			Latitude:       r.Latitude,
			Longitude:      r.Longitude,
			AccuracyMeters: r.Accuracy,
		}
	}
	return e, nil
}
