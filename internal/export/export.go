// Package export turns a snapshot of survey entries into standalone
// artifacts: CSV, KMZ, XLSX and a ZIP of the photos. Every exporter builds
// the whole artifact in memory and never mutates the entries it reads.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/survey"
)

// Sentinel errors. ErrExportPartial is only ever attached to an artifact as
// a warning; ErrExportFailed means no artifact was produced.
var (
	ErrExportPartial = errors.NewStd("export partially completed")
	ErrExportFailed  = errors.NewStd("export failed")
)

// Format identifies an artifact kind.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatKMZ  Format = "kmz"
	FormatZIP  Format = "zip"
	FormatXLSX Format = "xlsx"
)

// AllFormats lists the formats produced by "all" exports.
var AllFormats = []Format{FormatCSV, FormatKMZ, FormatZIP, FormatXLSX}

// fileNameLayout is the timestamp part of generated file names.
const fileNameLayout = "20060102_150405"

// ParseFormat resolves a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatKMZ, FormatZIP, FormatXLSX:
		return f, nil
	case "photos", "images":
		return FormatZIP, nil
	}
	return "", errors.Newf("unsupported export format %q", s).
		Component("export").
		Category(errors.CategoryValidation).
		Context("format", s).
		Build()
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatKMZ:
		return "application/vnd.google-earth.kmz"
	case FormatZIP:
		return "application/zip"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// FileName returns the artifact name for an export started at at.
func (f Format) FileName(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = "survey"
	}
	stamp := prefix + "_" + at.Format(fileNameLayout)
	switch f {
	case FormatZIP:
		return stamp + "_photos.zip"
	default:
		return stamp + "." + string(f)
	}
}

// Artifact is a finished export held in memory.
type Artifact struct {
	Format      Format
	FileName    string
	ContentType string
	Data        []byte
	// Count is the number of entries represented in Data.
	Count    int
	Warnings []error
}

// Partial reports whether some entries were left out.
func (a *Artifact) Partial() bool {
	return len(a.Warnings) > 0
}

// WarningMessages flattens the warnings for headers and logs.
func (a *Artifact) WarningMessages() []string {
	msgs := make([]string, len(a.Warnings))
	for i, w := range a.Warnings {
		msgs[i] = w.Error()
	}
	return msgs
}

func newArtifact(format Format, prefix string, at time.Time, data []byte, count int) *Artifact {
	return &Artifact{
		Format:      format,
		FileName:    format.FileName(prefix, at),
		ContentType: format.ContentType(),
		Data:        data,
		Count:       count,
	}
}

func failure(format Format, err error, reason string) error {
	var cause error
	if err != nil {
		cause = fmt.Errorf("%w: %s: %w", ErrExportFailed, reason, err)
	} else {
		cause = fmt.Errorf("%w: %s", ErrExportFailed, reason)
	}
	return errors.New(cause).
		Component("export").
		Category(errors.CategoryExport).
		Context("format", string(format)).
		Build()
}

func partial(entryID, reason string) error {
	return errors.New(fmt.Errorf("%w: entry %s: %s", ErrExportPartial, entryID, reason)).
		Component("export").
		Category(errors.CategoryExport).
		Context("entry_id", entryID).
		Build()
}

// Build produces one artifact of format from entries.
func Build(format Format, entries []*survey.Entry, prefix string, at time.Time) (*Artifact, error) {
	switch format {
	case FormatCSV:
		data, err := ToCSV(entries)
		if err != nil {
			return nil, err
		}
		return newArtifact(format, prefix, at, data, len(entries)), nil
	case FormatKMZ:
		data, placemarks, err := toKMZ(entries)
		if err != nil {
			return nil, err
		}
		return newArtifact(format, prefix, at, data, placemarks), nil
	case FormatXLSX:
		data, err := ToXLSX(entries)
		if err != nil {
			return nil, err
		}
		return newArtifact(format, prefix, at, data, len(entries)), nil
	case FormatZIP:
		artifact, err := ToImageArchive(entries)
		if err != nil {
			return nil, err
		}
		artifact.FileName = format.FileName(prefix, at)
		return artifact, nil
	}
	return nil, failure(format, nil, "unknown format")
}
