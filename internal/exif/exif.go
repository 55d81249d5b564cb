// Package exif writes and reads the survey metadata block carried inside a
// JPEG's APP1 Exif segment. Pixel data is never decoded or re-encoded: the
// file is treated as a sequence of marker segments and only the Exif
// segment is replaced or inserted.
package exif

import (
	"fmt"
	"time"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/geo"
)

// Software is written to the IFD0 Software tag.
const Software = "TreeSurvey"

// Sentinel errors. Embed never returns them as errors; they are carried in
// Result.Err so callers can tell a skipped embed from a successful one.
var (
	ErrEmbeddingFailed      = errors.NewStd("metadata embedding failed")
	ErrUnsupportedContainer = errors.NewStd("unsupported image container")
	ErrNoMetadata           = errors.NewStd("no survey metadata found")
)

// Metadata is the survey information written into a photo.
type Metadata struct {
	HeightCm   int
	Species    string
	Health     string
	Supervisor string
	Vendor     string
	Team       string
	CapturedAt time.Time // written as DateTime in local wall clock
	GPS        *geo.Fix
}

// Status describes the outcome of Embed
type Status int

const (
	StatusEmbedded Status = iota
	StatusEmbeddingFailed
	StatusUnsupportedContainer
)

func (s Status) String() string {
	switch s {
	case StatusEmbedded:
		return "embedded"
	case StatusEmbeddingFailed:
		return "embedding_failed"
	case StatusUnsupportedContainer:
		return "unsupported_container"
	default:
		return "unknown"
	}
}

// Result reports a non-fatal embedding outcome. On failure Err wraps one of
// the sentinel errors and the returned bytes equal the input.
type Result struct {
	Status Status
	Err    error
}

// OK reports whether the metadata was written.
func (r Result) OK() bool {
	return r.Status == StatusEmbedded
}

func failed(status Status, sentinel error, reason string, size int) Result {
	return Result{
		Status: status,
		Err: errors.New(fmt.Errorf("%w: %s", sentinel, reason)).
			Component("exif").
			Category(errors.CategoryEmbedding).
			Context("reason", reason).
			Context("input_bytes", size).
			Build(),
	}
}

// Embed writes meta into photo and returns a new buffer. photo is never
// modified. Embedding the same metadata into its own output yields
// identical bytes. When the input is not a usable JPEG the original bytes
// are returned (as a copy) together with a failed Result.
func Embed(photo []byte, meta Metadata) ([]byte, Result) {
	original := func() []byte {
		return append([]byte(nil), photo...)
	}

	if !isJPEG(photo) {
		return original(), failed(StatusUnsupportedContainer, ErrUnsupportedContainer, "missing JPEG start of image marker", len(photo))
	}

	segments, scan, err := splitSegments(photo)
	if err != nil {
		return original(), failed(StatusEmbeddingFailed, ErrEmbeddingFailed, err.Error(), len(photo))
	}

	if meta.GPS != nil {
		if err := meta.GPS.Validate(); err != nil {
			return original(), failed(StatusEmbeddingFailed, ErrEmbeddingFailed, err.Error(), len(photo))
		}
	}

	block, err := buildTIFF(meta)
	if err != nil {
		return original(), failed(StatusEmbeddingFailed, ErrEmbeddingFailed, err.Error(), len(photo))
	}

	app1, err := encodeSegment(markerAPP1, append([]byte(exifHeader), block...))
	if err != nil {
		return original(), failed(StatusEmbeddingFailed, ErrEmbeddingFailed, err.Error(), len(photo))
	}

	return assemble(segments, scan, app1, len(photo)), Result{Status: StatusEmbedded}
}

// Read extracts the survey metadata from photo.
func Read(photo []byte) (*Metadata, error) {
	if !isJPEG(photo) {
		return nil, errors.New(ErrUnsupportedContainer).
			Component("exif").
			Category(errors.CategoryFileParsing).
			Build()
	}

	segments, _, err := splitSegments(photo)
	if err != nil {
		return nil, errors.New(err).
			Component("exif").
			Category(errors.CategoryFileParsing).
			Build()
	}

	for _, seg := range segments {
		if isExifSegment(seg) {
			meta, err := parseTIFF(seg[4+len(exifHeader):])
			if err != nil {
				return nil, errors.New(err).
					Component("exif").
					Category(errors.CategoryFileParsing).
					Build()
			}
			return meta, nil
		}
	}

	return nil, errors.New(ErrNoMetadata).
		Component("exif").
		Category(errors.CategoryNotFound).
		Build()
}
