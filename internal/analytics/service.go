package analytics

import (
	"slices"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/treesurvey/internal/survey"
)

// DefaultPageSize matches the entry list in the field app.
const DefaultPageSize = 5

// Page is one page of the newest-first entry list.
type Page struct {
	Items      []*survey.Entry `json:"items"`
	Page       int             `json:"page"`
	Size       int             `json:"size"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

// Newest sorts a copy of entries by capture time, newest first. Entries
// captured in the same instant keep reverse insertion order.
func Newest(entries []*survey.Entry) []*survey.Entry {
	sorted := slices.Clone(entries)
	slices.Reverse(sorted)
	slices.SortStableFunc(sorted, func(a, b *survey.Entry) int {
		return b.CapturedAt.Compare(a.CapturedAt)
	})
	return sorted
}

// Paginate returns page (1-based) of the newest-first list. Pages past the
// end are empty; page and size below 1 fall back to 1 and DefaultPageSize.
func Paginate(entries []*survey.Entry, page, size int) Page {
	return pageOf(Newest(entries), page, size)
}

// pageOf slices an already sorted list.
func pageOf(sorted []*survey.Entry, page, size int) Page {
	if size < 1 {
		size = DefaultPageSize
	}
	page = max(page, 1)

	total := len(sorted)
	p := Page{
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
		Items:      []*survey.Entry{},
	}

	start := (page - 1) * size
	if start >= total {
		return p
	}
	end := min(start+size, total)
	p.Items = slices.Clone(sorted[start:end])
	return p
}

// VersionedSource is a collection that can report its mutation version.
type VersionedSource interface {
	SnapshotVersion() ([]*survey.Entry, uint64)
}

// Service caches summaries and sorted lists per collection version so
// repeated dashboard polls do not recompute pairwise distances.
type Service struct {
	source VersionedSource
	cache  *cache.Cache
}

// NewService returns a Service whose cached values expire after ttl.
func NewService(source VersionedSource, ttl time.Duration) *Service {
	return &Service{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func versionKey(prefix string, version uint64) string {
	return prefix + ":" + strconv.FormatUint(version, 10)
}

// Summary returns the summary of the current collection.
func (s *Service) Summary() Summary {
	entries, version := s.source.SnapshotVersion()
	key := versionKey("summary", version)

	if cached, ok := s.cache.Get(key); ok {
		if summary, ok := cached.(Summary); ok {
			return summary
		}
	}

	summary := Summarize(entries)
	summary.Version = version
	s.cache.SetDefault(key, summary)
	return summary
}

// Page returns one page of the newest-first entry list.
func (s *Service) Page(page, size int) Page {
	entries, version := s.source.SnapshotVersion()
	key := versionKey("newest", version)

	var sorted []*survey.Entry
	if cached, ok := s.cache.Get(key); ok {
		sorted, _ = cached.([]*survey.Entry)
	}
	if sorted == nil {
		sorted = Newest(entries)
		s.cache.SetDefault(key, sorted)
	}

	return pageOf(sorted, page, size)
}

// Invalidate drops every cached value.
func (s *Service) Invalidate() {
	s.cache.Flush()
}
