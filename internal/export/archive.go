package export

import (
	"archive/zip"
	"bytes"
	"strconv"
	"time"

	"github.com/tphakala/treesurvey/internal/survey"
)

func isJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// ToImageArchive stores each entry's photo as foto_<id>.jpg. Photos are
// already compressed so members are stored without deflate. Entries whose
// photo is missing or not a JPEG are skipped with a warning, so an archive
// may hold no members at all. Only an empty collection is an error.
func ToImageArchive(entries []*survey.Entry) (*Artifact, error) {
	if len(entries) == 0 {
		return nil, failure(FormatZIP, nil, "no entries to archive")
	}

	var (
		buf      bytes.Buffer
		warnings []error
		count    int
	)
	zw := zip.NewWriter(&buf)
	seen := make(map[string]int, len(entries))

	for _, e := range entries {
		switch {
		case len(e.Photo) == 0:
			warnings = append(warnings, partial(e.ID, "photo missing"))
			continue
		case !isJPEG(e.Photo):
			warnings = append(warnings, partial(e.ID, "photo is not a JPEG"))
			continue
		}

		name := e.PhotoFileName()
		// same-second captures share an id; keep both photos
		if n := seen[name]; n > 0 {
			name = "foto_" + e.ID + "_" + strconv.Itoa(n+1) + ".jpg"
		}
		seen[e.PhotoFileName()]++

		if err := writeMember(zw, name, zip.Store, e.Photo); err != nil {
			return nil, failure(FormatZIP, err, "write "+name)
		}
		count++
	}

	if err := zw.Close(); err != nil {
		return nil, failure(FormatZIP, err, "close archive")
	}

	artifact := newArtifact(FormatZIP, "", time.Now(), buf.Bytes(), count)
	artifact.Warnings = warnings
	return artifact, nil
}
