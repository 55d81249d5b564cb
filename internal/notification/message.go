package notification

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tphakala/treesurvey/internal/export"
)

// ExportMessage renders the title and body announcing job.
func ExportMessage(instance string, job *export.Job) (title, body string) {
	status := "finished"
	switch {
	case len(job.Artifacts) == 0:
		status = "failed"
	case !job.Succeeded() || job.Warnings() > 0 || job.PublishErr != nil:
		status = "finished with problems"
	}
	title = fmt.Sprintf("%s: survey export %s", instance, status)

	var b strings.Builder
	fmt.Fprintf(&b, "%d entries exported at %s\n", job.EntryCount, job.StartedAt.Format("2006-01-02 15:04:05"))
	for _, a := range job.Artifacts {
		fmt.Fprintf(&b, "- %s (%d entries, %s)", a.FileName, a.Count, formatBytes(len(a.Data)))
		if len(a.Warnings) > 0 {
			fmt.Fprintf(&b, ", %d skipped", len(a.Warnings))
		}
		b.WriteByte('\n')
	}

	formats := make([]string, 0, len(job.Failures))
	for f := range job.Failures {
		formats = append(formats, string(f))
	}
	slices.Sort(formats)
	for _, f := range formats {
		fmt.Fprintf(&b, "- %s failed: %v\n", f, job.Failures[export.Format(f)])
	}
	if job.PublishErr != nil {
		fmt.Fprintf(&b, "publish failed: %v\n", job.PublishErr)
	}

	return title, strings.TrimRight(b.String(), "\n")
}

func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
