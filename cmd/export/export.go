// Package export implements the export command which writes CSV, KMZ,
// photo ZIP and XLSX artifacts of the collection to disk.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/treesurvey/internal/app"
	"github.com/tphakala/treesurvey/internal/buildinfo"
	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/export"
	"github.com/tphakala/treesurvey/internal/publish"
)

type options struct {
	formats []string
	outDir  string
	publish bool
	notify  bool
}

// Command creates the export command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the collection",
		Long: `Export every stored entry. All formats are built from the same snapshot.

Examples:
  treesurvey export
  treesurvey export --format csv --format kmz --out /media/usb
  treesurvey export --format zip --publish --notify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, build, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.formats, "format", "f", []string{"all"}, "Formats: csv, kmz, zip, xlsx or all")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", settings.Export.OutputDir, "Output directory")
	cmd.Flags().BoolVar(&opts.publish, "publish", settings.Publish.Enabled, "Publish artifacts to the configured targets")
	cmd.Flags().BoolVar(&opts.notify, "notify", settings.Notification.Enabled, "Send a notification when done")

	return cmd
}

// parseFormats resolves the format flag, expanding "all" and dropping
// duplicates while keeping the first-seen order.
func parseFormats(values []string) ([]export.Format, error) {
	var formats []export.Format
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), "all") {
			for _, f := range export.AllFormats {
				if !slices.Contains(formats, f) {
					formats = append(formats, f)
				}
			}
			continue
		}
		f, err := export.ParseFormat(v)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(formats, f) {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no export format selected")
	}
	return formats, nil
}

func run(cmd *cobra.Command, settings *conf.Settings, build *buildinfo.Context, opts *options) error {
	formats, err := parseFormats(opts.formats)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.Open(ctx, settings, build, app.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	manager, err := a.ExportManager(ctx, app.ExportOptions{Publish: opts.publish, Notify: opts.notify})
	if err != nil {
		return err
	}

	job, err := manager.Run(ctx, formats, export.RunOptions{Publish: opts.publish, Notify: opts.notify})
	out := cmd.OutOrStdout()
	if job != nil {
		printFailures(out, job)
	}
	if err != nil {
		return err
	}

	dest, err := publish.NewLocalTarget(settings.ResolvePath(opts.outDir))
	if err != nil {
		return err
	}
	for _, artifact := range job.Artifacts {
		if err := dest.Store(ctx, artifact.FileName, artifact.Data); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Wrote %s (%d entries)\n", filepath.Join(dest.Dir(), artifact.FileName), artifact.Count)
		for _, msg := range artifact.WarningMessages() {
			_, _ = fmt.Fprintf(out, "  skipped: %s\n", msg)
		}
	}
	if job.PublishErr != nil {
		_, _ = fmt.Fprintf(out, "Publishing failed: %v\n", job.PublishErr)
	}

	return nil
}

func printFailures(out io.Writer, job *export.Job) {
	for _, f := range export.AllFormats {
		if err, ok := job.Failures[f]; ok {
			_, _ = fmt.Fprintf(out, "%s export failed: %v\n", f, err)
		}
	}
}
