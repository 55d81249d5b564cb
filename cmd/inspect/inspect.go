// Package inspect implements the inspect command which prints the survey
// metadata embedded in a photo.
package inspect

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/treesurvey/internal/exif"
	"github.com/tphakala/treesurvey/internal/survey"
)

// Command creates the inspect command.
func Command() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect [photo.jpg]",
		Short: "Show the survey metadata stored in a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photo, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading photo: %w", err)
			}
			meta, err := exif.Read(photo)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(meta)
			}

			coords := survey.NotAvailable
			if meta.GPS != nil {
				coords = meta.GPS.String()
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "Species\t%s\n", meta.Species)
			_, _ = fmt.Fprintf(w, "Height\t%d cm\n", meta.HeightCm)
			_, _ = fmt.Fprintf(w, "Health\t%s\n", meta.Health)
			_, _ = fmt.Fprintf(w, "Supervisor\t%s\n", meta.Supervisor)
			_, _ = fmt.Fprintf(w, "Vendor\t%s\n", meta.Vendor)
			_, _ = fmt.Fprintf(w, "Team\t%s\n", meta.Team)
			_, _ = fmt.Fprintf(w, "Captured\t%s\n", meta.CapturedAt.Format("2006-01-02 15:04:05"))
			_, _ = fmt.Fprintf(w, "Coordinates\t%s\n", coords)
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the metadata as JSON")

	return cmd
}
