// Package analytics implements the analytics command.
package analytics

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/treesurvey/internal/analytics"
	"github.com/tphakala/treesurvey/internal/app"
	"github.com/tphakala/treesurvey/internal/buildinfo"
	"github.com/tphakala/treesurvey/internal/conf"
)

// Command creates the analytics command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarize the collected entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), settings, build, app.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			summary := a.Analytics.Summary()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")

	return cmd
}

func printSummary(out io.Writer, s analytics.Summary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Entries\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "With GPS\t%d\n", s.WithGPS)
	_, _ = fmt.Fprintf(w, "Average height (cm)\t%s\n", s.AverageHeightCm)
	_, _ = fmt.Fprintf(w, "Area (ha)\t%s\n", s.AreaHectares)
	_, _ = fmt.Fprintf(w, "Density (trees/ha)\t%s\n", s.DensityPerHa)
	_, _ = fmt.Fprintf(w, "Average distance (m)\t%s\n", s.AverageDistance)

	_, _ = fmt.Fprintln(w, "\nHEALTH\tCOUNT")
	for _, h := range s.Health {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", h.Health.Label(), h.Count)
	}

	if len(s.Species) > 0 {
		_, _ = fmt.Fprintln(w, "\nSPECIES\tCOUNT")
		for _, sp := range s.Species {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", sp.Species, sp.Count)
		}
	}

	return w.Flush()
}
