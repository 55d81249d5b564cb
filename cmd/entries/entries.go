// Package entries implements listing and clearing stored survey entries.
package entries

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/treesurvey/internal/app"
	"github.com/tphakala/treesurvey/internal/buildinfo"
	"github.com/tphakala/treesurvey/internal/conf"
)

// Command creates the entries command group.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List or clear stored entries",
	}

	cmd.AddCommand(listCommand(settings, build), resetCommand(settings, build))

	return cmd
}

func listCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var page, size int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd.Context(), settings, build, app.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			p := a.Analytics.Page(page, size)
			out := cmd.OutOrStdout()
			if p.Total == 0 {
				_, _ = fmt.Fprintln(out, "No entries recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tSPECIES\tHEIGHT\tHEALTH\tCOORDINATES\tPHOTO")
			for _, e := range p.Items {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d cm\t%s\t%s\t%s\n",
					e.ID, e.Species, e.HeightCm, e.Health.Label(), e.Coordinates(), formatSize(len(e.Photo)))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Page %d of %d (%d entries)\n", p.Page, max(p.TotalPages, 1), p.Total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&size, "size", settings.Survey.PageSize, "Entries per page")

	return cmd
}

func resetCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored entry",
		Long:  `Delete every stored entry and its photo. Export first; this cannot be undone.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to delete entries without --yes")
			}

			a, err := app.Open(cmd.Context(), settings, build, app.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n := a.Processor.Collection().Len()
			if err := a.Processor.Reset(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries.\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm deletion")

	return cmd
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
