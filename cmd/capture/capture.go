// Package capture implements the capture command which records one tree
// from a photo on disk.
package capture

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/treesurvey/internal/app"
	"github.com/tphakala/treesurvey/internal/buildinfo"
	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/survey"
)

type options struct {
	height     int
	year       int
	species    string
	health     string
	location   string
	job        string
	supervisor string
	vendor     string
	team       string
	lat        float64
	lon        float64
	accuracy   float64
	noUpload   bool
}

// Command creates the capture command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "capture [photo.jpg]",
		Short: "Record a tree from a photo",
		Long: `Record one surveyed tree. The survey fields are written into the photo's
Exif metadata, the entry is stored and, when configured, uploaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, build, opts, args[0])
		},
	}

	setupFlags(cmd, settings, opts)

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *options) {
	defaults := settings.Survey
	cmd.Flags().IntVar(&opts.height, "height", defaults.DefaultHeight, "Tree height in centimetres")
	cmd.Flags().IntVar(&opts.year, "year", time.Now().Year(), "Planting year")
	cmd.Flags().StringVarP(&opts.species, "species", "s", defaults.FirstSpecies(), "Tree species")
	cmd.Flags().StringVar(&opts.health, "health", survey.Healthy.String(), "Health: healthy (Sehat), struggling (Merana) or dead (Mati)")
	cmd.Flags().StringVar(&opts.location, "location", defaults.DefaultLocation, "Planting location")
	cmd.Flags().StringVar(&opts.job, "job", defaults.DefaultJob, "Job name")
	cmd.Flags().StringVar(&opts.supervisor, "supervisor", defaults.DefaultSupervisor, "Supervisor")
	cmd.Flags().StringVar(&opts.vendor, "vendor", defaults.DefaultVendor, "Vendor")
	cmd.Flags().StringVar(&opts.team, "team", defaults.DefaultTeam, "Planting team")
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "Longitude in decimal degrees")
	cmd.Flags().Float64Var(&opts.accuracy, "accuracy", 0, "GPS accuracy in metres")
	cmd.Flags().BoolVar(&opts.noUpload, "no-upload", false, "Skip the configured upload channels")

	cmd.MarkFlagsRequiredTogether("lat", "lon")
}

func run(cmd *cobra.Command, settings *conf.Settings, build *buildinfo.Context, opts *options, path string) error {
	photo, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading photo: %w", err)
	}

	health, err := survey.ParseHealth(opts.health)
	if err != nil {
		return err
	}

	form := survey.Form{
		HeightCm:     opts.height,
		PlantingYear: opts.year,
		Species:      valueOr(opts.species, settings.Survey.FirstSpecies()),
		Health:       health,
		Location:     opts.location,
		JobName:      opts.job,
		Supervisor:   opts.supervisor,
		Vendor:       opts.vendor,
		Team:         opts.team,
	}

	var gps *survey.GeoFix
	if cmd.Flags().Changed("lat") {
		gps = &survey.GeoFix{Latitude: opts.lat, Longitude: opts.lon, AccuracyMeters: opts.accuracy}
	}

	ctx := cmd.Context()
	a, err := app.Open(ctx, settings, build, app.Options{Upload: !opts.noUpload})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.Processor.Capture(ctx, form, gps, photo)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Captured %s (%s, %s, %d cm)\n",
		result.Entry.ID, result.Entry.Species, result.Entry.Health.Label(), result.Entry.HeightCm)
	_, _ = fmt.Fprintf(out, "Coordinates: %s\n", result.Entry.Coordinates())
	_, _ = fmt.Fprintf(out, "Metadata: %s\n", result.Embedding.Status)
	if result.Embedding.Err != nil {
		_, _ = fmt.Fprintf(out, "  %v\n", result.Embedding.Err)
	}
	if result.UploadErr != nil {
		_, _ = fmt.Fprintf(out, "Upload failed: %v\n", result.UploadErr)
	}
	_, _ = fmt.Fprintf(out, "Collection size: %d\n", a.Processor.Collection().Len())

	return nil
}

func valueOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
