// Package serve implements the serve command which runs the HTTP API used
// by the field devices.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/treesurvey/internal/api"
	"github.com/tphakala/treesurvey/internal/app"
	"github.com/tphakala/treesurvey/internal/buildinfo"
	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/logger"
)

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the survey HTTP API",
		Long:  `Serve the capture, listing, analytics and export endpoints until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, build)
		},
	}

	cmd.Flags().StringVarP(&settings.WebServer.Port, "port", "p", settings.WebServer.Port, "Port to listen on")
	cmd.Flags().BoolVar(&settings.Metrics.Enabled, "metrics", settings.Metrics.Enabled, "Expose Prometheus metrics on /metrics")

	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, build *buildinfo.Context) error {
	ctx := cmd.Context()
	log := logger.Global().Module("serve")

	a, err := app.Open(ctx, settings, build, app.Options{Upload: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("error closing datastore", logger.Error(err))
		}
	}()

	exporter, err := a.ExportManager(ctx, app.ExportOptions{})
	if err != nil {
		return err
	}

	opts := []api.ServerOption{
		api.WithAnalytics(a.Analytics),
		api.WithExporter(exporter),
	}
	if a.Metrics != nil {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}

	server, err := api.New(settings, a.Processor, opts...)
	if err != nil {
		return err
	}

	log.Info("serving survey",
		logger.String("instance", build.GetInstanceID()),
		logger.String("version", build.GetVersion()),
		logger.Int("entries", a.Processor.Collection().Len()))

	return server.Run(ctx)
}
