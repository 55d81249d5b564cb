package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/treesurvey/cmd/analytics"
	"github.com/tphakala/treesurvey/cmd/capture"
	"github.com/tphakala/treesurvey/cmd/entries"
	"github.com/tphakala/treesurvey/cmd/export"
	"github.com/tphakala/treesurvey/cmd/inspect"
	"github.com/tphakala/treesurvey/cmd/serve"
	"github.com/tphakala/treesurvey/internal/buildinfo"
	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/logger"
	"github.com/tphakala/treesurvey/internal/telemetry"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "treesurvey",
		Short:         "Tree planting field survey",
		Version:       build.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		// flag names are static
		panic(err)
	}

	rootCmd.AddCommand(
		capture.Command(settings, build),
		entries.Command(settings, build),
		analytics.Command(settings, build),
		export.Command(settings, build),
		inspect.Command(),
		serve.Command(settings, build),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, build)
	}

	return rootCmd
}

// initialize runs before every subcommand once flags are parsed. It
// validates the merged settings, replaces the fallback console logger and
// enables error telemetry when configured.
func initialize(settings *conf.Settings, build *buildinfo.Context) error {
	if settings.Main.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}

	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}
	if cfg.FileOutput != nil && cfg.FileOutput.Path != "" {
		file := *cfg.FileOutput
		file.Path = settings.ResolvePath(file.Path)
		cfg.FileOutput = &file
	}
	cfg.ModuleOutputs = resolveModuleOutputs(settings, cfg.ModuleOutputs)

	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(central)

	log := logger.Global().Module("main")
	if build != nil && build.InstanceID == "" {
		id, err := buildinfo.LoadInstanceID(settings.Main.DataDir)
		if err != nil {
			log.Warn("cannot persist instance id", logger.Error(err))
		}
		build.InstanceID = id
	}

	if err := telemetry.InitSentry(settings, build.GetVersion()); err != nil {
		log.Warn("error telemetry unavailable", logger.Error(err))
	}
	return nil
}

// resolveModuleOutputs places module log files under the data directory.
// A missing map gets the default access and publish logs.
func resolveModuleOutputs(settings *conf.Settings, outputs map[string]logger.ModuleOutput) map[string]logger.ModuleOutput {
	if outputs == nil {
		outputs = map[string]logger.ModuleOutput{
			"api":     {Enabled: true, FilePath: logger.DefaultAccessLogPath, Level: logger.DefaultLogLevel},
			"publish": {Enabled: true, FilePath: logger.DefaultPublishLogPath, Level: logger.DefaultLogLevel},
		}
	}
	resolved := make(map[string]logger.ModuleOutput, len(outputs))
	for module, out := range outputs {
		out.FilePath = settings.ResolvePath(out.FilePath)
		resolved[module] = out
	}
	return resolved
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Main.DataDir, "datadir", settings.Main.DataDir, "Directory holding the survey database and published files")
	rootCmd.PersistentFlags().StringVar(&settings.Main.Name, "name", settings.Main.Name, "Instance name used in notifications and uploads")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
