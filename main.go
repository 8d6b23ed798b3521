package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kvirtanen/galleria/cmd/browse"
	"github.com/kvirtanen/galleria/cmd/fetch"
	"github.com/kvirtanen/galleria/cmd/login"
	"github.com/kvirtanen/galleria/cmd/prefetch"
	"github.com/kvirtanen/galleria/internal/conf"
	"github.com/kvirtanen/galleria/internal/logging"
)

func main() {
	settings := &conf.Settings{}
	var configFile string
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "galleria",
		Short: "Photo gallery client for PostgREST-style image backends",
		Long: "galleria fetches image metadata pages from a hosted image table,\n" +
			"maintains an in-memory gallery with a selection cursor and resolves\n" +
			"image URLs through a local cache.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := conf.Load(configFile)
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			if debug {
				loaded.Debug = true
			}
			*settings = *loaded

			level := slog.LevelInfo
			if settings.Debug {
				level = slog.LevelDebug
			}
			logging.Init(settings.Main.Log, level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")

	rootCmd.AddCommand(
		fetch.Command(settings),
		browse.Command(settings),
		login.Command(settings),
		prefetch.Command(settings),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
