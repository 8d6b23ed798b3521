// Package browse implements the gallery walk command: it drives the state
// controller through the whole record set the way the viewer's slider does.
package browse

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvirtanen/galleria/internal/backend"
	"github.com/kvirtanen/galleria/internal/conf"
	"github.com/kvirtanen/galleria/internal/gallery"
	"github.com/kvirtanen/galleria/internal/httpclient"
	"github.com/kvirtanen/galleria/internal/logging"
	"github.com/kvirtanen/galleria/internal/observability"
	"github.com/kvirtanen/galleria/internal/observability/metrics"
)

// Command creates the 'browse' command.
func Command(settings *conf.Settings) *cobra.Command {
	var owner string
	var maxRecords int
	var telemetry bool
	var listen string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Walk the gallery newest-first, prefetching pages as needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				owner = settings.Backend.Owner
			}
			if telemetry {
				settings.Telemetry.Enabled = true
			}
			if listen != "" {
				settings.Telemetry.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var m *metrics.Metrics
			if settings.Telemetry.Enabled {
				var err error
				m, err = metrics.NewMetrics(nil)
				if err != nil {
					return fmt.Errorf("failed to set up metrics: %w", err)
				}
				endpoint := observability.StartEndpoint(settings.Telemetry.Listen, m.Registry(), logging.Structured())
				defer endpoint.Stop()
			}

			httpCfg := httpclient.DefaultConfig()
			httpCfg.DefaultTimeout = settings.Backend.Timeout

			var backendMetrics *metrics.BackendMetrics
			var galleryMetrics *metrics.GalleryMetrics
			if m != nil {
				backendMetrics = m.Backend
				galleryMetrics = m.Gallery
			}

			backendLogger, closeBackendLog := logging.ServiceLogger("backend")
			defer func() { _ = closeBackendLog() }()

			client, err := backend.NewClient(backend.Config{
				BaseURL:           settings.Backend.URL,
				APIKey:            settings.Backend.APIKey,
				Timeout:           settings.Backend.Timeout,
				RequestsPerSecond: settings.Backend.RequestsPerSecond,
			}, httpclient.New(&httpCfg), backendLogger, backendMetrics)
			if err != nil {
				return err
			}
			defer client.Close()

			galleryLogger, closeGalleryLog := logging.ServiceLogger("gallery")
			defer func() { _ = closeGalleryLog() }()

			controller := gallery.NewController(client, gallery.Config{
				PageSize:          settings.Gallery.PageSize,
				PrefetchThreshold: settings.Gallery.PrefetchThreshold,
				Owner:             owner,
			}, galleryLogger, galleryMetrics)

			if err := controller.Reload(ctx); err != nil {
				return fmt.Errorf("reload failed (retry with the same command): %w", err)
			}

			state := controller.Snapshot()
			if len(state.Records) == 0 {
				fmt.Println("gallery is empty")
				return nil
			}

			for i := 0; ; i++ {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if maxRecords > 0 && i >= maxRecords {
					break
				}

				// Prefetch before the walk reaches the end of what is loaded
				if err := controller.EnsureLoaded(ctx, i); err != nil {
					// Loaded records stay intact, report and keep walking
					logging.HumanReadable().Warn("page load failed", "error", err)
				}

				state = controller.Snapshot()
				if i > len(state.Records)-1 {
					break
				}

				controller.Select(i)
				record := state.Records[i]
				fmt.Printf("%4d/%d  %s  %s\n", i+1, len(state.Records), record.Title(), record.ImageURL)

				if state.Exhausted && i == len(state.Records)-1 {
					break
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner id")
	cmd.Flags().IntVar(&maxRecords, "max", 0, "Stop after this many records (0 = all)")
	cmd.Flags().BoolVar(&telemetry, "telemetry", false, "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address and port of telemetry endpoint")

	return cmd
}
