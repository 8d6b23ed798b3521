// Package prefetch implements the image warm-up command: it resolves a
// page's image URLs through the cache and reports what was decoded.
package prefetch

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kvirtanen/galleria/internal/backend"
	"github.com/kvirtanen/galleria/internal/conf"
	"github.com/kvirtanen/galleria/internal/httpclient"
	"github.com/kvirtanen/galleria/internal/imagecache"
	"github.com/kvirtanen/galleria/internal/logging"
)

// Command creates the 'prefetch' command.
func Command(settings *conf.Settings) *cobra.Command {
	var limit int
	var owner string
	var thumbnails bool

	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Warm the image cache for the newest page of records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				limit = settings.Backend.PageSize
			}
			if owner == "" {
				owner = settings.Backend.Owner
			}

			httpCfg := httpclient.DefaultConfig()
			httpCfg.DefaultTimeout = settings.Backend.Timeout
			httpc := httpclient.New(&httpCfg)

			backendLogger, closeBackendLog := logging.ServiceLogger("backend")
			defer func() { _ = closeBackendLog() }()

			client, err := backend.NewClient(backend.Config{
				BaseURL:           settings.Backend.URL,
				APIKey:            settings.Backend.APIKey,
				Timeout:           settings.Backend.Timeout,
				RequestsPerSecond: settings.Backend.RequestsPerSecond,
			}, httpc, backendLogger, nil)
			if err != nil {
				return err
			}
			defer client.Close()

			cacheLogger, closeCacheLog := logging.ServiceLogger("imagecache")
			defer func() { _ = closeCacheLog() }()

			cache := imagecache.New(imagecache.Config{
				TTL:      settings.ImageCache.TTL,
				MaxBytes: settings.ImageCache.MaxBytes,
			}, httpc, cacheLogger, nil)

			records, err := client.FetchPage(cmd.Context(), backend.PageQuery{
				Offset: 0,
				Limit:  limit,
				Owner:  owner,
			})
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}

			resolved := 0
			for i := range records {
				img, err := cache.Resolve(cmd.Context(), records[i].ImageURL)
				if err != nil {
					fmt.Fprintf(os.Stderr, "record %d: %v\n", records[i].ID, err)
					continue
				}
				resolved++
				fmt.Printf("record %d: %s %dx%d (%d bytes)\n",
					records[i].ID, img.Format, img.Width, img.Height, len(img.Data))

				if thumbnails {
					thumb, err := cache.Thumbnail(cmd.Context(), records[i].ImageURL, uint(settings.ImageCache.ThumbnailSize))
					if err != nil {
						fmt.Fprintf(os.Stderr, "record %d thumbnail: %v\n", records[i].ID, err)
						continue
					}
					bounds := thumb.Bounds()
					fmt.Printf("record %d: thumbnail %dx%d\n", records[i].ID, bounds.Dx(), bounds.Dy())
				}
			}

			fmt.Printf("resolved %d/%d images, %d cache entries\n", resolved, len(records), cache.ItemCount())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Rows to fetch (default from config)")
	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner id")
	cmd.Flags().BoolVar(&thumbnails, "thumbnails", false, "Also generate thumbnails")

	return cmd
}
