// Package fetch implements the one-shot page fetch command.
package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kvirtanen/galleria/internal/backend"
	"github.com/kvirtanen/galleria/internal/conf"
	"github.com/kvirtanen/galleria/internal/httpclient"
	"github.com/kvirtanen/galleria/internal/logging"
)

// Command creates the 'fetch' command: one bounded page of records.
func Command(settings *conf.Settings) *cobra.Command {
	var offset int
	var limit int
	var owner string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one page of image records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				limit = settings.Backend.PageSize
			}
			if owner == "" {
				owner = settings.Backend.Owner
			}

			client, closeLog, err := newBackendClient(settings)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			defer client.Close()

			records, err := client.FetchPage(cmd.Context(), backend.PageQuery{
				Offset: offset,
				Limit:  limit,
				Owner:  owner,
			})
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tOWNER\tURL")
			for i := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
					records[i].ID, records[i].Title(), records[i].OwnerID, records[i].ImageURL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Row offset to start from")
	cmd.Flags().IntVar(&limit, "limit", 0, "Rows to fetch (default from config)")
	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output records as JSON")

	return cmd
}

// newBackendClient constructs a backend client from settings with its
// service logger. The returned close function releases the file log, if any.
func newBackendClient(settings *conf.Settings) (*backend.Client, func() error, error) {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.DefaultTimeout = settings.Backend.Timeout

	logger, closeLog := logging.ServiceLogger("backend")
	client, err := backend.NewClient(backend.Config{
		BaseURL:           settings.Backend.URL,
		APIKey:            settings.Backend.APIKey,
		Timeout:           settings.Backend.Timeout,
		RequestsPerSecond: settings.Backend.RequestsPerSecond,
	}, httpclient.New(&httpCfg), logger, nil)
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}
	return client, closeLog, nil
}
