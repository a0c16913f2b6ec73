package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/fetcher"
	"github.com/sells-group/clickmap/internal/geo"
	"github.com/sells-group/clickmap/internal/pipeline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <out.tsv>",
	Short: "Download the click dataset to a TSV file",
	Long:  "Queries the Windsor.ai connectors API and writes the rows as tab-separated values. With --geocode, latitude and longitude columns are filled in.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		params := runParamsFromConfig()
		applyRunFlags(cmd.Flags(), &params)

		p := pipeline.New(pipeline.Deps{Windsor: newWindsorClient()})
		ds, err := p.Fetch(ctx, params)
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		if doGeocode, _ := cmd.Flags().GetBool("geocode"); doGeocode {
			st, stErr := openMigratedStore(ctx)
			if stErr != nil {
				return stErr
			}
			defer st.Close() //nolint:errcheck

			rc := initRedisCache(ctx)
			if rc != nil {
				defer rc.Close() //nolint:errcheck
			}
			geocoder, gErr := newGeocoder(geocodeCache(st, rc))
			if gErr != nil {
				return gErr
			}

			resolved, report, rErr := geo.NewResolver(geocoder).Resolve(ctx, ds, pipeline.SchemaFor(params).LocationColumn)
			if rErr != nil {
				return eris.Wrap(rErr, "geocode")
			}
			ds = resolved
			for _, label := range report.Unresolved() {
				fmt.Fprintf(os.Stderr, "unresolved: %s\n", label)
			}
		}

		if err := fetcher.WriteDataset(args[0], ds); err != nil {
			return err
		}
		zap.L().Info("dataset written", zap.String("path", args[0]), zap.Int("rows", ds.Len()))
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("connector", "", "Windsor connector (default from config)")
	fetchCmd.Flags().String("date-from", "", "first day to fetch, YYYY-MM-DD")
	fetchCmd.Flags().String("date-to", "", "last day to fetch, YYYY-MM-DD")
	fetchCmd.Flags().Bool("geocode", false, "add latitude and longitude columns")
	rootCmd.AddCommand(fetchCmd)
}
