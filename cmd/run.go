package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, geocode, render and record the click map",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		params := runParamsFromConfig()
		applyRunFlags(cmd.Flags(), &params)
		if err := requireInput(params.InputPath); err != nil {
			return err
		}

		mode := "run"
		if params.InputPath != "" {
			mode = "render"
		}
		env, err := initPipeline(ctx, pipelineOptions{
			mode:        mode,
			withWindsor: params.InputPath == "",
			withCapture: !params.SkipGIF,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Pipeline.Run(ctx, params)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("click map complete",
			zap.String("run_id", out.RunID),
			zap.String("html", out.Result.HTMLPath),
			zap.String("gif", out.Result.GIFPath),
			zap.Strings("unresolved", out.Result.Unresolved),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Result)
	},
}

// addRunFlags registers the flags shared by run and render.
func addRunFlags(fs *pflag.FlagSet) {
	fs.String("input", "", "local dataset (.csv, .tsv, .xlsx, .json) instead of the Windsor API")
	fs.String("caption", "", "legend caption (default from config)")
	fs.Bool("normalize", true, "z-score normalize values before sizing markers")
	fs.String("html", "", "output HTML path (default from config)")
	fs.String("connector", "", "Windsor connector (default from config)")
	fs.String("date-from", "", "first day to fetch, YYYY-MM-DD")
	fs.String("date-to", "", "last day to fetch, YYYY-MM-DD")
}

// applyRunFlags overrides config-derived params with explicitly set flags.
func applyRunFlags(fs *pflag.FlagSet, p *model.RunParams) {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	str("input", &p.InputPath)
	str("caption", &p.Caption)
	str("html", &p.HTMLPath)
	str("connector", &p.Connector)
	str("date-from", &p.DateFrom)
	str("date-to", &p.DateTo)
	if fs.Lookup("gif") != nil {
		str("gif", &p.GIFPath)
	}
	if fs.Changed("normalize") {
		p.Normalize, _ = fs.GetBool("normalize")
	}
	if fs.Lookup("no-gif") != nil && fs.Changed("no-gif") {
		p.SkipGIF, _ = fs.GetBool("no-gif")
	}
}

func init() {
	addRunFlags(runCmd.Flags())
	runCmd.Flags().String("gif", "", "output GIF path (default from config)")
	runCmd.Flags().Bool("no-gif", false, "stop after rendering the HTML map")
	runCmd.Flags().BoolVar(&installBrowsers, "install-browsers", false, "download playwright browsers before capturing")
	rootCmd.AddCommand(runCmd)
}
