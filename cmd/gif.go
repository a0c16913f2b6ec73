package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var gifCmd = &cobra.Command{
	Use:   "gif <map.html> [out.gif]",
	Short: "Record an existing HTML map as an animated GIF",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("gif"); err != nil {
			return err
		}
		if err := requireInput(args[0]); err != nil {
			return err
		}

		out := cfg.GIF.Path
		if len(args) == 2 {
			out = args[1]
		}

		conv, err := newConverter()
		if err != nil {
			return err
		}

		res, err := conv.Convert(ctx, args[0], out)
		if err != nil {
			return eris.Wrap(err, "gif")
		}

		zap.L().Info("gif written",
			zap.String("path", out),
			zap.Int("frames", res.Frames),
			zap.Duration("elapsed", res.Elapsed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.GIF)
	},
}

func init() {
	gifCmd.Flags().BoolVar(&installBrowsers, "install-browsers", false, "download playwright browsers before capturing")
	rootCmd.AddCommand(gifCmd)
}
