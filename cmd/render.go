package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the HTML map without recording a GIF",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		params := runParamsFromConfig()
		applyRunFlags(cmd.Flags(), &params)
		params.SkipGIF = true
		params.GIFPath = ""
		if err := requireInput(params.InputPath); err != nil {
			return err
		}

		mode := "render"
		if params.InputPath == "" {
			mode = "fetch"
		}
		env, err := initPipeline(ctx, pipelineOptions{
			mode:        mode,
			withWindsor: params.InputPath == "",
		})
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Pipeline.Run(ctx, params)
		if err != nil {
			return eris.Wrap(err, "render")
		}

		fmt.Fprintln(os.Stdout, out.Result.HTMLPath)
		for _, label := range out.Result.Unresolved {
			fmt.Fprintf(os.Stderr, "unresolved: %s\n", label)
		}
		return nil
	},
}

func init() {
	addRunFlags(renderCmd.Flags())
	rootCmd.AddCommand(renderCmd)
}
