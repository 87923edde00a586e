package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"artgrab/internal/logging"
	"artgrab/internal/report"
	"artgrab/internal/reviewer"
	"artgrab/internal/tasks"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var mediaTypesFlag string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review queued artwork interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdin.Fd()) {
				return fmt.Errorf("review needs a terminal; use `artgrab process` for unattended runs")
			}

			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			mediaTypes, err := resolveMediaTypes(mediaTypesFlag, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			chooser := newTerminalChooser(cmd.InOrStdin(), out)
			rev := reviewer.New(rt.cfg, rt.store, rt.lib, rt.fetcher, chooser, rt.logger)
			registry := tasks.NewRegistry(rt.store, rt.logger, 0)

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			var summary *reviewer.Summary
			runErr := registry.Run(runCtx, "review", "", func(opCtx context.Context) error {
				var err error
				summary, err = rev.Run(opCtx, reviewer.Options{MediaTypes: mediaTypes})
				return err
			})

			if summary != nil {
				fmt.Fprintf(out, "\nReviewed %d entries: %d applied, %d skipped, %d stale, %d errors\n",
					summary.Entries, summary.Applied, summary.Skipped, summary.Stale, summary.Errors)
				for _, session := range summary.Sessions {
					fmt.Fprintln(out, report.Session(session))
				}
				if runErr == nil && summary.Entries > 0 {
					if err := rt.notify.NotifyReviewCompleted(cmd.Context(), summary.Applied, summary.Skipped); err != nil {
						rt.logger.Warn("review notification failed", logging.Error(err))
					}
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&mediaTypesFlag, "media-types", "", "Comma-separated media types to review (default all)")
	return cmd
}
