package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"artgrab/internal/logging"
	"artgrab/internal/processor"
	"artgrab/internal/report"
	"artgrab/internal/tasks"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var mediaTypesFlag string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Fill empty art slots unattended with the top-ranked candidate",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			mediaTypes, err := resolveMediaTypes(mediaTypesFlag, nil)
			if err != nil {
				return err
			}

			proc := processor.New(rt.cfg, rt.store, rt.lib, rt.fetcher, rt.logger)
			registry := tasks.NewRegistry(rt.store, rt.logger, 0)

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			var summary *processor.Summary
			runErr := registry.Run(runCtx, "process", "", func(opCtx context.Context) error {
				var err error
				summary, err = proc.Run(opCtx, processor.Options{MediaTypes: mediaTypes})
				return err
			})

			out := cmd.OutOrStdout()
			if summary != nil {
				fmt.Fprintf(out, "Processed %d entries: %d applied, %d no options, %d policy blocked, %d stale, %d errors\n",
					summary.Entries, summary.Applied, summary.NoOptions,
					summary.PolicyBlocked, summary.Stale, summary.Errors)
				if len(summary.Items) > 0 {
					fmt.Fprintln(out, renderProcessItems(summary.Items))
				}
				if runErr == nil && summary.Entries > 0 {
					skipped := summary.NoOptions + summary.PolicyBlocked
					if err := rt.notify.NotifyProcessingCompleted(cmd.Context(), summary.Applied, skipped); err != nil {
						rt.logger.Warn("process notification failed", logging.Error(err))
					}
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&mediaTypesFlag, "media-types", "", "Comma-separated media types to process (default all)")
	return cmd
}

func renderProcessItems(items []processor.ItemResult) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		detail := item.Detail
		if item.Outcome == processor.OutcomeAutoApplied {
			detail = item.URL
		}
		rows = append(rows, []string{
			item.Title,
			string(item.ArtType),
			string(item.Outcome),
			detail,
		})
	}
	return report.Table([]string{"Title", "Art", "Outcome", "Detail"}, rows)
}
