package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"artgrab/internal/precache"
	"artgrab/internal/queue"
)

func newPrecacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "precache",
		Short: "Cache baseline textures for queued upgrade candidates",
		Long: "Fetches every baseline texture referenced by pending upgrade work into " +
			"the media center's texture cache, so later scans can measure dimensions " +
			"without a confirmation prompt.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			entries, err := rt.store.ListEntries(runCtx, queue.StatusPending, queue.StatusReviewing)
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(entries))
			for _, entry := range entries {
				ids = append(ids, entry.ID)
			}
			itemsByEntry, err := rt.store.ArtItemsFor(runCtx, ids)
			if err != nil {
				return err
			}

			seen := make(map[string]bool)
			var urls []string
			for _, items := range itemsByEntry {
				for _, item := range items {
					if item.Status != queue.ItemPending || item.BaselineURL == "" {
						continue
					}
					if !seen[item.BaselineURL] {
						seen[item.BaselineURL] = true
						urls = append(urls, item.BaselineURL)
					}
				}
			}
			sort.Strings(urls)

			out := cmd.OutOrStdout()
			if len(urls) == 0 {
				fmt.Fprintln(out, "No pending baselines to cache")
				return nil
			}

			var progress io.Writer
			if isatty.IsTerminal(os.Stdout.Fd()) {
				progress = os.Stdout
			}
			precacher := precache.New(rt.lib, rt.cfg.Scanner.PrecacheWorkers, rt.logger, progress)

			result, err := precacher.Run(runCtx, urls)
			fmt.Fprintf(out, "Cached %d of %d textures (%d failed)\n",
				result.Cached, result.Requested, result.Failed)
			return err
		},
	}
	return cmd
}
