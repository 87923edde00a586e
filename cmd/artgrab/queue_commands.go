package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"artgrab/internal/media"
	"artgrab/internal/queue"
	"artgrab/internal/report"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the artwork queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueuePruneCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []queue.EntryStatus
			if statusFlag != "" {
				status, ok := queue.ParseEntryStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				statuses = append(statuses, status)
			}

			entries, err := store.ListEntries(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}

			ids := make([]int64, 0, len(entries))
			for _, entry := range entries {
				ids = append(ids, entry.ID)
			}
			items, err := store.ArtItemsFor(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, report.Entries(entries, items))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only entries with this status")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue entry counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.QueueStats(stats))
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished entries from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var removed int
			if all {
				removed, err = store.ClearAll(cmd.Context())
			} else {
				removed, err = store.ClearTerminal(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every entry, including pending work")
	return cmd
}

func newQueuePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove finished entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			retention := time.Duration(cfg.Queue.RetentionDays) * 24 * time.Hour
			removed, err := store.PruneInactive(cmd.Context(), retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries older than %d days\n",
				removed, cfg.Queue.RetentionDays)
			return nil
		},
	}
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var artTypesFlag string

	cmd := &cobra.Command{
		Use:   "add <media-type> <library-id>",
		Short: "Queue one library item for artwork review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, ok := media.ParseType(args[0])
			if !ok {
				return fmt.Errorf("unknown media type %q", args[0])
			}
			libraryID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || libraryID <= 0 {
				return fmt.Errorf("invalid library id %q", args[1])
			}

			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			artTypes, err := resolveArtTypes(artTypesFlag, rt.cfg.ArtTypes())
			if err != nil {
				return err
			}

			item, err := rt.lib.GetItem(cmd.Context(), mediaType, libraryID)
			if err != nil {
				return err
			}
			if item.Title == "" {
				return fmt.Errorf("no %s with id %d in the library", mediaType, libraryID)
			}

			sorted := append([]media.ArtType(nil), artTypes...)
			media.SortByReviewOrder(sorted)
			var specs []queue.ArtItemSpec
			for _, artType := range sorted {
				if item.Art[string(artType)] != "" {
					continue
				}
				specs = append(specs, queue.ArtItemSpec{
					ArtType:    artType,
					ReviewMode: queue.ModeMissing,
				})
			}

			out := cmd.OutOrStdout()
			if len(specs) == 0 {
				fmt.Fprintf(out, "%s already has all requested art types\n", item.Title)
				return nil
			}

			ids, err := rt.store.EnqueueBatch(cmd.Context(), []queue.EnqueueSpec{{
				MediaType: mediaType,
				LibraryID: libraryID,
				Title:     item.Title,
				Year:      item.Year,
				Scope:     media.ScopeKey([]media.Type{mediaType}),
				Items:     specs,
			}})
			if err != nil {
				return err
			}

			names := make([]string, 0, len(specs))
			for _, spec := range specs {
				names = append(names, string(spec.ArtType))
			}
			sort.Strings(names)
			fmt.Fprintf(out, "Queued %s (entry %d) for %d art types\n", item.Title, ids[0], len(names))
			return nil
		},
	}

	cmd.Flags().StringVar(&artTypesFlag, "art-types", "", "Comma-separated art types to check (default from config)")
	return cmd
}
