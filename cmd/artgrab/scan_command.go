package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"artgrab/internal/logging"
	"artgrab/internal/media"
	"artgrab/internal/precache"
	"artgrab/internal/queue"
	"artgrab/internal/report"
	"artgrab/internal/scanner"
	"artgrab/internal/tasks"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var mediaTypesFlag string
	var artTypesFlag string
	var upgrades bool
	var restart bool
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the library for missing and upgradable artwork",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			mediaTypes, err := resolveMediaTypes(mediaTypesFlag, rt.cfg.MediaTypes())
			if err != nil {
				return err
			}
			artTypes, err := resolveArtTypes(artTypesFlag, rt.cfg.ArtTypes())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var progress io.Writer
			if isatty.IsTerminal(os.Stdout.Fd()) {
				progress = os.Stdout
			}
			precacher := precache.New(rt.lib, rt.cfg.Scanner.PrecacheWorkers, rt.logger, progress)

			confirm := func(count int) bool {
				if assumeYes {
					return true
				}
				if !isatty.IsTerminal(os.Stdin.Fd()) {
					return false
				}
				fmt.Fprintf(out, "Measure %d uncached textures before upgrade detection? [y/N] ", count)
				return readYes(cmd.InOrStdin())
			}

			sc := scanner.New(rt.cfg, rt.store, rt.lib, rt.fetcher, precacher, rt.logger, confirm)
			registry := tasks.NewRegistry(rt.store, rt.logger, 0)

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			var session *queue.Session
			runErr := registry.Run(runCtx, "scan", "", func(opCtx context.Context) error {
				var err error
				session, err = sc.Run(opCtx, scanner.Options{
					MediaTypes:      mediaTypes,
					ArtTypes:        artTypes,
					IncludeUpgrades: upgrades || rt.cfg.Scanner.IncludeUpgrades,
					Restart:         restart,
				})
				return err
			})

			if session != nil {
				fmt.Fprintln(out, report.RunLine("scan", session))
				if runErr == nil {
					if err := rt.notify.NotifyScanCompleted(cmd.Context(), session.Scope, session.Stats.Queued); err != nil {
						rt.logger.Warn("scan notification failed", logging.Error(err))
					}
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&mediaTypesFlag, "media-types", "", "Comma-separated media types to scan (default from config)")
	cmd.Flags().StringVar(&artTypesFlag, "art-types", "", "Comma-separated art types to scan (default from config)")
	cmd.Flags().BoolVar(&upgrades, "upgrades", false, "Also queue upgrade candidates for occupied slots")
	cmd.Flags().BoolVar(&restart, "restart", false, "Cancel any open session on this scope and start fresh")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to prompts")
	return cmd
}

func resolveMediaTypes(flag string, fallback []media.Type) ([]media.Type, error) {
	if strings.TrimSpace(flag) == "" {
		return fallback, nil
	}
	types, ok := media.ParseTypes(flag)
	if !ok {
		return nil, fmt.Errorf("unknown media type in %q", flag)
	}
	return types, nil
}

func resolveArtTypes(flag string, fallback []media.ArtType) ([]media.ArtType, error) {
	if strings.TrimSpace(flag) == "" {
		return fallback, nil
	}
	types, ok := media.ParseArtTypes(flag)
	if !ok {
		return nil, fmt.Errorf("unknown art type in %q", flag)
	}
	return types, nil
}

func readYes(in interface{ Read([]byte) (int, error) }) bool {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
