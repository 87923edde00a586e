package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"artgrab/internal/queue"
	"artgrab/internal/report"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage scan sessions",
	}

	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionCancelCommand(ctx))

	return sessionCmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scan sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded")
				return nil
			}
			fmt.Fprintln(out, report.Sessions(sessions))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list")
	return cmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session's counters and event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			session, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if session == nil {
				return fmt.Errorf("no session matches %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Session(session))
			return nil
		},
	}
}

func newSessionCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Cancel an open session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			session, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if session == nil {
				return fmt.Errorf("no session matches %q", args[0])
			}
			if !session.Status.Open() {
				return fmt.Errorf("session %s is already %s", report.ShortID(session.ID), session.Status)
			}
			if err := store.UpdateSessionStatus(cmd.Context(), session.ID, queue.SessionCancelled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled session %s\n", report.ShortID(session.ID))
			return nil
		},
	}
}
