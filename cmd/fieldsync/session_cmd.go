package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/db"
	"github.com/fieldsync/fieldsync/internal/session"
	"github.com/fieldsync/fieldsync/internal/store"
)

func newSessionCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved offline sessions",
	}

	cmd.AddCommand(newSessionSaveCommand(opts))
	cmd.AddCommand(newSessionCheckCommand(opts))
	cmd.AddCommand(newSessionForgetCommand(opts))

	return cmd
}

// withGate opens the database and hands a session Gate to fn.
func withGate(opts *rootOptions, fn func(*session.Gate) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	database, err := db.OpenAndMigrate(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	gate := session.NewGate(store.NewKV(database.DB), cfg.Session.ValidityWindow())
	return fn(gate)
}

func newSessionSaveCommand(opts *rootOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "save <principal-id>",
		Short: "Record a successful online sign-in for later offline use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGate(opts, func(g *session.Gate) error {
				if err := g.SaveOfflineSession(args[0], email, time.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved session for %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "display email to match on")

	return cmd
}

func newSessionCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <principal-id-or-email>",
		Short: "Report whether offline access would be granted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGate(opts, func(g *session.Gate) error {
				if !g.CanUseOffline(args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), "offline access denied")
					return nil
				}
				rec, _ := g.Lookup(args[0])
				authAt := time.Unix(rec.LastOnlineAuthAt, 0).Format(time.RFC3339)
				fmt.Fprintf(cmd.OutOrStdout(), "offline access allowed (last online auth %s)\n", authAt)
				return nil
			})
		},
	}
}

func newSessionForgetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <principal-id>",
		Short: "Remove a saved offline session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGate(opts, func(g *session.Gate) error {
				if err := g.Forget(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forgot session for %s\n", args[0])
				return nil
			})
		},
	}
}
