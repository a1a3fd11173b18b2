package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/db"
	"github.com/fieldsync/fieldsync/internal/models"
	"github.com/fieldsync/fieldsync/internal/queue"
)

func newQueueCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the pending-operation queue",
	}

	cmd.AddCommand(newQueueListCommand(opts))
	cmd.AddCommand(newQueueRetryCommand(opts))
	cmd.AddCommand(newQueueDiscardCommand(opts))

	return cmd
}

// withQueue opens the database and hands a Queue to fn.
func withQueue(opts *rootOptions, fn func(*queue.Queue) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	database, err := db.OpenAndMigrate(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(queue.New(database.DB))
}

func newQueueListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending and failed operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(opts, func(q *queue.Queue) error {
				pending, err := q.ListPending()
				if err != nil {
					return err
				}
				failed, err := q.ListFailed()
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tACTION\tSTATUS\tCREATED\tERROR")
				for _, op := range append(pending, failed...) {
					created := time.Unix(op.CreatedAt, 0).Format(time.RFC3339)
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						op.ID, op.Action, op.Status, created, op.LastError)
				}
				return w.Flush()
			})
		},
	}
}

func newQueueRetryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <operation-id>",
		Short: "Re-enqueue a failed operation at the queue tail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(opts, func(q *queue.Queue) error {
				op, err := q.Retry(models.UUID(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "retried as %s\n", op.ID)
				return nil
			})
		},
	}
}

func newQueueDiscardCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <operation-id>",
		Short: "Drop a failed operation without replaying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(opts, func(q *queue.Queue) error {
				if err := q.Discard(models.UUID(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "discarded %s\n", args[0])
				return nil
			})
		},
	}
}
