package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/config"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "fieldsync",
		Short:         "Offline-first sync core for the farm-operations client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "fieldsync.yaml", "path to config file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newQueueCommand(opts))
	cmd.AddCommand(newSessionCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fieldsync version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fieldsync v%s\n", Version)
		},
	}
}

// loadConfig reads the config file named by the global flag.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", opts.ConfigPath, err)
	}
	return cfg, nil
}
