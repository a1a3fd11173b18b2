package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldsync/fieldsync/internal/connectivity"
	"github.com/fieldsync/fieldsync/internal/db"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/queue"
	"github.com/fieldsync/fieldsync/internal/remote"
	syncpkg "github.com/fieldsync/fieldsync/internal/sync"
	"github.com/fieldsync/fieldsync/internal/store"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync core and the local status websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			database, err := db.OpenAndMigrate(cfg.DataDir)
			if err != nil {
				return err
			}
			defer database.Close()

			q := queue.New(database.DB)
			kv := store.NewKV(database.DB)
			svc := remote.NewHTTPService(remote.HTTPConfig{
				BaseURL: cfg.Remote.BaseURL,
				Token:   cfg.Remote.Token,
				Timeout: cfg.Remote.Timeout(),
			})

			// The platform shell feeds real reachability into the
			// notifier; standalone we start online and drain at boot.
			notifier := connectivity.NewNotifier(true)
			engine := syncpkg.NewEngine(q, kv, svc, notifier, cfg.Sync.SeedResources, cfg.Effective.Lookback())

			if cfg.StatusAddr != "" {
				hub := syncpkg.NewStatusHub()
				engine.OnStatus(hub.Broadcast)

				mux := http.NewServeMux()
				mux.Handle("/ws/status", hub)
				go func() {
					logging.Info("Status hub listening",
						map[string]interface{}{"addr": cfg.StatusAddr})
					if err := http.ListenAndServe(cfg.StatusAddr, mux); err != nil {
						logging.Error("Status hub stopped", err, nil)
					}
				}()
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			engine.Start(ctx)

			logging.Info("fieldsync core running",
				map[string]interface{}{"data_dir": cfg.DataDir})

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			fmt.Fprintln(cmd.OutOrStdout(), "shutting down")
			return nil
		},
	}
}
