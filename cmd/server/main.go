package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/config"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/logging"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/server"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/signaling"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/version"
)

var flagPort int

var rootCmd = &cobra.Command{
	Use:     "codeshot-server",
	Short:   "Signaling and room coordination server for CodeShot interviews",
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "Listen port (overrides PORT)")
}

func run() error {
	log := logging.Init(slog.LevelInfo)

	cfg, err := config.Load(config.Options{Port: flagPort})
	if err != nil {
		return err
	}

	// 1. Create the Hub and run its loop in a separate goroutine
	hub := signaling.NewHub(signaling.Options{
		HistoryLimit:   cfg.HistoryLimit,
		EmptyRoomGrace: cfg.GracePeriod,
		SweepInterval:  cfg.SweepInterval,
		StaleAfter:     cfg.StaleAfter,
		StatsInterval:  cfg.StatsInterval,
		Logger:         log,
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	// 2. Serve the websocket, health and metrics endpoints
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.NewHandler(hub, server.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         log,
		}),
	}

	go func() {
		log.Info("signaling server listening", "addr", srv.Addr, "version", version.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	// 3. Stop accepting connections first, then drain the hub
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"signaling-server": func(ctx context.Context) error {
				log.Info("shutting down")
				err := srv.Shutdown(ctx)
				stopHub()
				select {
				case <-hub.Done():
				case <-ctx.Done():
					return ctx.Err()
				}
				return err
			},
		},
	)

	exitCode := <-wait
	log.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
	return nil
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
