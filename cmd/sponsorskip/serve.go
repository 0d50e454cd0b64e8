package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/sponsorskip/internal/cleanup"
	"github.com/codebuildervaibhav/sponsorskip/internal/detect"
	"github.com/codebuildervaibhav/sponsorskip/internal/logging"
	"github.com/codebuildervaibhav/sponsorskip/internal/server"
	"github.com/codebuildervaibhav/sponsorskip/internal/storage"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the segment database backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logBuffer := logging.NewLogBuffer(1000)
			log := ctx.logger(io.MultiWriter(os.Stdout, logBuffer))
			log.Info("Initializing components...")

			store, err := storage.NewAdStore(cfg.Storage.Database)
			if err != nil {
				return fmt.Errorf("initialize database: %w", err)
			}
			defer store.Close()

			if days := cfg.Storage.RetentionDays; days > 0 {
				scheduler := cleanup.NewScheduler(store,
					time.Duration(cfg.Storage.CleanupIntervalMinutes)*time.Minute,
					time.Duration(days)*24*time.Hour,
					log,
				)
				scheduler.Start()
				defer scheduler.Stop()
			}

			apiKey := cfg.Detector.APIKey()
			if apiKey == "" {
				log.Warnf("%s is not set; detection requests will be rejected upstream", cfg.Detector.APIKeyEnv)
			}
			detector, err := detect.New(detect.Options{
				BaseURL: cfg.Detector.BaseURL,
				Model:   cfg.Detector.Model,
				APIKey:  apiKey,
				Timeout: time.Duration(cfg.Detector.TimeoutSeconds) * time.Second,
			}, nil, log)
			if err != nil {
				return err
			}

			app := server.New(store, detector, server.Options{
				BodyLimitMB: cfg.Server.BodyLimitMB,
				Logs:        logBuffer,
				Logger:      log,
			})

			go func() {
				sigint := make(chan os.Signal, 1)
				signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
				<-sigint

				log.Info("Shutting down gracefully...")
				app.Shutdown()
			}()

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			log.WithField("addr", addr).Info("Server starting")
			if err := app.Listen(addr); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}
}
