package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/sponsorskip/internal/agent"
	"github.com/codebuildervaibhav/sponsorskip/internal/browser"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <video-url>",
		Short: "Open a video page and skip its sponsor segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.logger(cmd.OutOrStdout())

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session := browser.NewSession(runCtx, cfg.Browser, log)
			defer session.Close()

			a, err := agent.New(agent.Options{
				Config:     cfg.Agent,
				HTTPClient: &http.Client{},
				Locator:    session.Locator(),
				Logger:     log,
			})
			if err != nil {
				return err
			}

			if err := session.Observe(a.Observe); err != nil {
				return fmt.Errorf("install interception: %w", err)
			}
			a.Start(runCtx)
			defer a.Stop()

			if err := session.Navigate(args[0]); err != nil {
				return err
			}

			select {
			case <-runCtx.Done():
				log.Info("Shutting down gracefully...")
			case <-session.Done():
				log.Info("Browser closed")
			}

			a.Stop()
			for _, at := range a.Attempts() {
				log.WithFields(logrus.Fields{
					"job":      at.ID,
					"seq":      at.Seq,
					"status":   at.Status,
					"source":   at.Source,
					"segments": at.Segments,
					"applied":  at.Applied,
					"error":    at.Error,
				}).Info("Resolution attempt")
			}
			return nil
		},
	}
}

