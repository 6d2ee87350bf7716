package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/app"
	"github.com/richinsley/goshaderjam/config"
	"github.com/richinsley/goshaderjam/logger"
)

// GLFW and every GL context must stay on the main OS thread.
func init() {
	runtime.LockOSThread()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goshaderjam",
		Short: "Live shader panels that evolve to the beat",
		Long: `goshaderjam opens one window per shader. Every shader sees the webcam as
iChannel0, the microphone spectrum as iChannel1 and a shared tempo as bpm.

Keys (any panel): G generate, B blend, N add webcam shader, Delete remove
panel, Space tap tempo, Up/Down adjust tempo, S save, L load, Escape quit.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{
				Environment: cfg.Environment,
				LogLevel:    cfg.LogLevel,
				ServiceName: "goshaderjam",
			})
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.Run(ctx, cfg, log); err != nil {
				log.Error("Exited with error", zap.Error(err))
				return err
			}
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
