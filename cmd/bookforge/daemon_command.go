package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"bookforge/internal/history"
	"bookforge/internal/scheduler"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the publishing daemon with the daily schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logPath := filepath.Join(cfg.Paths.LogDir, "bookforge.log")
			logger, err := ctx.newLogger(logPath)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			pidPath := filepath.Join(cfg.Paths.LogDir, "bookforge.pid")
			if err := writePIDFile(pidPath); err != nil {
				return fmt.Errorf("write pid file: %w", err)
			}
			defer os.Remove(pidPath)

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer store.Close()

			sched := scheduler.New(cfg, logger, scheduler.WithHistory(store))
			daemon := scheduler.NewDaemon(cfg, logger, sched)
			return daemon.Run(signalCtx)
		},
	}
}

func writePIDFile(path string) error {
	pid := strconv.Itoa(os.Getpid())
	return os.WriteFile(path, []byte(pid+"\n"), 0o644)
}
