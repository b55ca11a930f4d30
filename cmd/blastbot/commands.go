package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"blastbot/internal/app"
	"blastbot/internal/config"
	logx "blastbot/pkg/logx"
)

func newRunCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), *cfgPath)
		},
	}
}

func newCheckCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok: %s\n", *cfgPath)
			fmt.Fprintf(out, "  bots:                %d\n", len(cfg.Telegram.Tokens))
			fmt.Fprintf(out, "  owner:               %d\n", cfg.Telegram.OwnerID)
			fmt.Fprintf(out, "  sudo users:          %d\n", len(cfg.Telegram.SudoUserIDs))
			fmt.Fprintf(out, "  max concurrent jobs: %d\n", cfg.Broadcast.MaxConcurrentJobs)
			fmt.Fprintf(out, "  health check:        %s\n", cfg.Senders.HealthCheck)
			fmt.Fprintf(out, "  lock:                %s\n", cfg.Lock.Path)
			if cfg.Debug.Enabled {
				fmt.Fprintf(out, "  debug endpoint:      %s\n", cfg.Debug.Addr)
			}
			if len(cfg.Broadcast.Kinds) > 0 {
				names := make([]string, 0, len(cfg.Broadcast.Kinds))
				for k := range cfg.Broadcast.Kinds {
					names = append(names, k)
				}
				sort.Strings(names)
				fmt.Fprintf(out, "  kind overrides:      %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blastbot %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func runBot(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	boot := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "boot"))
	boot.Info("config loaded", logx.String("path", cfgPath), logx.Int("tokens", len(cfg.Telegram.Tokens)))

	a, err := app.New(ctx, cfg)
	if err != nil {
		boot.Error("startup failed", logx.Err(err))
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx, app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
		if ctx.Err() != nil {
			reason = app.StopSignal
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}
