// Package cmd contains the dash CLI subcommands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bmad-tools/dash/cli"
	"github.com/bmad-tools/dash/config"
	"github.com/bmad-tools/dash/internal/daemon/pidfile"
	"github.com/bmad-tools/dash/internal/daemon/server"
	"github.com/bmad-tools/dash/internal/daemon/session"
	"github.com/bmad-tools/dash/internal/daemon/store"
	"github.com/bmad-tools/dash/logging"
	"github.com/bmad-tools/dash/pkg/dispatch"
	"github.com/bmad-tools/dash/pkg/paths"
	"github.com/bmad-tools/dash/pkg/probe"
	"github.com/spf13/cobra"
)

// NewServeCmd returns the daemon serve command with lifecycle subcommands.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard daemon",
		Long:  "Run the BMAD dashboard daemon in foreground mode.",
		RunE:  runServe,
	}
	cmd.Flags().String("project", "", "Open this project on startup")
	cmd.Flags().Bool("open-recent", false, "Open the most recently used project on startup")

	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger("dash")
	opts := cli.GetOptions(cmd)

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}

	pidPath := paths.PidFilePath()
	if err := pidfile.Acquire(pidPath); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	st := store.New()
	prober := probe.New(cfg.Probe)
	sessions := session.NewManager(cfg, st, prober)
	dispatcher := dispatch.New(prober, cfg.Probe.SignalTimeout)
	srv := server.New(cfg, st, sessions, prober, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if project, _ := cmd.Flags().GetString("project"); project != "" {
		if _, err := sessions.Open(ctx, project); err != nil {
			return err
		}
	} else if openRecent, _ := cmd.Flags().GetBool("open-recent"); openRecent {
		if last := sessions.Recent().MostRecent(); last != nil {
			if _, err := sessions.Open(ctx, last.Path); err != nil {
				logger.WithError(err).Warnf("Could not reopen %s", last.Path)
			}
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("Received stop signal")
		cancel()
		sessions.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
		_ = pidfile.Release(pidPath)
		os.Exit(0)
	}()

	logger.WithField("pid", os.Getpid()).Info("Starting daemon")
	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}
			fmt.Printf("Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if running {
				fmt.Printf("Running (PID: %d)\n", pid)
			} else {
				fmt.Println("Stopped")
				os.Exit(1)
			}
			return nil
		},
	}
}
