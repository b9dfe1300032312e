package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/blurt/internal/gateway"
	"github.com/user/blurt/internal/manifest"
	"github.com/user/blurt/internal/scheduler"
	"github.com/user/blurt/internal/telegram"
	"github.com/user/blurt/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the blurt daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func pidPath(dataDir string) string {
	return filepath.Join(dataDir, "blurt.pid")
}

func writePIDFile(dataDir string) (string, error) {
	path := pidPath(dataDir)
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	pidFile, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidFile)

	a.gateway.Start(ctx)
	defer a.gateway.Stop()

	// Manifest rebuilds on user document changes
	a.notices.Register("devices", a.devices.Notify)
	rebuilder := manifest.NewRebuilder(a.publisher, manifest.DefaultDebounce, nil)
	rebuilder.Watch(ctx, a.store)
	defer rebuilder.Wait()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, a.gateway, telegramUsers(cfg), nil)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		a.notices.Register("telegram", adapter.Notify)
		slog.Info("telegram adapter started", "linked_users", len(cfg.Telegram.Users))
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Scheduler
	sched := scheduler.New(gateway.DefaultRetryPolicy(), nil)
	if err := sched.Add(scheduler.Job{
		Name:     "sync",
		Schedule: cfg.Sync.Schedule,
		Run: func(ctx context.Context) error {
			report, err := a.sync.Run(ctx)
			if err == nil {
				slog.Info("group sync finished", "groups", report.Groups, "members", report.Members, "reaped", report.Reaped)
			}
			return err
		},
	}); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// Webhook HTTP server
	if cfg.HTTP.Enabled {
		srv := webhook.NewServer(webhook.Deps{
			Gateway:   a.gateway,
			Sessions:  a.sessions,
			Journal:   a.journal,
			Writer:    a.writer,
			Sync:      a.sync,
			Manifests: a.manifests,
			Devices:   a.devices,
		}, webhook.Auth{User: cfg.HTTP.AuthUser, PasswordHash: cfg.HTTP.AuthPasswordHash}, nil)
		httpServer := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("webhook server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("webhook server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			httpServer.Shutdown(shutdownCtx)
		}()
	}

	slog.Info("blurt started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"store", cfg.Store.Driver,
		"timezone", cfg.Timezone,
		"max_concurrent", cfg.MaxConcurrent,
		"sync_schedule", cfg.Sync.Schedule,
		"sinks", a.notices.Sinks(),
		"pid_file", pidFile,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidFile)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
