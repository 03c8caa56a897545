package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stockwatch/internal/scheduler"
	"stockwatch/internal/server"
	"stockwatch/pkg/monitor"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the price monitoring daemon",
	Long: `Starts the two monitoring cycles: a fast cycle over the free price
sources and a slow cycle over the metered source, plus the status API
when enabled. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("listen", "l", "", "Status API listen address (default from config)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}

	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	calendar, err := initCalendar(cfg)
	if err != nil {
		return fmt.Errorf("init market calendar: %w", err)
	}

	sources := initProviders(cfg, logger)
	notifiers := initNotifiers(cfg)
	if len(notifiers) == 0 {
		logger.Warn("no notifiers configured, triggers will only be logged")
	}

	mon := monitor.New(monitor.Config{
		Storage:   store,
		Domestic:  sources.moex,
		Free:      sources.yahoo,
		Metered:   sources.twelvedata,
		Calendar:  calendar,
		Notifiers: notifiers,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(mon, cfg.Monitor.FastInterval, cfg.Monitor.MeteredInterval, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	errCh := make(chan error, 1)
	var srv *http.Server
	if cfg.Server.Enabled {
		apiServer := server.NewServer(store, sources.ledger, calendar, logger)
		srv = &http.Server{
			Addr:         cfg.Server.Listen,
			Handler:      apiServer.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			logger.Info("status API started", "listen", cfg.Server.Listen)
			errCh <- srv.ListenAndServe()
		}()
	}

	logger.Info("stockwatch started",
		"fast_interval", cfg.Monitor.FastInterval,
		"metered_interval", cfg.Monitor.MeteredInterval,
		"notifiers", len(notifiers))
	fmt.Fprintln(os.Stderr, "stockwatch monitoring, Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
		if srv != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
		}
	}

	logger.Info("stockwatch stopped")
	return nil
}
