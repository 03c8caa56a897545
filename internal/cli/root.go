package cli

import (
	"log/slog"
	"os"

	"stockwatch/internal/config"
	"stockwatch/pkg/marketcal"
	"stockwatch/pkg/notify"
	"stockwatch/pkg/providers"
	"stockwatch/pkg/quota"
	"stockwatch/pkg/storage"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stockwatch",
	Short: "Stockwatch - stock price alert monitoring",
	Long: `Stockwatch watches stock prices across Moscow Exchange and foreign
markets and fires one-shot notifications when a price crosses a target.
It routes each ticker to the cheapest data source that can serve it and
keeps the metered provider inside its daily credit budget.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.stockwatch/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initCalendar loads the market calendar, merging a config file over
// the built-in sessions when one is given.
func initCalendar(cfg *config.Config) (*marketcal.Calendar, error) {
	if cfg.MarketsFile != "" {
		return marketcal.LoadFile(cfg.MarketsFile)
	}
	return marketcal.Default(), nil
}

// initQuota creates the rate limiter and credit ledger shared by every
// metered provider call.
func initQuota(cfg *config.Config) (*quota.Limiter, *quota.Ledger) {
	td := cfg.Providers.TwelveData
	return quota.NewLimiter(td.MaxRequestsPerMinute), quota.NewLedger(td.DailyLimit, td.Reserve)
}

// priceSources bundles the three provider adapters and the quota state
// behind them.
type priceSources struct {
	moex       *providers.MOEX
	yahoo      *providers.Yahoo
	twelvedata *providers.TwelveData
	limiter    *quota.Limiter
	ledger     *quota.Ledger
}

// initProviders wires the three adapters from config.
func initProviders(cfg *config.Config, logger *slog.Logger) *priceSources {
	limiter, ledger := initQuota(cfg)

	moex := providers.NewMOEX(providers.MOEXConfig{
		BaseURL: cfg.Providers.MOEX.BaseURL,
		Board:   cfg.Providers.MOEX.Board,
	}, logger)

	yahoo := providers.NewYahoo(providers.YahooConfig{
		BaseURL: cfg.Providers.Yahoo.BaseURL,
	}, logger)

	twelvedata := providers.NewTwelveData(providers.TwelveDataConfig{
		BaseURL:   cfg.Providers.TwelveData.BaseURL,
		APIKey:    cfg.Providers.TwelveData.APIKey,
		ChunkSize: cfg.Providers.TwelveData.ChunkSize,
	}, limiter, ledger, logger)

	return &priceSources{
		moex:       moex,
		yahoo:      yahoo,
		twelvedata: twelvedata,
		limiter:    limiter,
		ledger:     ledger,
	}
}

// searchChain builds the ticker-resolution fallback order: free
// domestic lookup, then the metered search (1 credit from the
// reserve), then the free foreign quote.
func (p *priceSources) searchChain(logger *slog.Logger) *providers.SearchChain {
	return providers.NewSearchChain(logger, p.moex, p.twelvedata, p.yahoo)
}

// initNotifiers creates trigger notifiers from config.
func initNotifiers(cfg *config.Config) []notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.Notify.Telegram.Enabled && cfg.Notify.Telegram.Token != "" {
		notifiers = append(notifiers, notify.NewTelegramNotifier(
			cfg.Notify.Telegram.Token,
			cfg.Notify.Telegram.BaseURL,
		))
	}

	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(
			cfg.Notify.Webhook.URL,
			cfg.Notify.Webhook.Secret,
		))
	}

	return notifiers
}
