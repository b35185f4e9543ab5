package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abelzeko/waterwatch/internal/config"
	"github.com/abelzeko/waterwatch/internal/integration"
	"github.com/abelzeko/waterwatch/internal/integration/email"
	"github.com/abelzeko/waterwatch/internal/repository"
	"github.com/abelzeko/waterwatch/internal/usecases"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "waterwatch",
	Short: "WaterWatch - Savinja water level monitoring and alerts",
	Long: `WaterWatch scrapes the automatic gauge stations of the Savinja river,
keeps a cached snapshot of the current levels, stores every reading and
emails subscribers when a level crosses one of their thresholds.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.waterwatch/config.yaml)")
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

// initStorage opens the SQLite database from config.
func initStorage(cfg *config.Config, logger *slog.Logger) (*repository.SQLiteRepository, error) {
	return repository.NewSQLiteRepository(cfg.Storage.Path, logger)
}

// initScraper creates the gauge table scraper from config.
func initScraper(cfg *config.Config, logger *slog.Logger) *integration.WaterScraper {
	return integration.NewWaterScraper(integration.ScraperOptions{
		URL:     cfg.Source.URL,
		River:   cfg.Source.River,
		Exclude: cfg.Source.Exclude,
		Timeout: cfg.Source.Timeout,
		Logger:  logger,
	})
}

// initPipeline creates the alert pipeline. Without an SMTP host alerts are
// disabled and nil is returned.
func initPipeline(cfg *config.Config, store usecases.ThresholdStore, logger *slog.Logger) (*usecases.AlertPipeline, error) {
	if cfg.SMTP.Host == "" {
		logger.Warn("smtp.host is not set, email alerts are disabled")
		return nil, nil
	}

	mailer, err := email.NewSMTPMailer(email.Config{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		From:      cfg.SMTP.From,
		TLSPolicy: cfg.SMTP.TLSPolicy,
		Timeout:   cfg.SMTP.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	evaluator := usecases.NewThresholdEvaluator(cfg.Stations.Order)
	dispatcher := usecases.NewNotificationDispatcher(mailer, cfg.Alerts.DispatchTimeout, logger)
	return usecases.NewAlertPipeline(store, evaluator, dispatcher, logger), nil
}

// initRiverUseCase creates a fully wired river use case. The caller closes
// the returned repository.
func initRiverUseCase(cfg *config.Config, logger *slog.Logger) (*usecases.RiverUseCase, *repository.SQLiteRepository, error) {
	repo, err := initStorage(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	pipeline, err := initPipeline(cfg, repo, logger)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	uc := usecases.NewRiverUseCase(initScraper(cfg, logger), repo, pipeline, usecases.RiverUseCaseOptions{
		TTL:          cfg.Cache.TTL,
		FetchTimeout: cfg.Source.Timeout,
		Logger:       logger,
	})
	return uc, repo, nil
}
