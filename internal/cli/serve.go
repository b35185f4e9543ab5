package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abelzeko/waterwatch/internal/api"
	"github.com/abelzeko/waterwatch/internal/metrics"
	"github.com/abelzeko/waterwatch/internal/usecases"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, metrics endpoint and Telegram bot",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("metrics-listen", "", "Metrics listen address (default from config)")
	serveCmd.Flags().Bool("no-bot", false, "Do not start the Telegram bot")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("metrics-listen"); listen != "" {
		cfg.Metrics.Listen = listen
	}
	noBot, _ := cmd.Flags().GetBool("no-bot")

	logger := newLogger(cfg)

	uc, repo, err := initRiverUseCase(cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()
	defer uc.Wait()

	var bot *api.TelegramBot
	if cfg.Telegram.Token != "" && !noBot {
		bot, err = api.NewTelegramBot(cfg.Telegram.Token, uc, logger)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run immediately on startup
	if err := uc.RefreshIfStale(ctx); err != nil {
		logger.Warn("initial refresh failed", "error", err)
	}

	scheduler, err := newScheduler(ctx, cfg.Scheduler.Spec, uc, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	logger.Info("refresh check scheduled", "spec", cfg.Scheduler.Spec, "ttl", cfg.Cache.TTL)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(cfg.Metrics.Listen, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if bot != nil {
		g.Go(func() error {
			bot.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	logger.Info("shutting down")

	<-scheduler.Stop().Done()

	logger.Info("stopped")
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// newScheduler creates a cron scheduler that asks the use case to refresh on
// every tick. The cache TTL decides whether a fetch actually happens.
func newScheduler(ctx context.Context, spec string, uc *usecases.RiverUseCase, logger *slog.Logger) (*cron.Cron, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	_, err := c.AddFunc(spec, func() {
		if err := uc.RefreshIfStale(ctx); err != nil {
			logger.Error("scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up cron job %q: %w", spec, err)
	}
	return c, nil
}
