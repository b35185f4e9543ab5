package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abelzeko/waterwatch/internal/usecases"
)

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Show current water levels",
	RunE:  runLevels,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch new readings now and run the alert pipeline",
	RunE:  runRefresh,
}

var historyCmd = &cobra.Command{
	Use:   "history <station>",
	Short: "Show stored levels of a station",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(historyCmd)

	levelsCmd.Flags().Bool("stored", false, "Show the last stored readings without fetching")
	historyCmd.Flags().IntP("limit", "n", 10, "Number of readings to show")
}

func runLevels(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	stored, _ := cmd.Flags().GetBool("stored")
	if stored {
		repo, err := initStorage(cfg, logger)
		if err != nil {
			return err
		}
		defer repo.Close()

		snap, err := repo.GetLatestReadings(cmd.Context())
		if err != nil {
			return fmt.Errorf("load stored readings: %w", err)
		}
		fmt.Println(usecases.FormatSnapshot(snap))
		return nil
	}

	uc, repo, err := initRiverUseCase(cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()
	defer uc.Wait()

	snap, err := uc.CurrentSnapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("get levels: %w", err)
	}
	fmt.Println(usecases.FormatSnapshot(snap))
	return nil
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	uc, repo, err := initRiverUseCase(cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()
	defer uc.Wait()

	snap, err := uc.ManualRefresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	fmt.Println(usecases.FormatSnapshot(snap))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	repo, err := initStorage(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer repo.Close()

	records, err := repo.GetStationHistory(cmd.Context(), args[0], limit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	fmt.Println(usecases.FormatHistory(args[0], records))
	return nil
}
