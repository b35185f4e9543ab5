// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abelzeko/waterwatch/internal/cache"
	"github.com/abelzeko/waterwatch/internal/entities"
	"github.com/abelzeko/waterwatch/internal/repository"
)

// RiverUseCase owns the snapshot cache and serves readings to the front ends
type RiverUseCase struct {
	cache    *cache.SnapshotCache
	repo     repository.RiverRepository
	pipeline *AlertPipeline
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// RiverUseCaseOptions configures a RiverUseCase
type RiverUseCaseOptions struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	Clock        func() time.Time
	Logger       *slog.Logger
}

// NewRiverUseCase creates the use case and the snapshot cache it owns. Every
// successful refresh is stored in repo and then run through pipeline.
func NewRiverUseCase(fetcher cache.Fetcher, repo repository.RiverRepository, pipeline *AlertPipeline, opts RiverUseCaseOptions) *RiverUseCase {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	uc := &RiverUseCase{
		repo:     repo,
		pipeline: pipeline,
		ttl:      opts.TTL,
		now:      opts.Clock,
		logger:   opts.Logger,
	}
	uc.cache = cache.New(fetcher, cache.Options{
		FetchTimeout: opts.FetchTimeout,
		OnRefresh:    uc.handleRefresh,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
	})
	return uc
}

// CurrentSnapshot returns cached readings, refreshing them once the TTL has
// passed. If the source is down and nothing is cached yet, the last stored
// readings are served instead.
func (uc *RiverUseCase) CurrentSnapshot(ctx context.Context) (*entities.Snapshot, error) {
	snap, err := uc.cache.GetOrRefresh(ctx, uc.now(), uc.ttl)
	if err == nil {
		return snap, nil
	}
	if snap != nil {
		uc.logger.Warn("serving stale snapshot", "fetched_at", snap.FetchedAt, "error", err)
		return snap, nil
	}

	stored, repoErr := uc.repo.GetLatestReadings(ctx)
	if repoErr != nil {
		return nil, errors.Join(err, repoErr)
	}
	if stored == nil {
		return nil, err
	}
	uc.logger.Warn("serving stored readings", "fetched_at", stored.FetchedAt, "error", err)
	return stored, nil
}

// RefreshIfStale is the scheduler entry point. It refreshes only when the TTL
// has passed and reports the refresh error to the caller.
func (uc *RiverUseCase) RefreshIfStale(ctx context.Context) error {
	_, err := uc.cache.GetOrRefresh(ctx, uc.now(), uc.ttl)
	return err
}

// ManualRefresh forces a new fetch. The stale snapshot, if any, is returned
// together with the error when the fetch fails.
func (uc *RiverUseCase) ManualRefresh(ctx context.Context) (*entities.Snapshot, error) {
	uc.logger.Info("manual refresh requested")
	uc.cache.Invalidate()
	return uc.cache.Refresh(ctx)
}

// StationHistory returns the latest stored levels of a station, newest first
func (uc *RiverUseCase) StationHistory(ctx context.Context, location string, limit int) ([]entities.LevelRecord, error) {
	return uc.repo.GetStationHistory(ctx, location, limit)
}

// Wait blocks until pending refresh hooks have finished
func (uc *RiverUseCase) Wait() {
	uc.cache.Wait()
}

func (uc *RiverUseCase) handleRefresh(ctx context.Context, snap *entities.Snapshot) {
	if err := uc.repo.SaveReadings(ctx, snap); err != nil {
		uc.logger.Error("failed to store readings", "error", err)
	}
	if uc.pipeline != nil {
		uc.pipeline.Run(ctx, snap)
	}
}

// FormatSnapshot formats all readings of a snapshot for display
func FormatSnapshot(snap *entities.Snapshot) string {
	if snap == nil || len(snap.Readings) == 0 {
		return "No readings available."
	}

	var result strings.Builder
	for _, r := range snap.Readings {
		result.WriteString(FormatReading(r))
		result.WriteString("\n")
	}
	result.WriteString(fmt.Sprintf("🕒 Last update: %s", snap.FetchedAt.Format("2006-01-02 15:04:05 MST")))
	return result.String()
}

// FormatReading formats one station reading
func FormatReading(r entities.StationReading) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("📍 Station: %s (%s)\n", r.Location, r.River))
	result.WriteString(fmt.Sprintf("💧 Water Level: %d cm\n", r.WaterLevelCm))

	// Only include fields that have values
	if r.FlowRate != "" {
		result.WriteString(fmt.Sprintf("🌊 Discharge: %s m³/s\n", r.FlowRate))
	}
	if r.Temperature != "" {
		result.WriteString(fmt.Sprintf("🌡️ Water Temperature: %s °C\n", r.Temperature))
	}
	return result.String()
}

// FormatHistory formats stored levels of one station
func FormatHistory(location string, records []entities.LevelRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No stored readings for station %s.", location)
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Recent levels at %s:\n", location))
	for _, rec := range records {
		result.WriteString(fmt.Sprintf("%s  %d cm\n", rec.RecordedAt.Format("2006-01-02 15:04"), rec.WaterLevelCm))
	}
	return result.String()
}
