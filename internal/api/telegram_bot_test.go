package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/abelzeko/waterwatch/internal/entities"
)

type fakeRiverService struct {
	snap       *entities.Snapshot
	err        error
	refreshErr error
	history    []entities.LevelRecord
	historyErr error
	refreshes  int
	historyFor string
}

func (f *fakeRiverService) CurrentSnapshot(context.Context) (*entities.Snapshot, error) {
	return f.snap, f.err
}

func (f *fakeRiverService) ManualRefresh(context.Context) (*entities.Snapshot, error) {
	f.refreshes++
	return f.snap, f.refreshErr
}

func (f *fakeRiverService) StationHistory(_ context.Context, location string, _ int) ([]entities.LevelRecord, error) {
	f.historyFor = location
	return f.history, f.historyErr
}

func newTestBot(svc RiverService) *TelegramBot {
	return &TelegramBot{
		useCase: svc,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testSnapshot() *entities.Snapshot {
	return &entities.Snapshot{
		FetchedAt: time.Date(2026, time.October, 16, 6, 0, 0, 0, time.UTC),
		Readings: []entities.StationReading{
			{River: "Savinja", Location: "Celje", WaterLevelCm: 260, FlowRate: "140,2"},
			{River: "Savinja", Location: "Laško", WaterLevelCm: 190},
		},
	}
}

func TestHandleCommand_Static(t *testing.T) {
	bot := newTestBot(&fakeRiverService{})
	ctx := context.Background()

	assert.Contains(t, bot.handleCommand(ctx, "start", ""), "Welcome to WaterWatch")
	help := bot.handleCommand(ctx, "help", "")
	for _, cmd := range []string{"/levels", "/station", "/refresh"} {
		assert.Contains(t, help, cmd)
	}
	assert.Contains(t, bot.handleCommand(ctx, "rivers", ""), "Unknown command")
}

func TestHandleCommand_Levels(t *testing.T) {
	svc := &fakeRiverService{snap: testSnapshot()}
	bot := newTestBot(svc)

	out := bot.handleCommand(context.Background(), "levels", "")
	assert.Contains(t, out, "📍 Station: Celje (Savinja)")
	assert.Contains(t, out, "📍 Station: Laško (Savinja)")

	svc.snap, svc.err = nil, errors.New("source down")
	out = bot.handleCommand(context.Background(), "levels", "")
	assert.Contains(t, out, "Error fetching river data")
}

func TestHandleCommand_Station(t *testing.T) {
	svc := &fakeRiverService{
		snap: testSnapshot(),
		history: []entities.LevelRecord{
			{Location: "Celje", WaterLevelCm: 255, RecordedAt: time.Date(2026, time.October, 16, 5, 0, 0, 0, time.UTC)},
		},
	}
	bot := newTestBot(svc)
	ctx := context.Background()

	out := bot.handleCommand(ctx, "station", " celje ")
	assert.Contains(t, out, "💧 Water Level: 260 cm")
	assert.Contains(t, out, "Recent levels at Celje")
	assert.Equal(t, "Celje", svc.historyFor)

	assert.Contains(t, bot.handleCommand(ctx, "station", ""), "Please specify a station name")
	assert.Contains(t, bot.handleCommand(ctx, "station", "Mozirje"), "No information found for station 'Mozirje'")

	// History is optional
	svc.historyErr = errors.New("db locked")
	out = bot.handleCommand(ctx, "station", "Celje")
	assert.Contains(t, out, "💧 Water Level: 260 cm")
	assert.NotContains(t, out, "Recent levels")
}

func TestHandleCommand_Refresh(t *testing.T) {
	svc := &fakeRiverService{snap: testSnapshot()}
	bot := newTestBot(svc)
	ctx := context.Background()

	out := bot.handleCommand(ctx, "refresh", "")
	assert.Contains(t, out, "📍 Station: Celje (Savinja)")
	assert.Equal(t, 1, svc.refreshes)

	svc.refreshErr = errors.New("timeout")
	out = bot.handleCommand(ctx, "refresh", "")
	assert.Contains(t, out, "showing the last known readings")
	assert.Contains(t, out, "Celje")

	svc.snap = nil
	assert.Equal(t, "Refresh failed. Please try again later.", bot.handleCommand(ctx, "refresh", ""))
}
