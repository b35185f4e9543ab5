package usecases_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/waterwatch/internal/entities"
	"github.com/abelzeko/waterwatch/internal/usecases"
)

func snapshotOf(levels map[string]int) *entities.Snapshot {
	snap := &entities.Snapshot{FetchedAt: time.Date(2026, time.October, 16, 6, 0, 0, 0, time.UTC)}
	for loc, cm := range levels {
		snap.Readings = append(snap.Readings, entities.StationReading{River: "Savinja", Location: loc, WaterLevelCm: cm})
	}
	return snap
}

func TestEvaluate_DownstreamFirst(t *testing.T) {
	ev := usecases.NewThresholdEvaluator([]string{"A", "B", "C"})
	snap := snapshotOf(map[string]int{"A": 120, "B": 50, "C": 500})
	thresholds := entities.UserThresholds{"A": {100}, "B": {100}, "C": {100}}

	event, ok := ev.Evaluate(snap, 7, thresholds)
	require.True(t, ok)
	assert.Equal(t, entities.DangerEvent{UserID: 7, Location: "A", LevelCm: 120, ThresholdCm: 100}, event)
}

func TestEvaluate_MaxThresholdWins(t *testing.T) {
	ev := usecases.NewThresholdEvaluator([]string{"Celje"})
	snap := snapshotOf(map[string]int{"Celje": 280})

	_, ok := ev.Evaluate(snap, 1, entities.UserThresholds{"Celje": {300, 250}})
	assert.False(t, ok, "280 does not exceed the max threshold of 300")

	event, ok := ev.Evaluate(snapshotOf(map[string]int{"Celje": 301}), 1, entities.UserThresholds{"Celje": {250, 300}})
	require.True(t, ok)
	assert.Equal(t, 300, event.ThresholdCm)
}

func TestEvaluate_StrictlyExceeds(t *testing.T) {
	ev := usecases.NewThresholdEvaluator([]string{"Celje"})

	_, ok := ev.Evaluate(snapshotOf(map[string]int{"Celje": 250}), 1, entities.UserThresholds{"Celje": {250}})
	assert.False(t, ok)
}

func TestEvaluate_SkipsConfigurationGaps(t *testing.T) {
	ev := usecases.NewThresholdEvaluator([]string{"Laško", "Celje", "Nazarje"})
	snap := snapshotOf(map[string]int{"Celje": 260, "Medlog": 900})
	thresholds := entities.UserThresholds{
		"Medlog":  {100}, // not in the station order
		"Nazarje": {10},  // not in the snapshot
		"Laško":   {},    // no rows
		"Celje":   {250},
	}

	event, ok := ev.Evaluate(snap, 3, thresholds)
	require.True(t, ok)
	assert.Equal(t, "Celje", event.Location)
}

func TestEvaluate_NoDanger(t *testing.T) {
	ev := usecases.NewThresholdEvaluator([]string{"Celje"})

	_, ok := ev.Evaluate(snapshotOf(map[string]int{"Celje": 100}), 1, entities.UserThresholds{"Celje": {250}})
	assert.False(t, ok)

	_, ok = ev.Evaluate(snapshotOf(map[string]int{"Celje": 100}), 1, nil)
	assert.False(t, ok)

	_, ok = ev.Evaluate(nil, 1, entities.UserThresholds{"Celje": {1}})
	assert.False(t, ok)
}

func TestEvaluate_Idempotent(t *testing.T) {
	ev := usecases.NewThresholdEvaluator([]string{"A", "B", "C"})
	snap := snapshotOf(map[string]int{"A": 10, "B": 200, "C": 300})
	thresholds := entities.UserThresholds{"B": {150, 120}, "C": {100}}

	first, ok1 := ev.Evaluate(snap, 9, thresholds)
	second, ok2 := ev.Evaluate(snap, 9, thresholds)

	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
	assert.Equal(t, "B", first.Location)
	assert.Equal(t, entities.UserThresholds{"B": {150, 120}, "C": {100}}, thresholds, "inputs are not modified")
}

func TestEvaluator_OrderIsCopied(t *testing.T) {
	order := []string{"A", "B"}
	ev := usecases.NewThresholdEvaluator(order)
	order[0] = "Z"

	assert.Equal(t, []string{"A", "B"}, ev.Order())
}
