// Package entities contains the core domain objects for the waterwatch application
package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StationReading is one gauge row as published by the data source
type StationReading struct {
	River        string
	Location     string // Monitoring station name
	WaterLevelCm int    // Current water level in cm
	FlowRate     string // Discharge in m³/s, as published
	Temperature  string // Water temperature in °C, as published
}

// Snapshot is one fetched set of readings. It is never modified after it has
// been handed out by the cache.
type Snapshot struct {
	Readings  []StationReading
	FetchedAt time.Time
}

// Levels returns a location to level lookup for the snapshot
func (s *Snapshot) Levels() map[string]int {
	levels := make(map[string]int, len(s.Readings))
	for _, r := range s.Readings {
		levels[r.Location] = r.WaterLevelCm
	}
	return levels
}

// Find returns the reading for a location, matched case-insensitively
func (s *Snapshot) Find(location string) (StationReading, bool) {
	if s == nil {
		return StationReading{}, false
	}
	for _, r := range s.Readings {
		if strings.EqualFold(r.Location, location) {
			return r, true
		}
	}
	return StationReading{}, false
}

// LevelRecord is a stored level of one station at one refresh
type LevelRecord struct {
	Location     string
	WaterLevelCm int
	RecordedAt   time.Time
}

// UserThresholds maps a station to every threshold row a user recorded for it
type UserThresholds map[string][]int

// DangerEvent is the fact that a user's threshold for a station is exceeded
type DangerEvent struct {
	UserID      int64
	Location    string
	LevelCm     int
	ThresholdCm int
}

// ParseLevel normalizes a published level like "1,234" or "1 234" to whole centimeters
func ParseLevel(raw string) (int, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', ' ', '\'', '\u00a0', '\u2009', '\u202f':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty level %q", ErrParse, raw)
	}

	level, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: level %q: %v", ErrParse, raw, err)
	}
	return level, nil
}
