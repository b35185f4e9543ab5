// Package integration handles external service interactions
package integration

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abelzeko/waterwatch/internal/entities"
)

// DefaultSourceURL is the automatic gauge station table of the Slovenian Environment Agency
const DefaultSourceURL = "https://www.arso.gov.si/vode/podatki/stanje_voda_samodejne.html"

// ScraperOptions configures a WaterScraper
type ScraperOptions struct {
	URL     string
	River   string   // Only rows for this river are kept
	Exclude []string // Locations dropped by policy
	Timeout time.Duration
	Logger  *slog.Logger
}

// WaterScraper fetches gauge readings from the upstream HTML table
type WaterScraper struct {
	sourceURL string
	river     string
	exclude   map[string]struct{}
	client    *http.Client
	logger    *slog.Logger
}

// NewWaterScraper creates a new water data scraper
func NewWaterScraper(opts ScraperOptions) *WaterScraper {
	if opts.URL == "" {
		opts.URL = DefaultSourceURL
	}
	if opts.River == "" {
		opts.River = "Savinja"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, loc := range opts.Exclude {
		exclude[strings.ToLower(strings.TrimSpace(loc))] = struct{}{}
	}

	return &WaterScraper{
		sourceURL: opts.URL,
		river:     opts.River,
		exclude:   exclude,
		client:    &http.Client{Timeout: opts.Timeout},
		logger:    opts.Logger,
	}
}

// FetchReadings retrieves the current readings for the configured river
func (ws *WaterScraper) FetchReadings(ctx context.Context) ([]entities.StationReading, error) {
	ws.logger.Debug("sending request to water monitoring website", "url", ws.sourceURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ws.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", entities.ErrFetch, err)
	}
	req.Header.Set("User-Agent", "waterwatch/1.0")

	res, err := ws.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch the webpage: %w", entities.ErrFetch, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d %s", entities.ErrFetch, res.StatusCode, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse the webpage: %v", entities.ErrFetch, err)
	}

	return ws.ExtractReadings(doc)
}

// ExtractReadings walks the station table of a parsed page
func (ws *WaterScraper) ExtractReadings(doc *goquery.Document) ([]entities.StationReading, error) {
	table := doc.Find("table.online").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: station table not found", entities.ErrFetch)
	}

	var data []entities.StationReading
	rowCount, skipped := 0, 0

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		// Header rows
		if row.Find("th").Length() > 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 6 {
			return
		}
		rowCount++

		river := strings.TrimSpace(cells.Eq(0).Text())
		if !strings.EqualFold(river, ws.river) {
			return
		}

		location := strings.TrimSpace(cells.Eq(1).Text())
		if _, excluded := ws.exclude[strings.ToLower(location)]; excluded {
			return
		}

		level, err := entities.ParseLevel(cells.Eq(2).Text())
		if err != nil {
			ws.logger.Warn("skipping station with unparsable level", "location", location, "error", err)
			skipped++
			return
		}

		data = append(data, entities.StationReading{
			River:        river,
			Location:     location,
			WaterLevelCm: level,
			FlowRate:     strings.TrimSpace(cells.Eq(3).Text()),
			Temperature:  strings.TrimSpace(cells.Eq(5).Text()),
		})
	})

	ws.logger.Info("parsed station table",
		"rows", rowCount,
		"readings", len(data),
		"skipped", skipped,
		"river", ws.river,
	)
	return data, nil
}
