package integration_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/waterwatch/internal/entities"
	"github.com/abelzeko/waterwatch/internal/integration"
)

const stationPage = `
<!DOCTYPE html>
<html>
<head><title>Stanje voda</title></head>
<body>
<table class="online">
  <tr><th>Reka</th><th>Merilno mesto</th><th>Vodostaj</th><th>Pretok</th><th>Znacilni pretok</th><th>Temp</th></tr>
  <tr><td>Sava</td><td>Litija</td><td>155</td><td>80,1</td><td></td><td>12,0</td></tr>
  <tr><td>Savinja</td><td>Solčava I</td><td>61</td><td>2,3</td><td></td><td>8,1</td></tr>
  <tr><td>Savinja</td><td>Nazarje</td><td>abc</td><td>12,0</td><td></td><td>9,4</td></tr>
  <tr><td>Savinja</td><td>Celje</td><td>260</td><td>140,2</td><td>veliki</td><td>10,5</td></tr>
  <tr><td>Savinja</td><td>Veliko Širje I</td><td>1,234</td><td>610,0</td><td>visoki</td><td>11,0</td></tr>
  <tr><td>Savinja</td><td>Veliko Širje II</td><td>400</td><td></td><td></td><td></td></tr>
  <tr><td>Savinja</td><td>short row</td></tr>
</table>
</body>
</html>`

// mockHTMLServer creates a test server that serves a fixed HTML response
func mockHTMLServer(status int, html string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		io.WriteString(w, html)
	}))
}

func newScraper(url string) *integration.WaterScraper {
	return integration.NewWaterScraper(integration.ScraperOptions{
		URL:     url,
		River:   "Savinja",
		Exclude: []string{"Veliko Širje II"},
		Timeout: 2 * time.Second,
	})
}

func TestFetchReadings_FiltersAndNormalizes(t *testing.T) {
	server := mockHTMLServer(http.StatusOK, stationPage)
	defer server.Close()

	data, err := newScraper(server.URL).FetchReadings(context.Background())
	require.NoError(t, err)

	// Nazarje has an unparsable level and is skipped, Veliko Širje II is excluded
	require.Len(t, data, 3)
	assert.Equal(t, entities.StationReading{
		River:        "Savinja",
		Location:     "Solčava I",
		WaterLevelCm: 61,
		FlowRate:     "2,3",
		Temperature:  "8,1",
	}, data[0])
	assert.Equal(t, "Celje", data[1].Location)
	assert.Equal(t, 260, data[1].WaterLevelCm)
	assert.Equal(t, "Veliko Širje I", data[2].Location)
	assert.Equal(t, 1234, data[2].WaterLevelCm)
}

func TestFetchReadings_BadStatus(t *testing.T) {
	server := mockHTMLServer(http.StatusServiceUnavailable, "down")
	defer server.Close()

	_, err := newScraper(server.URL).FetchReadings(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrFetch)
	assert.Contains(t, err.Error(), "503")
}

func TestFetchReadings_MissingTable(t *testing.T) {
	server := mockHTMLServer(http.StatusOK, "<html><body><p>maintenance</p></body></html>")
	defer server.Close()

	_, err := newScraper(server.URL).FetchReadings(context.Background())
	assert.ErrorIs(t, err, entities.ErrFetch)
}

func TestFetchReadings_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newScraper(server.URL).FetchReadings(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrFetch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestFetchReadings_Live hits the real website
func TestFetchReadings_Live(t *testing.T) {
	if testing.Short() || os.Getenv("CI") == "true" {
		t.Skip("Skipping network test")
	}

	data, err := integration.NewWaterScraper(integration.ScraperOptions{}).FetchReadings(context.Background())
	if err != nil {
		t.Logf("Warning: Failed to fetch water data: %v", err)
		t.Skip("Skipping test due to network issues - this is not a code bug")
	}

	for i, entry := range data {
		if i >= 3 {
			break
		}
		t.Logf("Entry %d: Location=%s, WaterLevel=%d", i, entry.Location, entry.WaterLevelCm)
	}
}
