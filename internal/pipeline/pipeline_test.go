package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woozymasta/chargermap/internal/charger"
	"github.com/woozymasta/chargermap/internal/config"
	"github.com/woozymasta/chargermap/internal/tiles"
)

const sample = `[
  {"ID": 1, "Longitude": -116.5765, "Latitude": 53.9333, "DateCreated": "2024-03-01T10:00:00Z", "AddressInfo": {"Title": "Edson"}},
  {"ID": 2, "AddressInfo": {"Title": "Calgary", "Longitude": -114.0719, "Latitude": 51.0447}, "DateCreated": "2024-05-10T08:30:00Z"},
  {"ID": 3, "Longitude": -116.57651, "Latitude": 53.93331, "DateCreated": "2024-06-01T00:00:00Z", "AddressInfo": {"Title": "Edson"}}
]`

func writeInput(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chargers.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func testConfig(t *testing.T, input string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Input = input
	cfg.Output = filepath.Join(t.TempDir(), "map.png")
	cfg.Width, cfg.Height, cfg.DPI = 2, 1.6, 100
	cfg.Marker.Size = 6
	cfg.Basemap.Offline = true

	return cfg
}

func decodeOutput(t *testing.T, path string) image.Image {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}

	return img
}

func TestRunOffline(t *testing.T) {
	cfg := testConfig(t, writeInput(t, sample))
	cfg.GeoJSON = filepath.Join(t.TempDir(), "chargers.geojson")
	cfg.MetricsFile = filepath.Join(t.TempDir(), "chargermap.prom")

	report, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Loaded != 3 || report.Rendered != 3 || report.Zoom != -1 || report.Tiles != 0 {
		t.Errorf("report = %+v", report)
	}

	img := decodeOutput(t, cfg.Output)
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 160 {
		t.Errorf("output size = %v", img.Bounds())
	}

	if info, err := os.Stat(cfg.GeoJSON); err != nil || info.Size() == 0 {
		t.Errorf("geojson not written: %v", err)
	}

	prom, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("metrics not written: %v", err)
	}
	for _, want := range []string{"chargermap_records_loaded 3", "chargermap_last_run_success 1"} {
		if !strings.Contains(string(prom), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestRunWithBasemap(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		tile := image.NewRGBA(image.Rect(0, 0, tiles.DefaultSize, tiles.DefaultSize))
		draw.Draw(tile, tile.Bounds(), image.NewUniform(color.RGBA{R: 0xaa, G: 0xd3, B: 0xdf, A: 0xff}), image.Point{}, draw.Src)

		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, tile)
	}))
	defer srv.Close()

	cfg := testConfig(t, writeInput(t, sample))
	cfg.Basemap.Offline = false
	cfg.Basemap.URL = srv.URL + "/{z}/{x}/{y}.png"
	cfg.Basemap.Backoff = time.Millisecond

	report, err := Run(context.Background(), cfg, srv.Client())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Zoom < 0 || report.Tiles == 0 || int(requests.Load()) != report.Tiles {
		t.Errorf("report = %+v, requests = %d", report, requests.Load())
	}

	img := decodeOutput(t, cfg.Output)
	if r, g, b, _ := img.At(2, img.Bounds().Dy()/2).RGBA(); r>>8 != 0xaa || g>>8 != 0xd3 || b>>8 != 0xdf {
		t.Errorf("basemap not drawn at left edge: %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestRunBasemapFailureLeavesNoOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t, writeInput(t, sample))
	cfg.Basemap.Offline = false
	cfg.Basemap.URL = srv.URL + "/{z}/{x}/{y}.png"
	cfg.Basemap.Backoff = time.Millisecond
	cfg.Basemap.Retries = 2

	_, err := Run(context.Background(), cfg, srv.Client())

	var bfe *tiles.BasemapFetchError
	if !errors.As(err, &bfe) {
		t.Fatalf("expected BasemapFetchError, got %v", err)
	}
	if _, err := os.Stat(cfg.Output); !os.IsNotExist(err) {
		t.Errorf("output exists after failed run: %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		setup func(cfg *config.Config)
		check func(err error) bool
	}{
		{
			name:  "empty dataset",
			input: `[]`,
			check: func(err error) bool { return errors.Is(err, charger.ErrEmptyDataset) },
		},
		{
			name:  "not an array",
			input: `{"Longitude": 1}`,
			check: func(err error) bool {
				var dfe *charger.DataFormatError
				return errors.As(err, &dfe)
			},
		},
		{
			name:  "missing coordinates",
			input: `[{"ID": 1, "Longitude": 1}]`,
			check: func(err error) bool {
				var mfe *charger.MissingFieldError
				return errors.As(err, &mfe) && mfe.Field == "Latitude"
			},
		},
		{
			name:  "filtered to nothing",
			input: sample,
			setup: func(cfg *config.Config) { cfg.Filter.Start = "2030-01-01" },
			check: func(err error) bool { return errors.Is(err, charger.ErrEmptyDataset) },
		},
		{
			name:  "invalid config",
			input: sample,
			setup: func(cfg *config.Config) { cfg.DPI = 0 },
			check: func(err error) bool { return err != nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, writeInput(t, tt.input))
			if tt.setup != nil {
				tt.setup(cfg)
			}

			_, err := Run(context.Background(), cfg, nil)
			if !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
			if _, serr := os.Stat(cfg.Output); !os.IsNotExist(serr) {
				t.Errorf("output written despite error")
			}
		})
	}
}

func TestRunDedupe(t *testing.T) {
	cfg := testConfig(t, writeInput(t, sample))
	cfg.Filter.Duplicates = "latest"

	report, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Loaded != 3 || report.Rendered != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunDuplicatesResolvedBeforeDateRange(t *testing.T) {
	input := `[
  {"ID": 1, "Longitude": -116.5765, "Latitude": 53.9333, "DateCreated": "2020-04-01T00:00:00Z", "AddressInfo": {"Title": "Edson"}},
  {"ID": 2, "Longitude": -116.5765, "Latitude": 53.9333, "DateCreated": "2024-04-01T00:00:00Z", "AddressInfo": {"Title": "Edson"}}
]`

	cfg := testConfig(t, writeInput(t, input))
	cfg.Filter.Duplicates = "earliest"
	cfg.Filter.Start = "2023-01-01"

	// the 2020 record represents the site and is outside the range
	if _, err := Run(context.Background(), cfg, nil); !errors.Is(err, charger.ErrEmptyDataset) {
		t.Fatalf("earliest: expected ErrEmptyDataset, got %v", err)
	}

	cfg = testConfig(t, writeInput(t, input))
	cfg.Filter.Duplicates = "latest"
	cfg.Filter.Start = "2023-01-01"

	report, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if report.Rendered != 1 {
		t.Errorf("latest: rendered %d, want 1", report.Rendered)
	}
}

func TestRunWithoutAnyBasemapTile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := testConfig(t, writeInput(t, sample))
	cfg.Basemap.Offline = false
	cfg.Basemap.URL = srv.URL + "/{z}/{x}/{y}.png"

	_, err := Run(context.Background(), cfg, srv.Client())

	var bfe *tiles.BasemapFetchError
	if !errors.As(err, &bfe) || !errors.Is(err, tiles.ErrTileNotFound) {
		t.Fatalf("expected BasemapFetchError wrapping ErrTileNotFound, got %v", err)
	}
	if _, err := os.Stat(cfg.Output); !os.IsNotExist(err) {
		t.Errorf("output exists after failed run: %v", err)
	}
}

func TestRunFixedZoomOverTileLimit(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := testConfig(t, writeInput(t, sample))
	cfg.Basemap.Offline = false
	cfg.Basemap.URL = srv.URL + "/{z}/{x}/{y}.png"
	cfg.Basemap.Zoom = 19

	_, err := Run(context.Background(), cfg, srv.Client())

	var tbe *tiles.TileBudgetError
	if !errors.As(err, &tbe) {
		t.Fatalf("expected TileBudgetError, got %v", err)
	}
	if requests.Load() != 0 {
		t.Errorf("%d tiles requested over the limit", requests.Load())
	}
}
