// Package pipeline runs one map rendering from input file to output image.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/woozymasta/chargermap/internal/charger"
	"github.com/woozymasta/chargermap/internal/config"
	"github.com/woozymasta/chargermap/internal/geo"
	"github.com/woozymasta/chargermap/internal/metrics"
	"github.com/woozymasta/chargermap/internal/output"
	"github.com/woozymasta/chargermap/internal/render"
	"github.com/woozymasta/chargermap/internal/tiles"

	"github.com/rs/zerolog/log"
)

// Report summarizes a finished run.
type Report struct {
	Output   string
	Loaded   int
	Rendered int
	Zoom     int // -1 when rendered offline
	Tiles    int
	Duration time.Duration
}

// Run executes every stage with cfg. The client is used for basemap tiles
// and may be nil in offline mode.
func Run(ctx context.Context, cfg *config.Config, client *http.Client) (report *Report, err error) {
	start := time.Now()
	metrics.LastRunSuccess.Set(0)

	if cfg.MetricsFile != "" {
		defer func() {
			metrics.LastRunTimestamp.Set(float64(time.Now().Unix()))
			if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
				log.Warn().Err(werr).Str("path", cfg.MetricsFile).Msg("Failed to write metrics")
			}
		}()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	records, err := load(cfg)
	if err != nil {
		return nil, err
	}

	report = &Report{Output: cfg.Output, Loaded: len(records)}

	records, err = filter(cfg, records)
	if err != nil {
		return nil, err
	}
	report.Rendered = len(records)
	metrics.RecordsRendered.Set(float64(len(records)))

	stage := time.Now()
	points, err := records.Project()
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("project", stage)

	res, err := renderMap(ctx, cfg, client, points)
	if err != nil {
		return nil, err
	}
	report.Zoom, report.Tiles = res.Zoom, res.Tiles

	stage = time.Now()
	if err := output.Write(cfg.Output, res.Image, cfg.DPI); err != nil {
		return nil, err
	}
	metrics.ObserveStage("write", stage)

	if cfg.GeoJSON != "" {
		if err := output.ExportGeoJSON(cfg.GeoJSON, records); err != nil {
			return nil, err
		}
	}

	if cfg.Upload.Bucket != "" {
		uploader, err := output.NewUploaderFromEnv(cfg.Upload.Bucket, cfg.Upload.Region)
		if err != nil {
			return nil, err
		}
		if err := uploader.Upload(ctx, cfg.Output, cfg.Upload.Key); err != nil {
			return nil, err
		}
	}

	if cfg.Show {
		if err := output.Show(cfg.Output); err != nil {
			log.Warn().Err(err).Str("path", cfg.Output).Msg("Failed to open image viewer")
		}
	}

	report.Duration = time.Since(start)
	metrics.LastRunSuccess.Set(1)

	log.Info().
		Str("output", report.Output).
		Int("records", report.Rendered).
		Dur("duration", report.Duration).
		Msg("Map rendered")

	return report, nil
}

// load reads and validates the input file.
func load(cfg *config.Config) (charger.Collection, error) {
	start := time.Now()

	records, err := charger.Load(cfg.Input)
	if err != nil {
		return nil, err
	}
	metrics.RecordsLoaded.Set(float64(len(records)))

	if err := charger.Validate(records); err != nil {
		return nil, err
	}

	metrics.ObserveStage("load", start)
	log.Info().
		Str("path", cfg.Input).
		Int("records", len(records)).
		Msg("Chargers loaded")

	return records, nil
}

// filter applies the optional duplicate handling and then the date range.
func filter(cfg *config.Config, records charger.Collection) (charger.Collection, error) {
	mode, err := charger.ParseDuplicateMode(cfg.Filter.Duplicates)
	if err != nil {
		return nil, err
	}

	before := len(records)

	// representatives are chosen among all records, the date range applies to them afterwards
	if mode != charger.KeepAll {
		records = charger.Dedupe(charger.GroupDuplicates(records), mode)
	}

	records, err = charger.FilterByDate(records, cfg.Filter.Start, cfg.Filter.End)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no records left after filtering: %w", charger.ErrEmptyDataset)
	}

	if len(records) != before {
		log.Info().
			Int("before", before).
			Int("after", len(records)).
			Str("start", cfg.Filter.Start).
			Str("end", cfg.Filter.End).
			Str("duplicates", string(mode)).
			Msg("Chargers filtered")
	}

	return records, nil
}

// renderMap renders the projected points, with a basemap unless offline.
func renderMap(ctx context.Context, cfg *config.Config, client *http.Client, points []geo.Point) (*render.Result, error) {
	start := time.Now()

	markerColor, err := config.ParseColor(cfg.Marker.Color)
	if err != nil {
		return nil, err
	}
	background, err := config.ParseColor(cfg.Basemap.Background)
	if err != nil {
		return nil, err
	}

	w, h := cfg.PixelSize()
	opts := render.Options{
		MarkerColor: markerColor,
		Background:  background,
		Title:       cfg.Title,
		Attribution: cfg.Basemap.Attribution,
		Padding:     cfg.Padding,
		Width:       w,
		Height:      h,
		MarkerSize:  cfg.Marker.Size,
		Zoom:        cfg.Basemap.Zoom,
		MaxZoom:     cfg.Basemap.MaxZoom,
		MaxTiles:    cfg.Basemap.MaxTiles,
	}

	var src render.TileSource
	if !cfg.Basemap.Offline {
		src = tiles.NewFetcher(client, tiles.Options{
			URLTemplate: cfg.Basemap.URL,
			UserAgent:   cfg.Basemap.UserAgent,
			CacheDir:    cfg.Basemap.CacheDir,
			Timeout:     cfg.Basemap.Timeout,
			Backoff:     cfg.Basemap.Backoff,
			Retries:     cfg.Basemap.Retries,
			Concurrency: cfg.Basemap.Concurrency,
		})
	}

	res, err := render.Render(ctx, points, opts, src)
	if err != nil {
		return nil, err
	}

	metrics.ObserveStage("render", start)
	log.Debug().
		Int("width", w).
		Int("height", h).
		Float64("window_width_m", res.Window.Width()).
		Float64("window_height_m", res.Window.Height()).
		Bool("offline", src == nil).
		Msg("Canvas drawn")

	return res, nil
}
