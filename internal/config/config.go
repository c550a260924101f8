// Package config handles configuration loading and the documented defaults.
package config

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Reference defaults.
const (
	DefaultInput       = "new_chargers.json"
	DefaultOutput      = "new_chargers_map.png"
	DefaultPadding     = 50000.0
	DefaultDPI         = 200
	DefaultTitle       = "New Fast Chargers (OpenChargeMap)"
	DefaultTileURL     = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultAttribution = "(C) OpenStreetMap contributors"
	DefaultUserAgent   = "chargermap/1.0 (+https://github.com/woozymasta/chargermap)"
)

// Config represents the root configuration file structure.
type Config struct {
	Input       string  `yaml:"input"`
	Output      string  `yaml:"output"`
	GeoJSON     string  `yaml:"geojson,omitempty"`
	MetricsFile string  `yaml:"metrics_file,omitempty"`
	Title       string  `yaml:"title"`
	Padding     float64 `yaml:"padding"` // meters on each side of the data extent
	Width       float64 `yaml:"width"`   // inches
	Height      float64 `yaml:"height"`  // inches
	DPI         int     `yaml:"dpi"`
	Show        bool    `yaml:"show,omitempty"`

	Marker  Marker  `yaml:"marker"`
	Basemap Basemap `yaml:"basemap"`
	Filter  Filter  `yaml:"filter,omitempty"`
	Upload  Upload  `yaml:"upload,omitempty"`
}

// Marker describes how charger points are drawn.
type Marker struct {
	Color string `yaml:"color"`
	Size  int    `yaml:"size"` // diameter in pixels
}

// Basemap describes the tile source and the fetch policy.
type Basemap struct {
	URL         string        `yaml:"url"`
	Attribution string        `yaml:"attribution"`
	UserAgent   string        `yaml:"user_agent"`
	CacheDir    string        `yaml:"cache_dir,omitempty"`
	Background  string        `yaml:"background"`
	Timeout     time.Duration `yaml:"timeout"`
	Backoff     time.Duration `yaml:"backoff"`
	Zoom        int           `yaml:"zoom,omitempty"` // 0 selects zoom automatically
	MaxZoom     int           `yaml:"max_zoom"`
	MaxTiles    int           `yaml:"max_tiles"` // tiles fetched per map at most
	Retries     int           `yaml:"retries"`
	Concurrency int           `yaml:"concurrency"`
	Offline     bool          `yaml:"offline,omitempty"`
}

// Filter holds optional record selection rules.
type Filter struct {
	Start      string `yaml:"start,omitempty"` // YYYY-MM-DD
	End        string `yaml:"end,omitempty"`   // YYYY-MM-DD
	Duplicates string `yaml:"duplicates,omitempty"`
}

// Upload holds the optional S3 destination of the rendered image.
type Upload struct {
	Bucket string `yaml:"bucket,omitempty"`
	Key    string `yaml:"key,omitempty"`
	Region string `yaml:"region,omitempty"`
}

// Default returns the configuration reproducing the reference rendering.
func Default() *Config {
	return &Config{
		Input:   DefaultInput,
		Output:  DefaultOutput,
		Title:   DefaultTitle,
		Padding: DefaultPadding,
		Width:   10,
		Height:  8,
		DPI:     DefaultDPI,
		Marker: Marker{
			Color: "#ff0000",
			Size:  18,
		},
		Basemap: Basemap{
			URL:         DefaultTileURL,
			Attribution: DefaultAttribution,
			UserAgent:   DefaultUserAgent,
			Background:  "#ffffff",
			Timeout:     15 * time.Second,
			Backoff:     500 * time.Millisecond,
			MaxZoom:     19,
			MaxTiles:    256,
			Retries:     3,
			Concurrency: 4,
		},
		Filter: Filter{Duplicates: "include"},
	}
}

// Load reads and parses the YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	switch {
	case c.Input == "":
		return fmt.Errorf("input path is empty")
	case c.Output == "":
		return fmt.Errorf("output path is empty")
	case c.Padding < 0:
		return fmt.Errorf("padding must be >= 0, got %g", c.Padding)
	case c.DPI <= 0:
		return fmt.Errorf("dpi must be > 0, got %d", c.DPI)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("figure size must be positive, got %gx%g", c.Width, c.Height)
	case c.Marker.Size <= 0:
		return fmt.Errorf("marker size must be > 0, got %d", c.Marker.Size)
	case c.Basemap.MaxZoom < 0 || c.Basemap.MaxZoom > 24:
		return fmt.Errorf("max zoom must be in [0, 24], got %d", c.Basemap.MaxZoom)
	case c.Basemap.Zoom < 0 || c.Basemap.Zoom > 24:
		return fmt.Errorf("zoom must be in [0, 24], got %d", c.Basemap.Zoom)
	case c.Basemap.MaxTiles <= 0:
		return fmt.Errorf("max tiles must be > 0, got %d", c.Basemap.MaxTiles)
	}

	if _, err := ParseColor(c.Marker.Color); err != nil {
		return fmt.Errorf("marker color: %w", err)
	}
	if _, err := ParseColor(c.Basemap.Background); err != nil {
		return fmt.Errorf("background color: %w", err)
	}
	if !c.Basemap.Offline && !strings.Contains(c.Basemap.URL, "{z}") {
		return fmt.Errorf("basemap url %q has no {z} placeholder", c.Basemap.URL)
	}

	return nil
}

// PixelSize returns the canvas size in pixels.
func (c *Config) PixelSize() (w, h int) {
	return int(c.Width * float64(c.DPI)), int(c.Height * float64(c.DPI))
}

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa" and a few named colors.
func ParseColor(s string) (color.NRGBA, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return color.NRGBA{R: 0xff, A: 0xff}, nil
	case "blue":
		return color.NRGBA{B: 0xff, A: 0xff}, nil
	case "green":
		return color.NRGBA{G: 0x80, A: 0xff}, nil
	case "black":
		return color.NRGBA{A: 0xff}, nil
	case "white":
		return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, nil
	}

	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}

	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
