package main

import (
	"context"
	"crypto/tls"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/chargermap/internal/config"
	"github.com/woozymasta/chargermap/internal/logger"
	"github.com/woozymasta/chargermap/internal/pipeline"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Options are the command line flags. Values left unset fall back to the
// configuration file and then to the built-in defaults.
type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"       env:"CONFIG_FILE"             description:"Path to YAML configuration file"`
	Input       string `short:"i" long:"input"        env:"CHARGERMAP_INPUT"        description:"Charger data file, JSON array or .xlsx (default: new_chargers.json)"`
	Output      string `short:"o" long:"output"       env:"CHARGERMAP_OUTPUT"       description:"Output image, .png .jpg or .webp (default: new_chargers_map.png)"`
	GeoJSON     string `short:"g" long:"geojson"      env:"CHARGERMAP_GEOJSON"      description:"Also export the rendered chargers as GeoJSON"`
	MetricsFile string `short:"m" long:"metrics-file" env:"CHARGERMAP_METRICS_FILE" description:"Write run metrics for the node_exporter textfile collector"`
	Show        bool   `short:"s" long:"show"                                       description:"Open the image in the system viewer"`

	Map struct {
		Title       string  `short:"t" long:"title"        description:"Map title"`
		Padding     float64 `short:"p" long:"padding"      description:"Padding around the chargers in meters (default: 50000)"`
		Width       float64 `long:"width"                  description:"Figure width in inches (default: 10)"`
		Height      float64 `long:"height"                 description:"Figure height in inches (default: 8)"`
		DPI         int     `long:"dpi"                    description:"Output resolution (default: 200)"`
		MarkerColor string  `long:"marker-color"           description:"Marker color, #rrggbb or name (default: #ff0000)"`
		MarkerSize  int     `long:"marker-size"            description:"Marker diameter in pixels (default: 18)"`
	} `group:"Map options"`

	Basemap struct {
		URL         string        `long:"tile-url"    env:"CHARGERMAP_TILE_URL"   description:"Tile URL template with {z} {x} {y} and optional {s} {tms_y}"`
		Attribution string        `long:"attribution"                             description:"Basemap attribution text"`
		UserAgent   string        `long:"user-agent"  env:"CHARGERMAP_USER_AGENT" description:"User-Agent for tile requests"`
		CacheDir    string        `long:"cache-dir"   env:"CHARGERMAP_CACHE_DIR"  description:"Directory for cached tiles"`
		Background  string        `long:"background"                              description:"Canvas color under and without the basemap (default: #ffffff)"`
		Zoom        int           `short:"z" long:"zoom"                          description:"Fixed basemap zoom, 0 chooses automatically"`
		MaxZoom     int           `long:"max-zoom"                                description:"Highest zoom chosen automatically (default: 19)"`
		MaxTiles    int           `long:"max-tiles"                               description:"Most tiles fetched for one map (default: 256)"`
		Retries     int           `long:"retries"                                 description:"Attempts per tile (default: 3)"`
		Backoff     time.Duration `long:"backoff"                                 description:"Delay added before each retry (default: 500ms)"`
		Timeout     time.Duration `long:"timeout"                                 description:"Timeout per tile request (default: 15s)"`
		Concurrency int           `long:"concurrency"                             description:"Parallel tile downloads (default: 4)"`
		Offline     bool          `long:"offline"                                 description:"Render without basemap"`
	} `group:"Basemap options"`

	Filter struct {
		Start      string `long:"start"      description:"Keep chargers created on or after YYYY-MM-DD"`
		End        string `long:"end"        description:"Keep chargers created on or before YYYY-MM-DD"`
		Duplicates string `long:"duplicates" description:"Duplicate chargers to keep" choice:"include" choice:"earliest" choice:"latest"`
	} `group:"Filter options"`

	Upload struct {
		Bucket string `long:"upload-bucket" env:"CHARGERMAP_UPLOAD_BUCKET" description:"Upload the image to this S3 bucket (MINIO_* env)"`
		Key    string `long:"upload-key"    env:"CHARGERMAP_UPLOAD_KEY"    description:"Object key, the output file name by default"`
		Region string `long:"upload-region" env:"CHARGERMAP_UPLOAD_REGION" description:"Bucket region"`
	} `group:"Upload options"`
}

func main() {
	// .env is optional, variables already set take precedence
	envErr := godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn().Err(envErr).Msg("Failed to load .env file")
	}

	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", opts.ConfigFile).Msg("Failed to load configuration")
		}
		cfg = loaded
	}
	opts.apply(parser, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(cfg.Basemap.Concurrency, 2),
		},
		Timeout: cfg.Basemap.Timeout,
	}

	log.Info().
		Str("input", cfg.Input).
		Str("output", cfg.Output).
		Bool("offline", cfg.Basemap.Offline).
		Msg("Starting chargermap")

	if _, err := pipeline.Run(ctx, cfg, client); err != nil {
		stop()
		log.Fatal().Err(err).Msg("Failed to render charger map")
	}
}

// apply copies the options given on the command line into cfg.
// Environment values apply only when no configuration file is used.
func (o *Options) apply(parser *flags.Parser, cfg *config.Config) {
	set := func(name string) bool {
		opt := parser.FindOptionByLongName(name)
		if opt == nil {
			return false
		}
		// env values also mark an option as set, together with IsSetDefault
		if opt.IsSet() && !opt.IsSetDefault() {
			return true
		}
		if o.ConfigFile != "" {
			return false
		}
		if key := opt.EnvKeyWithNamespace(); key != "" {
			_, ok := os.LookupEnv(key)
			return ok
		}

		return false
	}

	if set("input") {
		cfg.Input = o.Input
	}
	if set("output") {
		cfg.Output = o.Output
	}
	if set("geojson") {
		cfg.GeoJSON = o.GeoJSON
	}
	if set("metrics-file") {
		cfg.MetricsFile = o.MetricsFile
	}
	if set("show") {
		cfg.Show = o.Show
	}

	if set("title") {
		cfg.Title = o.Map.Title
	}
	if set("padding") {
		cfg.Padding = o.Map.Padding
	}
	if set("width") {
		cfg.Width = o.Map.Width
	}
	if set("height") {
		cfg.Height = o.Map.Height
	}
	if set("dpi") {
		cfg.DPI = o.Map.DPI
	}
	if set("marker-color") {
		cfg.Marker.Color = o.Map.MarkerColor
	}
	if set("marker-size") {
		cfg.Marker.Size = o.Map.MarkerSize
	}

	if set("tile-url") {
		cfg.Basemap.URL = o.Basemap.URL
	}
	if set("attribution") {
		cfg.Basemap.Attribution = o.Basemap.Attribution
	}
	if set("user-agent") {
		cfg.Basemap.UserAgent = o.Basemap.UserAgent
	}
	if set("cache-dir") {
		cfg.Basemap.CacheDir = o.Basemap.CacheDir
	}
	if set("background") {
		cfg.Basemap.Background = o.Basemap.Background
	}
	if set("zoom") {
		cfg.Basemap.Zoom = o.Basemap.Zoom
	}
	if set("max-zoom") {
		cfg.Basemap.MaxZoom = o.Basemap.MaxZoom
	}
	if set("max-tiles") {
		cfg.Basemap.MaxTiles = o.Basemap.MaxTiles
	}
	if set("retries") {
		cfg.Basemap.Retries = o.Basemap.Retries
	}
	if set("backoff") {
		cfg.Basemap.Backoff = o.Basemap.Backoff
	}
	if set("timeout") {
		cfg.Basemap.Timeout = o.Basemap.Timeout
	}
	if set("concurrency") {
		cfg.Basemap.Concurrency = o.Basemap.Concurrency
	}
	if set("offline") {
		cfg.Basemap.Offline = o.Basemap.Offline
	}

	if set("start") {
		cfg.Filter.Start = o.Filter.Start
	}
	if set("end") {
		cfg.Filter.End = o.Filter.End
	}
	if set("duplicates") {
		cfg.Filter.Duplicates = o.Filter.Duplicates
	}

	if set("upload-bucket") {
		cfg.Upload.Bucket = o.Upload.Bucket
	}
	if set("upload-key") {
		cfg.Upload.Key = o.Upload.Key
	}
	if set("upload-region") {
		cfg.Upload.Region = o.Upload.Region
	}
}
