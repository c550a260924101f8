package main

import (
	"testing"
	"time"

	"github.com/woozymasta/chargermap/internal/config"

	"github.com/jessevdk/go-flags"
)

func parse(t *testing.T, args ...string) (*Options, *flags.Parser) {
	t.Helper()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default&^flags.PrintErrors)
	if _, err := parser.ParseArgs(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}

	return &opts, parser
}

func TestApplyKeepsDefaults(t *testing.T) {
	t.Setenv("CHARGERMAP_OUTPUT", "")
	opts, parser := parse(t, "--config", "map.yaml")

	cfg := config.Default()
	cfg.Title = "from file"
	opts.apply(parser, cfg)

	if cfg.Title != "from file" || cfg.Padding != config.DefaultPadding || cfg.DPI != config.DefaultDPI {
		t.Errorf("unset flags changed config: %+v", cfg)
	}
	if cfg.Output != config.DefaultOutput {
		t.Errorf("environment overrode config file: output = %q", cfg.Output)
	}
}

func TestApplyFlagsOverride(t *testing.T) {
	opts, parser := parse(t,
		"-i", "in.xlsx",
		"--padding", "0",
		"--dpi", "100",
		"--offline",
		"--timeout", "3s",
		"--duplicates", "earliest",
		"--show",
		"--backoff", "250ms",
		"--background", "#eeeeee",
		"--max-tiles", "64",
	)

	cfg := config.Default()
	opts.apply(parser, cfg)

	if cfg.Input != "in.xlsx" || cfg.Padding != 0 || cfg.DPI != 100 {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if !cfg.Basemap.Offline || !cfg.Show || cfg.Basemap.Timeout != 3*time.Second || cfg.Filter.Duplicates != "earliest" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Basemap.Backoff != 250*time.Millisecond || cfg.Basemap.Background != "#eeeeee" || cfg.Basemap.MaxTiles != 64 {
		t.Errorf("basemap flags not applied: %+v", cfg.Basemap)
	}
	if cfg.Output != config.DefaultOutput {
		t.Errorf("output = %q", cfg.Output)
	}
}

func TestApplyConfigFileBeatsEnvironment(t *testing.T) {
	t.Setenv("CHARGERMAP_OUTPUT", "from_env.png")
	t.Setenv("CHARGERMAP_TILE_URL", "https://env.example.com/{z}/{x}/{y}.png")

	opts, parser := parse(t, "--config", "map.yaml", "--tile-url", "https://flag.example.com/{z}/{x}/{y}.png")

	cfg := config.Default()
	cfg.Output = "from_file.png"
	opts.apply(parser, cfg)

	if cfg.Output != "from_file.png" {
		t.Errorf("output = %q, want the config file value", cfg.Output)
	}
	if cfg.Basemap.URL != "https://flag.example.com/{z}/{x}/{y}.png" {
		t.Errorf("tile url = %q, want the flag value", cfg.Basemap.URL)
	}
}

func TestApplyEnvironmentWithoutConfigFile(t *testing.T) {
	t.Setenv("CHARGERMAP_TILE_URL", "https://tiles.example.com/{z}/{x}/{y}.png")

	opts, parser := parse(t)
	cfg := config.Default()
	opts.apply(parser, cfg)

	if cfg.Basemap.URL != "https://tiles.example.com/{z}/{x}/{y}.png" {
		t.Errorf("tile url = %q", cfg.Basemap.URL)
	}
}
