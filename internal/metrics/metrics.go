// Package metrics collects run statistics and writes them for the node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every chargermap metric, without the default process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	RecordsLoaded = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "chargermap",
		Name:      "records_loaded",
		Help:      "Charger records read from the input file",
	})

	RecordsRendered = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "chargermap",
		Name:      "records_rendered",
		Help:      "Charger records drawn after filtering",
	})

	TilesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chargermap",
		Subsystem: "basemap",
		Name:      "tiles_total",
		Help:      "Basemap tiles by source (network, cache, missing)",
	}, []string{"source"})

	TileRetries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "chargermap",
		Subsystem: "basemap",
		Name:      "tile_retries_total",
		Help:      "Tile download retries",
	})

	TileErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "chargermap",
		Subsystem: "basemap",
		Name:      "tile_errors_total",
		Help:      "Tiles that failed after all retries",
	})

	TileRequestDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chargermap",
		Subsystem: "basemap",
		Name:      "request_duration_seconds",
		Help:      "Tile HTTP request latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	})

	StageDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chargermap",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage in the last run",
	}, []string{"stage"})

	LastRunSuccess = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "chargermap",
		Name:      "last_run_success",
		Help:      "1 if the last run produced an image",
	})

	LastRunTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "chargermap",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})
)

// ObserveStage records the time elapsed since start for a pipeline stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Set(time.Since(start).Seconds())
}

// WriteTextfile writes all metrics in the Prometheus text format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
