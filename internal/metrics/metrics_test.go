package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteTextfile(t *testing.T) {
	RecordsLoaded.Set(3)
	TilesTotal.WithLabelValues("network").Add(2)
	ObserveStage("load", time.Now().Add(-time.Second))

	path := filepath.Join(t.TempDir(), "chargermap.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		"chargermap_records_loaded 3",
		`chargermap_basemap_tiles_total{source="network"}`,
		`chargermap_stage_duration_seconds{stage="load"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}

	if strings.Contains(out, "go_goroutines") {
		t.Error("default collectors leaked into the registry")
	}
}
