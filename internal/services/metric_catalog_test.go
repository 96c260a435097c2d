package services

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestMetricCatalogDefaults(t *testing.T) {
	catalog, err := NewMetricCatalog(newTestLogger())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	for _, key := range []string{"revenue_cents", "booking_conversion", "rating", "cancellation"} {
		if !catalog.IsSupported(key) {
			t.Fatalf("built-in metric %q not supported", key)
		}
	}
	if catalog.IsSupported("made_up") {
		t.Fatal("unknown metric reported as supported")
	}
	keys := catalog.Keys()
	if !sort.StringsAreSorted(keys) {
		t.Fatalf("keys not sorted: %v", keys)
	}
}

func TestMetricCatalogFileExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	content := `metrics:
  - key: waitlist_joins
    label: Waitlist joins
    unit: count
  - key: revenue_cents
    label: Revenue (relabeled)
    unit: cents
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	t.Setenv("METRIC_CATALOG_PATH", path)

	catalog, err := NewMetricCatalog(newTestLogger())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if !catalog.IsSupported("waitlist_joins") {
		t.Fatal("file-declared metric not supported")
	}
	def, ok := catalog.Get("revenue_cents")
	if !ok || def.Label != "Revenue (relabeled)" {
		t.Fatalf("file entry did not override built-in: %+v", def)
	}
}

func TestMetricCatalogBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	if err := os.WriteFile(path, []byte("metrics: [not: valid: yaml"), 0o600); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	t.Setenv("METRIC_CATALOG_PATH", path)

	if _, err := NewMetricCatalog(newTestLogger()); err == nil {
		t.Fatal("unparseable catalog file must fail loading")
	}
}
