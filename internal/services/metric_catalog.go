package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harvesttable/growth-backend/internal/logger"
)

// MetricDef describes one supported outcome metric. The catalog is the
// closed set of metric keys an experiment may target.
type MetricDef struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
	Unit  string `yaml:"unit"`
}

type MetricCatalog interface {
	IsSupported(key string) bool
	Get(key string) (MetricDef, bool)
	Keys() []string
}

type metricCatalog struct {
	defs map[string]MetricDef
}

// Built-in metrics for the booking marketplace surfaces.
func defaultMetricDefs() []MetricDef {
	return []MetricDef{
		{Key: "revenue_cents", Label: "Booking revenue", Unit: "cents"},
		{Key: "booking_conversion", Label: "Booking conversion", Unit: "ratio"},
		{Key: "quote_acceptance", Label: "Quote acceptance", Unit: "ratio"},
		{Key: "completion_rate", Label: "Booking completion", Unit: "ratio"},
		{Key: "rating", Label: "Post-booking rating", Unit: "stars"},
		{Key: "cancellation", Label: "Cancellation", Unit: "ratio"},
	}
}

// NewMetricCatalog loads the metric catalog. When METRIC_CATALOG_PATH points
// at a YAML file its entries extend (and may relabel) the built-in set;
// otherwise the built-ins are used as-is.
func NewMetricCatalog(log *logger.Logger) (MetricCatalog, error) {
	catalogLog := log.With("service", "MetricCatalog")
	defs := map[string]MetricDef{}
	for _, d := range defaultMetricDefs() {
		defs[d.Key] = d
	}

	path := strings.TrimSpace(os.Getenv("METRIC_CATALOG_PATH"))
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read metric catalog %s: %w", path, err)
		}
		var file struct {
			Metrics []MetricDef `yaml:"metrics"`
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse metric catalog %s: %w", path, err)
		}
		for _, d := range file.Metrics {
			key := strings.TrimSpace(d.Key)
			if key == "" {
				continue
			}
			d.Key = key
			defs[key] = d
		}
		catalogLog.Info("Loaded metric catalog file", "path", path, "metrics", len(file.Metrics))
	}

	catalogLog.Debug("Metric catalog ready", "keys", len(defs))
	return &metricCatalog{defs: defs}, nil
}

func (c *metricCatalog) IsSupported(key string) bool {
	_, ok := c.defs[key]
	return ok
}

func (c *metricCatalog) Get(key string) (MetricDef, bool) {
	d, ok := c.defs[key]
	return d, ok
}

func (c *metricCatalog) Keys() []string {
	out := make([]string, 0, len(c.defs))
	for k := range c.defs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
