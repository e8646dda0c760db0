// Package promexport exposes the collected stats as Prometheus metrics.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/getsentry/timestats/internal/timestats"
)

const namespace = "timestats"

var layerLabels = []string{"layer", "package"}

// Source provides the stats to expose.
type Source interface {
	Snapshot(maxLayers *uint32) (timestats.GlobalStats, bool)
}

// Collector takes a snapshot on every scrape. Nothing is reported while the
// stats aren't started.
type Collector struct {
	source Source

	totalFrames             *prometheus.Desc
	missedFrames            *prometheus.Desc
	clientCompositionFrames *prometheus.Desc
	displayOnTime           *prometheus.Desc
	layerFrames             *prometheus.Desc
	layerDroppedFrames      *prometheus.Desc
	layerAverageFPS         *prometheus.Desc
}

// NewCollector returns a collector reading from s.
func NewCollector(s Source) *Collector {
	return &Collector{
		source: s,
		totalFrames: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "total_frames"),
			"Frames composited since the stats started",
			nil, nil,
		),
		missedFrames: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "missed_frames"),
			"Frames that missed their deadline",
			nil, nil,
		),
		clientCompositionFrames: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "client_composition_frames"),
			"Frames composited on the client",
			nil, nil,
		),
		displayOnTime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "display_on_time_seconds"),
			"Time the display spent in normal power mode",
			nil, nil,
		),
		layerFrames: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "layer", "frames"),
			"Frames drained for a layer",
			layerLabels, nil,
		),
		layerDroppedFrames: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "layer", "dropped_frames"),
			"Frames removed before being presented",
			layerLabels, nil,
		),
		layerAverageFPS: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "layer", "average_fps"),
			"Frame rate derived from present to present intervals",
			layerLabels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalFrames
	ch <- c.missedFrames
	ch <- c.clientCompositionFrames
	ch <- c.displayOnTime
	ch <- c.layerFrames
	ch <- c.layerDroppedFrames
	ch <- c.layerAverageFPS
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats, ok := c.source.Snapshot(nil)
	if !ok {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.totalFrames, prometheus.CounterValue, float64(stats.TotalFrames))
	ch <- prometheus.MustNewConstMetric(c.missedFrames, prometheus.CounterValue, float64(stats.MissedFrames))
	ch <- prometheus.MustNewConstMetric(c.clientCompositionFrames, prometheus.CounterValue, float64(stats.ClientCompositionFrames))
	ch <- prometheus.MustNewConstMetric(c.displayOnTime, prometheus.CounterValue, float64(stats.DisplayOnTimeMS)/1000)
	for _, ls := range stats.Layers {
		ch <- prometheus.MustNewConstMetric(c.layerFrames, prometheus.CounterValue, float64(ls.TotalFrames), ls.LayerName, ls.PackageName)
		ch <- prometheus.MustNewConstMetric(c.layerDroppedFrames, prometheus.CounterValue, float64(ls.DroppedFrames), ls.LayerName, ls.PackageName)
		ch <- prometheus.MustNewConstMetric(c.layerAverageFPS, prometheus.GaugeValue, ls.AverageFPS(), ls.LayerName, ls.PackageName)
	}
}
