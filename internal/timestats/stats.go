package timestats

import (
	"sort"

	"github.com/getsentry/timestats/internal/histogram"
	"github.com/getsentry/timestats/internal/timeutil"
)

// Names of the latency distributions kept per layer.
const (
	Post2Acquire    = "post2acquire"
	Post2Present    = "post2present"
	Acquire2Present = "acquire2present"
	Latch2Present   = "latch2present"
	Desired2Present = "desired2present"
	Present2Present = "present2present"
)

// DeltaNames lists the distributions in the order they're reported.
var DeltaNames = []string{
	Post2Acquire,
	Post2Present,
	Acquire2Present,
	Latch2Present,
	Desired2Present,
	Present2Present,
}

type (
	// LayerStats aggregates the drained frames of a layer. It outlives the
	// layer itself until the stats are cleared.
	LayerStats struct {
		LayerName     string                          `json:"layer_name"`
		PackageName   string                          `json:"package_name"`
		TotalFrames   uint64                          `json:"total_frames"`
		DroppedFrames uint64                          `json:"dropped_frames"`
		Deltas        map[string]*histogram.Histogram `json:"deltas"`
	}

	// GlobalStats is a point in time view of the collected statistics.
	GlobalStats struct {
		StatsStart              timeutil.Time `json:"stats_start"`
		StatsEnd                timeutil.Time `json:"stats_end"`
		TotalFrames             uint64        `json:"total_frames"`
		MissedFrames            uint64        `json:"missed_frames"`
		ClientCompositionFrames uint64        `json:"client_composition_frames"`
		DisplayOnTimeMS         int64         `json:"display_on_time_ms"`
		Layers                  []LayerStats  `json:"layer_stats"`
	}

	// globalStats is the mutable state behind GlobalStats. Epochs are in
	// seconds, 0 meaning unset.
	globalStats struct {
		statsStart              int64
		statsEnd                int64
		totalFrames             uint64
		missedFrames            uint64
		clientCompositionFrames uint64
		displayOnTimeMS         int64
		stats                   map[string]*LayerStats
	}
)

func newLayerStats(layerName, packageName string) *LayerStats {
	deltas := make(map[string]*histogram.Histogram, len(DeltaNames))
	for _, name := range DeltaNames {
		deltas[name] = histogram.New()
	}
	return &LayerStats{
		LayerName:   layerName,
		PackageName: packageName,
		Deltas:      deltas,
	}
}

// AverageFPS derives the frame rate of the layer from its present to present
// distribution. It returns 0 if there isn't enough data.
func (ls LayerStats) AverageFPS() float64 {
	h, ok := ls.Deltas[Present2Present]
	if !ok || h.Weight() == 0 {
		return 0
	}
	sum := h.Sum()
	if sum <= 0 {
		return 0
	}
	return 1000 * float64(h.Weight()) / float64(sum)
}

func (ls *LayerStats) copy() LayerStats {
	c := *ls
	c.Deltas = make(map[string]*histogram.Histogram, len(ls.Deltas))
	for name, h := range ls.Deltas {
		c.Deltas[name] = h.Copy()
	}
	return c
}

func (gs *globalStats) reset(statsStart int64) {
	gs.stats = make(map[string]*LayerStats)
	gs.statsStart = statsStart
	gs.statsEnd = 0
	gs.totalFrames = 0
	gs.missedFrames = 0
	gs.clientCompositionFrames = 0
	gs.displayOnTimeMS = 0
}

// layerStats returns the stats of a layer, creating them if needed.
func (gs *globalStats) layerStats(layerName, packageName string) *LayerStats {
	ls, exists := gs.stats[layerName]
	if !exists {
		ls = newLayerStats(layerName, packageName)
		gs.stats[layerName] = ls
	}
	return ls
}

// snapshot deep copies the stats. Layers are sorted by total frames in
// descending order, then by name, and truncated to maxLayers if set.
func (gs *globalStats) snapshot(maxLayers *uint32) GlobalStats {
	layers := make([]LayerStats, 0, len(gs.stats))
	for _, ls := range gs.stats {
		layers = append(layers, ls.copy())
	}
	sort.Slice(layers, func(i, j int) bool {
		if layers[i].TotalFrames != layers[j].TotalFrames {
			return layers[i].TotalFrames > layers[j].TotalFrames
		}
		return layers[i].LayerName < layers[j].LayerName
	})
	if maxLayers != nil && uint64(len(layers)) > uint64(*maxLayers) {
		layers = layers[:*maxLayers]
	}
	return GlobalStats{
		StatsStart:              timeutil.Unix(gs.statsStart),
		StatsEnd:                timeutil.Unix(gs.statsEnd),
		TotalFrames:             gs.totalFrames,
		MissedFrames:            gs.missedFrames,
		ClientCompositionFrames: gs.clientCompositionFrames,
		DisplayOnTimeMS:         gs.displayOnTimeMS,
		Layers:                  layers,
	}
}
