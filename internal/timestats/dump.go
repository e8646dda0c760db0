package timestats

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/getsentry/sentry-go"
	json "github.com/goccy/go-json"
)

// DumpOptions configures Dump.
type DumpOptions struct {
	// Structured selects the JSON encoding instead of the text one.
	Structured bool
	// MaxLayers limits the number of layers reported, all of them if nil.
	MaxLayers *uint32
}

// Dump encodes a snapshot of the stats. The result is empty if the stats
// were never started.
func (s *Service) Dump(ctx context.Context, opts DumpOptions) ([]byte, error) {
	span := sentry.StartSpan(ctx, "timestats.dump")
	defer span.Finish()

	stats, ok := s.Snapshot(opts.MaxLayers)
	if !ok {
		return nil, nil
	}

	if opts.Structured {
		s.logger.Debug().Msg("dumping stats as json")
		span.Description = "Marshal stats as JSON"
		return json.Marshal(stats)
	}

	s.logger.Debug().Msg("dumping stats as text")
	span.Description = "Format stats as text"
	var b bytes.Buffer
	stats.WriteText(&b)
	b.WriteString("\n")
	return b.Bytes(), nil
}

// WriteText writes a human readable rendition of the stats.
func (gs GlobalStats) WriteText(b *bytes.Buffer) {
	fmt.Fprintf(b, "statsStart = %d\n", gs.StatsStart.Unix())
	fmt.Fprintf(b, "statsEnd = %d\n", gs.StatsEnd.Unix())
	fmt.Fprintf(b, "totalFrames = %s\n", humanize.Comma(int64(gs.TotalFrames)))
	fmt.Fprintf(b, "missedFrames = %s\n", humanize.Comma(int64(gs.MissedFrames)))
	fmt.Fprintf(b, "clientCompositionFrames = %s\n", humanize.Comma(int64(gs.ClientCompositionFrames)))
	fmt.Fprintf(b, "displayOnTime = %s ms\n", humanize.Comma(gs.DisplayOnTimeMS))
	for _, ls := range gs.Layers {
		ls.WriteText(b)
	}
}

// WriteText writes a human readable rendition of the layer stats.
func (ls LayerStats) WriteText(b *bytes.Buffer) {
	fmt.Fprintf(b, "layerName = %s\n", ls.LayerName)
	fmt.Fprintf(b, "packageName = %s\n", ls.PackageName)
	fmt.Fprintf(b, "totalFrames = %d\n", ls.TotalFrames)
	fmt.Fprintf(b, "droppedFrames = %d\n", ls.DroppedFrames)
	fmt.Fprintf(b, "averageFPS = %.3f\n", ls.AverageFPS())
	for _, name := range DeltaNames {
		h, ok := ls.Deltas[name]
		if !ok {
			continue
		}
		fmt.Fprintf(b, "%s histogram is as below:\n", name)
		for _, bucket := range h.Buckets() {
			fmt.Fprintf(b, "%dms=%d ", bucket.LowerBoundMS, bucket.Count)
		}
		b.WriteString("\n")
	}
}
