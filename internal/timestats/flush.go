package timestats

import (
	"math"

	"github.com/getsentry/timestats/internal/fence"
	"github.com/getsentry/timestats/internal/layername"
)

// msBetween returns end - start in whole milliseconds, clamped to the int32 range.
func msBetween(startNS, endNS int64) int32 {
	delta := (endNS - startNS) / 1_000_000
	if delta < math.MinInt32 {
		return math.MinInt32
	}
	if delta > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(delta)
}

// pollFence reads a fence without blocking. It returns true if the fence is
// resolved, in which case the caller drops its reference. signaled tells
// whether timeNS holds a usable signal time.
func pollFence(f fence.Fence) (timeNS int64, signaled bool, resolved bool) {
	timeNS, state := f.SignalTime()
	switch state {
	case fence.Pending:
		return 0, false, false
	case fence.Signaled:
		return timeNS, true, true
	default:
		return 0, false, true
	}
}

// recordReadyLocked resolves the fences of r and reports whether r can be
// drained.
func (s *Service) recordReadyLocked(layerName string, r *timeRecord) bool {
	if !r.ready {
		s.logger.Trace().
			Str("layer", layerName).
			Uint64("frame", r.frameTime.FrameNumber).
			Msg("present fence is still not received")
		return false
	}

	if r.acquireFence != nil {
		ts, signaled, resolved := pollFence(r.acquireFence)
		if !resolved {
			return false
		}
		if signaled {
			r.frameTime.AcquireTimeNS = ts
		} else {
			s.logger.Trace().
				Str("layer", layerName).
				Uint64("frame", r.frameTime.FrameNumber).
				Msg("acquire fence signal time is invalid")
		}
		r.acquireFence = nil
	}

	if r.presentFence != nil {
		ts, signaled, resolved := pollFence(r.presentFence)
		if !resolved {
			return false
		}
		if signaled {
			r.frameTime.PresentTimeNS = ts
		} else {
			s.logger.Trace().
				Str("layer", layerName).
				Uint64("frame", r.frameTime.FrameNumber).
				Msg("present fence signal time is invalid")
			r.presentUnknown = true
		}
		r.presentFence = nil
	}

	return true
}

// flushAvailableRecordsToStatsLocked drains, in order, every record at the
// front of the layer queue that is fully resolved.
func (s *Service) flushAvailableRecordsToStatsLocked(layerName string) {
	lr, exists := s.tracker[layerName]
	if !exists {
		return
	}
	for lr.timeRecords.len() > 0 {
		head := lr.timeRecords.front()
		if !s.recordReadyLocked(layerName, head) {
			break
		}
		r := lr.timeRecords.popFront()
		ft := r.frameTime

		s.logger.Trace().
			Str("layer", layerName).
			Uint64("frame", ft.FrameNumber).
			Int64("present_time_ns", ft.PresentTimeNS).
			Msg("flushing record")

		// The first frame of a layer has nothing to be compared to.
		if lr.prevTimeRecord.ready {
			ls := s.stats.layerStats(layerName, layername.PackageName(layerName))
			ls.TotalFrames++
			ls.DroppedFrames += uint64(lr.droppedFrames)
			lr.droppedFrames = 0

			deltas := [...]struct {
				name  string
				value int32
			}{
				{Post2Acquire, msBetween(ft.PostTimeNS, ft.AcquireTimeNS)},
				{Post2Present, msBetween(ft.PostTimeNS, ft.PresentTimeNS)},
				{Acquire2Present, msBetween(ft.AcquireTimeNS, ft.PresentTimeNS)},
				{Latch2Present, msBetween(ft.LatchTimeNS, ft.PresentTimeNS)},
				{Desired2Present, msBetween(ft.DesiredTimeNS, ft.PresentTimeNS)},
				{Present2Present, msBetween(lr.prevTimeRecord.frameTime.PresentTimeNS, ft.PresentTimeNS)},
			}
			e := s.logger.Trace().
				Str("layer", layerName).
				Uint64("frame", ft.FrameNumber)
			for _, d := range deltas {
				// Without a present time, only post2acquire is meaningful.
				if d.name != Post2Acquire && r.presentUnknown {
					continue
				}
				if d.name == Present2Present && lr.prevTimeRecord.presentUnknown {
					continue
				}
				ls.Deltas[d.name].Insert(d.value)
				e = e.Int32(d.name, d.value)
			}
			e.Msg("deltas")
		}

		lr.prevTimeRecord = r
		lr.cursor--
	}
}
