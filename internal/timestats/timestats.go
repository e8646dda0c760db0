// Package timestats collects frame latency statistics for compositor layers.
//
// The compositor reports, for every layer and frame, when the buffer was
// posted, latched, desired, acquired and presented. Acquire and present times
// may be reported as fences resolving later. Records are drained in arrival
// order once every timestamp is known and folded into per layer latency
// distributions.
//
// A Service is safe for concurrent use. All state is guarded by a single
// mutex, except the enabled flag which is read without locking so that the
// per frame calls cost nothing while collection is off. A call racing with
// Enable or Disable may thus record or miss one update.
package timestats

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/timestats/internal/fence"
	"github.com/getsentry/timestats/internal/layername"
	"github.com/getsentry/timestats/internal/timeutil"
)

type (
	Config struct {
		// Clock defaults to the system clock.
		Clock timeutil.Clock
		// Logger defaults to the global logger.
		Logger *zerolog.Logger
	}

	Service struct {
		enabled atomic.Bool

		clock  timeutil.Clock
		logger zerolog.Logger

		mu      sync.Mutex
		tracker map[string]*layerRecord
		stats   globalStats
		power   powerTime
	}
)

// New returns a disabled Service.
func New(cfg Config) *Service {
	s := &Service{
		clock:   cfg.Clock,
		tracker: make(map[string]*layerRecord),
	}
	if s.clock == nil {
		s.clock = timeutil.SystemClock{}
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	s.logger = logger.With().Str("component", "timestats").Logger()
	s.stats.reset(0)
	return s
}

// IsEnabled reports whether the service is collecting.
func (s *Service) IsEnabled() bool {
	return s.enabled.Load()
}

// Enable starts collecting and stamps the start of the stats.
func (s *Service) Enable() {
	if s.enabled.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug().Msg("enabled")
	s.enabled.Store(true)
	now := s.clock.Now()
	s.stats.statsStart = now.Unix()
	s.power.prevTime = now
}

// Disable stops collecting and stamps the end of the stats.
func (s *Service) Disable() {
	if !s.enabled.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug().Msg("disabled")
	s.enabled.Store(false)
	s.stats.statsEnd = s.clock.Now().Unix()
}

// Clear resets the global counters and every layer stats, whether the
// service is enabled or not. Layers being tracked are kept.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug().Msg("cleared")
	now := s.clock.Now()
	var statsStart int64
	if s.enabled.Load() {
		statsStart = now.Unix()
	}
	s.stats.reset(statsStart)
	s.power.prevTime = now
}

func (s *Service) IncrementTotalFrames() {
	if !s.enabled.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.totalFrames++
}

func (s *Service) IncrementMissedFrames() {
	if !s.enabled.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.missedFrames++
}

func (s *Service) IncrementClientCompositionFrames() {
	if !s.enabled.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.clientCompositionFrames++
}

// SetPostTime opens a record for a frame. Tracking state is only created for
// layers with a valid name. Records are rejected once the layer has
// MaxTimeRecords pending.
func (s *Service) SetPostTime(layerName string, frameNumber uint64, postTimeNS int64) {
	if !s.enabled.Load() {
		return
	}

	s.logger.Trace().
		Str("layer", layerName).
		Uint64("frame", frameNumber).
		Int64("post_time_ns", postTimeNS).
		Msg("post time")

	s.mu.Lock()
	defer s.mu.Unlock()
	lr, exists := s.tracker[layerName]
	if !exists {
		if !layername.IsValid(layerName) {
			return
		}
		lr = newLayerRecord()
		s.tracker[layerName] = lr
	}
	// TODO: a full queue means a present fence went missing or the cursor is
	// off. We keep dropping frames until the layer is cleared or torn down.
	ok := lr.timeRecords.pushBack(timeRecord{
		frameTime: FrameTime{
			FrameNumber: frameNumber,
			PostTimeNS:  postTimeNS,
			// Most media content has no acquire fence since the buffer is
			// ready when queued.
			AcquireTimeNS: postTimeNS,
		},
	})
	if !ok {
		s.logger.Warn().
			Str("layer", layerName).
			Int("max_records", MaxTimeRecords).
			Msg("time records are already at their maximum size")
		return
	}
	if lr.cursor < 0 || lr.cursor >= lr.timeRecords.len() {
		lr.cursor = lr.timeRecords.len() - 1
	}
}

// updateWaitingLocked applies fn to the record at the layer cursor if it
// belongs to frameNumber. It returns the layer record, nil if the layer isn't
// tracked.
func (s *Service) updateWaitingLocked(layerName string, frameNumber uint64, fn func(lr *layerRecord, r *timeRecord)) *layerRecord {
	lr, exists := s.tracker[layerName]
	if !exists {
		return nil
	}
	if r := lr.waitingFor(frameNumber); r != nil {
		fn(lr, r)
	}
	return lr
}

func (s *Service) SetLatchTime(layerName string, frameNumber uint64, latchTimeNS int64) {
	if !s.enabled.Load() {
		return
	}

	s.logger.Trace().
		Str("layer", layerName).
		Uint64("frame", frameNumber).
		Int64("latch_time_ns", latchTimeNS).
		Msg("latch time")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateWaitingLocked(layerName, frameNumber, func(_ *layerRecord, r *timeRecord) {
		r.frameTime.LatchTimeNS = latchTimeNS
	})
}

func (s *Service) SetDesiredTime(layerName string, frameNumber uint64, desiredTimeNS int64) {
	if !s.enabled.Load() {
		return
	}

	s.logger.Trace().
		Str("layer", layerName).
		Uint64("frame", frameNumber).
		Int64("desired_time_ns", desiredTimeNS).
		Msg("desired time")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateWaitingLocked(layerName, frameNumber, func(_ *layerRecord, r *timeRecord) {
		r.frameTime.DesiredTimeNS = desiredTimeNS
	})
}

func (s *Service) SetAcquireTime(layerName string, frameNumber uint64, acquireTimeNS int64) {
	if !s.enabled.Load() {
		return
	}

	s.logger.Trace().
		Str("layer", layerName).
		Uint64("frame", frameNumber).
		Int64("acquire_time_ns", acquireTimeNS).
		Msg("acquire time")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateWaitingLocked(layerName, frameNumber, func(_ *layerRecord, r *timeRecord) {
		r.frameTime.AcquireTimeNS = acquireTimeNS
	})
}

// SetAcquireFence attaches an acquire fence, resolved when the record drains.
func (s *Service) SetAcquireFence(layerName string, frameNumber uint64, acquireFence fence.Fence) {
	if !s.enabled.Load() || acquireFence == nil {
		return
	}

	s.logger.Trace().
		Str("layer", layerName).
		Uint64("frame", frameNumber).
		Msg("acquire fence")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateWaitingLocked(layerName, frameNumber, func(_ *layerRecord, r *timeRecord) {
		r.acquireFence = acquireFence
	})
}

// SetPresentTime completes the record waiting for present data and drains
// whatever can be drained.
func (s *Service) SetPresentTime(layerName string, frameNumber uint64, presentTimeNS int64) {
	if !s.enabled.Load() {
		return
	}

	s.logger.Trace().
		Str("layer", layerName).
		Uint64("frame", frameNumber).
		Int64("present_time_ns", presentTimeNS).
		Msg("present time")

	s.mu.Lock()
	defer s.mu.Unlock()
	lr := s.updateWaitingLocked(layerName, frameNumber, func(lr *layerRecord, r *timeRecord) {
		r.frameTime.PresentTimeNS = presentTimeNS
		r.ready = true
		lr.cursor++
	})
	if lr == nil {
		return
	}
	s.flushAvailableRecordsToStatsLocked(layerName)
}

// SetPresentFence is SetPresentTime for a present time known later.
func (s *Service) SetPresentFence(layerName string, frameNumber uint64, presentFence fence.Fence) {
	if !s.enabled.Load() || presentFence == nil {
		return
	}

	s.logger.Trace().
		Str("layer", layerName).
		Uint64("frame", frameNumber).
		Msg("present fence")

	s.mu.Lock()
	defer s.mu.Unlock()
	lr := s.updateWaitingLocked(layerName, frameNumber, func(lr *layerRecord, r *timeRecord) {
		r.presentFence = presentFence
		r.ready = true
		lr.cursor++
	})
	if lr == nil {
		return
	}
	s.flushAvailableRecordsToStatsLocked(layerName)
}

// OnDisconnect drains what it can for the layer and stops tracking it.
func (s *Service) OnDisconnect(layerName string) {
	s.teardown(layerName, "disconnect")
}

// OnDestroy drains what it can for the layer and stops tracking it.
func (s *Service) OnDestroy(layerName string) {
	s.teardown(layerName, "destroy")
}

func (s *Service) teardown(layerName, reason string) {
	if !s.enabled.Load() {
		return
	}

	s.logger.Trace().Str("layer", layerName).Msg(reason)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tracker[layerName]; !exists {
		return
	}
	s.flushAvailableRecordsToStatsLocked(layerName)
	delete(s.tracker, layerName)
}

// ClearLayerRecord drops every pending record of the layer and forgets its
// previous frame. The layer stays tracked.
func (s *Service) ClearLayerRecord(layerName string) {
	if !s.enabled.Load() {
		return
	}

	s.logger.Trace().Str("layer", layerName).Msg("clear layer record")

	s.mu.Lock()
	defer s.mu.Unlock()
	lr, exists := s.tracker[layerName]
	if !exists {
		return
	}
	lr.clear()
}

// RemoveTimeRecord drops the record of a frame and counts it as dropped.
func (s *Service) RemoveTimeRecord(layerName string, frameNumber uint64) {
	if !s.enabled.Load() {
		return
	}

	s.logger.Trace().
		Str("layer", layerName).
		Uint64("frame", frameNumber).
		Msg("remove time record")

	s.mu.Lock()
	defer s.mu.Unlock()
	lr, exists := s.tracker[layerName]
	if !exists {
		return
	}
	i := lr.timeRecords.indexOf(frameNumber)
	if i < 0 {
		return
	}
	lr.timeRecords.removeAt(i)
	if lr.cursor > i {
		lr.cursor--
	}
	lr.droppedFrames++
}

// Snapshot stamps the end of the stats, accounts the display on time and
// returns a copy of the stats, limited to the first maxLayers layers if set.
// It returns false if the stats were never started.
func (s *Service) Snapshot(maxLayers *uint32) (GlobalStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats.statsStart == 0 {
		return GlobalStats{}, false
	}
	s.stats.statsEnd = s.clock.Now().Unix()
	s.flushPowerTimeLocked()
	return s.stats.snapshot(maxLayers), true
}
