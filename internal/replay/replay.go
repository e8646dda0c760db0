// Package replay feeds recorded compositor callbacks to a timestats service.
package replay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/timestats/internal/errorutil"
	"github.com/getsentry/timestats/internal/fence"
	"github.com/getsentry/timestats/internal/timestats"
)

// Replayer applies events to a service. Fences are shared by id between the
// events referring to them, so a signal may arrive before or after the fence
// is attached to a frame.
type Replayer struct {
	service *timestats.Service
	fences  map[int64]*fence.Time
	logger  zerolog.Logger
}

// New returns a Replayer feeding s. A nil logger means the global one.
func New(s *timestats.Service, logger *zerolog.Logger) *Replayer {
	if logger == nil {
		logger = &log.Logger
	}
	return &Replayer{
		service: s,
		fences:  make(map[int64]*fence.Time),
		logger:  logger.With().Str("component", "replay").Logger(),
	}
}

func (r *Replayer) fence(id int64) *fence.Time {
	f, exists := r.fences[id]
	if !exists {
		f = fence.NewPending()
		r.fences[id] = f
	}
	return f
}

// Run applies events in order. It stops at the first invalid event or when
// ctx is done.
func (r *Replayer) Run(ctx context.Context, events []Event) error {
	for i, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Apply(e); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	r.logger.Debug().Int("events", len(events)).Msg("trace replayed")
	return nil
}

// Apply applies a single event.
func (r *Replayer) Apply(e Event) error {
	s := r.service
	switch e.Type {
	case EventPost:
		s.SetPostTime(e.Layer, e.Frame, e.TimestampNS)
	case EventLatch:
		s.SetLatchTime(e.Layer, e.Frame, e.TimestampNS)
	case EventDesired:
		s.SetDesiredTime(e.Layer, e.Frame, e.TimestampNS)
	case EventAcquire:
		s.SetAcquireTime(e.Layer, e.Frame, e.TimestampNS)
	case EventAcquireFence:
		s.SetAcquireFence(e.Layer, e.Frame, r.fence(e.Fence))
	case EventPresent:
		s.SetPresentTime(e.Layer, e.Frame, e.TimestampNS)
	case EventPresentFence:
		s.SetPresentFence(e.Layer, e.Frame, r.fence(e.Fence))
	case EventFenceSignal:
		// Holders poll the fence on their next flush.
		r.fence(e.Fence).Signal(e.TimestampNS)
	case EventFenceInvalid:
		r.fence(e.Fence).Invalidate()
	case EventDisconnect:
		s.OnDisconnect(e.Layer)
	case EventDestroy:
		s.OnDestroy(e.Layer)
	case EventClearLayer:
		s.ClearLayerRecord(e.Layer)
	case EventRemove:
		s.RemoveTimeRecord(e.Layer, e.Frame)
	case EventPower:
		s.SetPowerMode(timestats.PowerMode(e.Mode))
	case EventTotalFrame:
		s.IncrementTotalFrames()
	case EventMissedFrame:
		s.IncrementMissedFrames()
	case EventClientComposition:
		s.IncrementClientCompositionFrames()
	default:
		return fmt.Errorf("%w: unknown event type %q", errorutil.ErrDataIntegrity, e.Type)
	}
	return nil
}
