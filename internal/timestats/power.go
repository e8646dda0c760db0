package timestats

import (
	"time"
)

// PowerMode is a display power mode, numbered as the hardware composer does.
type PowerMode int32

const (
	PowerModeOff         PowerMode = 0
	PowerModeDoze        PowerMode = 1
	PowerModeNormal      PowerMode = 2
	PowerModeDozeSuspend PowerMode = 3
)

func (m PowerMode) String() string {
	switch m {
	case PowerModeOff:
		return "off"
	case PowerModeDoze:
		return "doze"
	case PowerModeNormal:
		return "normal"
	case PowerModeDozeSuspend:
		return "doze_suspend"
	default:
		return "unknown"
	}
}

type powerTime struct {
	mode     PowerMode
	prevTime time.Time
}

// flushPowerTimeLocked credits the time elapsed since the last flush to the
// display on time if the display was on.
func (s *Service) flushPowerTimeLocked() {
	now := s.clock.Now()
	elapsedMS := now.Sub(s.power.prevTime).Milliseconds()

	// Doze modes count as off.
	if s.power.mode == PowerModeNormal {
		s.stats.displayOnTimeMS += elapsedMS
	}

	s.power.prevTime = now
}

// SetPowerMode records a display power mode change. While disabled, the mode
// is stored without accounting for any time.
func (s *Service) SetPowerMode(mode PowerMode) {
	if !s.enabled.Load() {
		s.mu.Lock()
		s.power.mode = mode
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == s.power.mode {
		return
	}
	s.flushPowerTimeLocked()
	s.power.mode = mode
}
