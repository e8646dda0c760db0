package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"

	"github.com/getsentry/timestats/internal/errorutil"
)

// EventType is the kind of a recorded compositor callback.
type EventType string

const (
	EventPost              EventType = "post"
	EventLatch             EventType = "latch"
	EventDesired           EventType = "desired"
	EventAcquire           EventType = "acquire"
	EventAcquireFence      EventType = "acquire_fence"
	EventPresent           EventType = "present"
	EventPresentFence      EventType = "present_fence"
	EventFenceSignal       EventType = "fence_signal"
	EventFenceInvalid      EventType = "fence_invalid"
	EventDisconnect        EventType = "disconnect"
	EventDestroy           EventType = "destroy"
	EventClearLayer        EventType = "clear_layer"
	EventRemove            EventType = "remove"
	EventPower             EventType = "power"
	EventTotalFrame        EventType = "total_frame"
	EventMissedFrame       EventType = "missed_frame"
	EventClientComposition EventType = "client_composition"
)

type (
	// Event is one line of a trace.
	Event struct {
		Type  EventType `json:"type"`
		Layer string    `json:"layer,omitempty"`
		Frame uint64    `json:"frame,omitempty"`
		// TimestampNS is the time carried by the event, in nanoseconds.
		TimestampNS int64 `json:"ts,omitempty"`
		// Fence identifies a fence across the events of a trace.
		Fence int64 `json:"fence,omitempty"`
		Mode  int32 `json:"mode,omitempty"`
	}
)

// Decode reads a JSON lines trace until the end of r.
func Decode(r io.Reader) ([]Event, error) {
	var events []Event
	d := json.NewDecoder(r)
	for {
		var e Event
		err := d.Decode(&e)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", errorutil.ErrDataIntegrity, len(events), err)
		}
		events = append(events, e)
	}
}

// ReadFile decodes the trace stored at path. Files ending in .lz4 are
// decompressed first.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".lz4") {
		r = lz4.NewReader(f)
	}
	return Decode(r)
}
