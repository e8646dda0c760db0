package timestats

import (
	"github.com/getsentry/timestats/internal/fence"
)

// MaxTimeRecords bounds the number of pending records per layer.
const MaxTimeRecords = 64

// FrameTime holds the pipeline timestamps of a frame, in nanoseconds on the
// compositor's monotonic clock.
type FrameTime struct {
	FrameNumber   uint64
	PostTimeNS    int64
	AcquireTimeNS int64
	DesiredTimeNS int64
	LatchTimeNS   int64
	PresentTimeNS int64
}

type timeRecord struct {
	frameTime FrameTime
	// Fences are shared with their producer. They're dropped as soon as their
	// signal time has been read into frameTime.
	acquireFence fence.Fence
	presentFence fence.Fence
	// ready is set once present data (time or fence) has been received.
	ready bool
	// presentUnknown is set when the present fence turned out invalid.
	presentUnknown bool
}

// recordQueue is a fixed capacity FIFO of time records. Indexes are relative
// to the head so they stay valid across pops from the front.
type recordQueue struct {
	buf  [MaxTimeRecords]timeRecord
	head int
	size int
}

func (q *recordQueue) len() int {
	return q.size
}

func (q *recordQueue) full() bool {
	return q.size == MaxTimeRecords
}

func (q *recordQueue) at(i int) *timeRecord {
	return &q.buf[(q.head+i)%MaxTimeRecords]
}

// pushBack appends r and reports whether there was room for it.
func (q *recordQueue) pushBack(r timeRecord) bool {
	if q.full() {
		return false
	}
	*q.at(q.size) = r
	q.size++
	return true
}

func (q *recordQueue) front() *timeRecord {
	if q.size == 0 {
		return nil
	}
	return q.at(0)
}

func (q *recordQueue) popFront() timeRecord {
	r := *q.at(0)
	*q.at(0) = timeRecord{}
	q.head = (q.head + 1) % MaxTimeRecords
	q.size--
	return r
}

// removeAt removes the record at index i, keeping the order of the others.
func (q *recordQueue) removeAt(i int) {
	for j := i; j < q.size-1; j++ {
		*q.at(j) = *q.at(j + 1)
	}
	*q.at(q.size - 1) = timeRecord{}
	q.size--
}

// indexOf returns the index of the first record for frameNumber, -1 if none.
func (q *recordQueue) indexOf(frameNumber uint64) int {
	for i := 0; i < q.size; i++ {
		if q.at(i).frameTime.FrameNumber == frameNumber {
			return i
		}
	}
	return -1
}

func (q *recordQueue) clear() {
	*q = recordQueue{}
}

// layerRecord tracks the frames of a single layer.
type layerRecord struct {
	timeRecords recordQueue
	// cursor is the index of the oldest record still waiting for its present
	// data, -1 if there is none.
	cursor         int
	prevTimeRecord timeRecord
	// droppedFrames counts records removed since the last drain.
	droppedFrames uint32
}

func newLayerRecord() *layerRecord {
	return &layerRecord{cursor: -1}
}

// waiting returns the record at the cursor, nil if the cursor doesn't point
// into the queue.
func (lr *layerRecord) waiting() *timeRecord {
	if lr.cursor < 0 || lr.cursor >= lr.timeRecords.len() {
		return nil
	}
	return lr.timeRecords.at(lr.cursor)
}

// waitingFor returns the record at the cursor if it belongs to frameNumber.
func (lr *layerRecord) waitingFor(frameNumber uint64) *timeRecord {
	r := lr.waiting()
	if r == nil || r.frameTime.FrameNumber != frameNumber {
		return nil
	}
	return r
}

func (lr *layerRecord) clear() {
	lr.timeRecords.clear()
	lr.prevTimeRecord.ready = false
	lr.cursor = -1
	lr.droppedFrames = 0
}
