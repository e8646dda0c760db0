package testutil

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"
	"google.golang.org/protobuf/testing/protocmp"
)

var (
	// Copied from
	// https://github.com/googleapis/google-cloud-go/blob/b62783c3c30aecc880f2cd7bce146d9e4e9e59be/internal/testutil/cmp.go#L15-L61
	alwaysEqual       = cmp.Comparer(func(_, _ interface{}) bool { return true })
	defaultCmpOptions = []cmp.Option{
		// Use protocmp.Transform for protobufs
		protocmp.Transform(),
		// NaNs compare equal
		cmp.FilterValues(func(x, y float64) bool {
			return math.IsNaN(x) && math.IsNaN(y)
		}, alwaysEqual),
		cmp.FilterValues(func(x, y float32) bool {
			return math.IsNaN(float64(x)) && math.IsNaN(float64(y))
		}, alwaysEqual),
	}
)

func Diff(a, b interface{}, opts ...cmp.Option) string {
	opts = append(opts, defaultCmpOptions...)
	return cmp.Diff(a, b, opts...)
}

// Clock is a manually driven clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ReadCompressed reads an lz4 compressed JSON object from a bucket into d.
func ReadCompressed(ctx context.Context, b *blob.Bucket, objectName string, d interface{}) error {
	or, err := b.NewReader(ctx, objectName, nil)
	if err != nil {
		return err
	}
	defer or.Close()
	return json.NewDecoder(lz4.NewReader(or)).Decode(d)
}
