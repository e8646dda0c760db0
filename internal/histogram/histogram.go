// Package histogram provides a bucketed distribution of millisecond latencies.
package histogram

import (
	"sort"
)

// bucketBounds are the lower bounds of the buckets, in milliseconds. We keep a
// 1ms resolution around a frame interval and get coarser past it.
var bucketBounds = func() []int32 {
	b := make([]int32, 0, 64)
	for v := int32(0); v <= 33; v++ {
		b = append(b, v)
	}
	for v := int32(36); v <= 100; v += 4 {
		b = append(b, v)
	}
	for v := int32(150); v <= 1000; v += 50 {
		b = append(b, v)
	}
	return b
}()

// Histogram counts values per bucket. The key of Counts is the lower bound
// of the bucket the value fell into. The zero value is ready to use.
type Histogram struct {
	Counts map[int32]int32 `json:"counts"`
}

// New returns an empty histogram.
func New() *Histogram {
	return &Histogram{Counts: make(map[int32]int32)}
}

// Bucket returns the lower bound of the bucket v falls into. Negative values
// map to the first bucket and values past the last bound to the last one.
func Bucket(v int32) int32 {
	i := sort.Search(len(bucketBounds), func(i int) bool {
		return bucketBounds[i] > v
	})
	if i == 0 {
		return bucketBounds[0]
	}
	return bucketBounds[i-1]
}

// Insert adds a value to the distribution. Negative values are dropped.
func (h *Histogram) Insert(v int32) {
	if v < 0 {
		return
	}
	if h.Counts == nil {
		h.Counts = make(map[int32]int32)
	}
	h.Counts[Bucket(v)]++
}

// Weight returns the number of values inserted.
func (h *Histogram) Weight() int64 {
	var w int64
	for _, c := range h.Counts {
		w += int64(c)
	}
	return w
}

// Sum returns the weighted sum of the bucket lower bounds.
func (h *Histogram) Sum() int64 {
	var s int64
	for k, c := range h.Counts {
		s += int64(k) * int64(c)
	}
	return s
}

// BucketCount is a non-empty bucket of a Histogram.
type BucketCount struct {
	LowerBoundMS int32
	Count        int32
}

// Buckets returns the non-empty buckets in ascending order.
func (h *Histogram) Buckets() []BucketCount {
	buckets := make([]BucketCount, 0, len(h.Counts))
	for k, c := range h.Counts {
		if c == 0 {
			continue
		}
		buckets = append(buckets, BucketCount{LowerBoundMS: k, Count: c})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].LowerBoundMS < buckets[j].LowerBoundMS
	})
	return buckets
}

// Copy returns a histogram sharing no data with h.
func (h *Histogram) Copy() *Histogram {
	c := &Histogram{Counts: make(map[int32]int32, len(h.Counts))}
	for k, v := range h.Counts {
		c.Counts[k] = v
	}
	return c
}
