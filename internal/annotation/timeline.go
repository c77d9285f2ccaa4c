package annotation

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Centiseconds per second.
const UnitsPerSecond = 100

// Interval is a half-open range [Start, End) in centiseconds.
type Interval struct {
	Start int64
	End   int64
}

// Units converts a duration to centiseconds, rounding to the nearest unit.
func Units(d time.Duration) int64 {
	return int64(math.Round(d.Seconds() * UnitsPerSecond))
}

// Duration returns the interval length, never negative.
func (i Interval) Duration() int64 {
	if i.End <= i.Start {
		return 0
	}
	return i.End - i.Start
}

// Empty reports whether the interval covers no time.
func (i Interval) Empty() bool {
	return i.End <= i.Start
}

// Intersect returns the overlap of two intervals.
func (i Interval) Intersect(o Interval) (Interval, bool) {
	out := Interval{Start: max(i.Start, o.Start), End: min(i.End, o.End)}
	if out.Empty() {
		return Interval{}, false
	}
	return out, true
}

func (i Interval) String() string {
	return fmt.Sprintf("[%.2f, %.2f)", float64(i.Start)/UnitsPerSecond, float64(i.End)/UnitsPerSecond)
}

// Timeline is a set of intervals. Operations return merged (supported)
// timelines sorted by start.
type Timeline []Interval

// Support merges overlapping and adjacent intervals and drops empty ones.
func (t Timeline) Support() Timeline {
	if len(t) == 0 {
		return nil
	}
	sorted := make(Timeline, 0, len(t))
	for _, iv := range t {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].Start != sorted[b].Start {
			return sorted[a].Start < sorted[b].Start
		}
		return sorted[a].End < sorted[b].End
	})
	out := make(Timeline, 0, len(sorted))
	for _, iv := range sorted {
		if n := len(out); n > 0 && iv.Start <= out[n-1].End {
			if iv.End > out[n-1].End {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Duration is the total covered time, counting overlapping regions once.
func (t Timeline) Duration() int64 {
	var total int64
	for _, iv := range t.Support() {
		total += iv.Duration()
	}
	return total
}

// Extent is the smallest interval covering the whole timeline.
func (t Timeline) Extent() Interval {
	var out Interval
	first := true
	for _, iv := range t {
		if iv.Empty() {
			continue
		}
		if first {
			out = iv
			first = false
			continue
		}
		out.Start = min(out.Start, iv.Start)
		out.End = max(out.End, iv.End)
	}
	return out
}

// Union merges two timelines.
func (t Timeline) Union(o Timeline) Timeline {
	merged := make(Timeline, 0, len(t)+len(o))
	merged = append(merged, t...)
	merged = append(merged, o...)
	return merged.Support()
}

// Intersect returns the regions covered by both timelines.
func (t Timeline) Intersect(o Timeline) Timeline {
	a, b := t.Support(), o.Support()
	var out Timeline
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if iv, ok := a[i].Intersect(b[j]); ok {
			out = append(out, iv)
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}

// Gaps returns the parts of within not covered by the timeline.
func (t Timeline) Gaps(within Interval) Timeline {
	var out Timeline
	cursor := within.Start
	for _, iv := range t.Support() {
		if iv.End <= cursor {
			continue
		}
		if iv.Start >= within.End {
			break
		}
		if iv.Start > cursor {
			out = append(out, Interval{Start: cursor, End: iv.Start})
		}
		cursor = max(cursor, iv.End)
	}
	if cursor < within.End {
		out = append(out, Interval{Start: cursor, End: within.End})
	}
	return out
}

// Subtract removes every region of o from t.
func (t Timeline) Subtract(o Timeline) Timeline {
	support := t.Support()
	if len(support) == 0 {
		return nil
	}
	return support.Intersect(o.Gaps(support.Extent()))
}

// Boundaries returns the sorted, distinct start and end points.
func (t Timeline) Boundaries() []int64 {
	seen := make(map[int64]struct{}, len(t)*2)
	out := make([]int64, 0, len(t)*2)
	for _, iv := range t {
		if iv.Empty() {
			continue
		}
		for _, p := range []int64{iv.Start, iv.End} {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
