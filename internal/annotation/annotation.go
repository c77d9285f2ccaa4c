package annotation

import (
	"slices"
	"sort"
)

// Segment is one labelled interval.
type Segment struct {
	Interval
	Label string
}

// Annotation is an ordered collection of labelled intervals for one audio
// file. Intervals may overlap. Segments are kept ordered by start, end, then
// label, so every read accessor is safe for concurrent use once the
// annotation is built.
type Annotation struct {
	URI      string
	segments []Segment
}

// New returns an empty annotation for the given audio identifier.
func New(uri string) *Annotation {
	return &Annotation{URI: uri}
}

func segmentLess(x, y Segment) bool {
	if x.Start != y.Start {
		return x.Start < y.Start
	}
	if x.End != y.End {
		return x.End < y.End
	}
	return x.Label < y.Label
}

// Add inserts a labelled interval in order. Empty intervals are ignored.
func (a *Annotation) Add(iv Interval, label string) {
	if iv.Empty() {
		return
	}
	seg := Segment{Interval: iv, Label: label}
	n := len(a.segments)
	if n == 0 || !segmentLess(seg, a.segments[n-1]) {
		a.segments = append(a.segments, seg)
		return
	}
	i := sort.Search(n, func(i int) bool { return segmentLess(seg, a.segments[i]) })
	a.segments = slices.Insert(a.segments, i, seg)
}

// Len returns the number of segments.
func (a *Annotation) Len() int {
	if a == nil {
		return 0
	}
	return len(a.segments)
}

// Segments returns a copy of the segments ordered by start, end, then label.
func (a *Annotation) Segments() []Segment {
	if a == nil {
		return nil
	}
	return slices.Clone(a.segments)
}

// Labels returns the distinct labels in sorted order.
func (a *Annotation) Labels() []string {
	if a == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, seg := range a.segments {
		if _, ok := seen[seg.Label]; ok {
			continue
		}
		seen[seg.Label] = struct{}{}
		out = append(out, seg.Label)
	}
	sort.Strings(out)
	return out
}

// Timeline returns every interval regardless of label.
func (a *Annotation) Timeline() Timeline {
	if a == nil {
		return nil
	}
	out := make(Timeline, 0, len(a.segments))
	for _, seg := range a.segments {
		out = append(out, seg.Interval)
	}
	return out
}

// LabelTimeline returns the merged timeline of one label.
func (a *Annotation) LabelTimeline(label string) Timeline {
	if a == nil {
		return nil
	}
	var out Timeline
	for _, seg := range a.segments {
		if seg.Label == label {
			out = append(out, seg.Interval)
		}
	}
	return out.Support()
}

// LabelDurations returns the merged duration per label.
func (a *Annotation) LabelDurations() map[string]int64 {
	out := make(map[string]int64)
	for _, label := range a.Labels() {
		out[label] = a.LabelTimeline(label).Duration()
	}
	return out
}

// Overlap returns the regions where at least two segments are active.
func (a *Annotation) Overlap() Timeline {
	if a == nil {
		return nil
	}
	var out Timeline
	segs := a.Segments()
	for i := range segs {
		for j := i + 1; j < len(segs); j++ {
			if segs[j].Start >= segs[i].End {
				break
			}
			if iv, ok := segs[i].Intersect(segs[j].Interval); ok {
				out = append(out, iv)
			}
		}
	}
	return out.Support()
}

// Crop keeps only the parts of each segment that fall inside region.
func (a *Annotation) Crop(region Timeline) *Annotation {
	out := New("")
	if a == nil {
		return out
	}
	out.URI = a.URI
	support := region.Support()
	for _, seg := range a.Segments() {
		for _, r := range support {
			if r.Start >= seg.End {
				break
			}
			if iv, ok := seg.Intersect(r); ok {
				out.Add(iv, seg.Label)
			}
		}
	}
	return out
}

// Relabel returns a copy with labels translated through mapping. Labels
// missing from the mapping are kept.
func (a *Annotation) Relabel(mapping map[string]string) *Annotation {
	out := New("")
	if a == nil {
		return out
	}
	out.URI = a.URI
	for _, seg := range a.segments {
		label := seg.Label
		if mapped, ok := mapping[label]; ok {
			label = mapped
		}
		out.Add(seg.Interval, label)
	}
	return out
}

// Equal reports whether both annotations hold the same interval/label pairs.
func (a *Annotation) Equal(b *Annotation) bool {
	x, y := a.Segments(), b.Segments()
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
