package metrics

import (
	"context"

	"diareval/internal/annotation"
)

// partition splits a timeline at every segment boundary and keeps the
// elementary intervals that fall inside coverage.
func partition(tl annotation.Timeline, coverage annotation.Timeline) []annotation.Interval {
	bounds := tl.Boundaries()
	var out []annotation.Interval
	for i := 0; i+1 < len(bounds); i++ {
		elem := annotation.Interval{Start: bounds[i], End: bounds[i+1]}
		out = append(out, annotation.Timeline{elem}.Intersect(coverage)...)
	}
	return out
}

// bestOverlap sums, for each interval of a, its largest overlap with any
// interval of b.
func bestOverlap(a, b []annotation.Interval) (matched, total int64) {
	for _, x := range a {
		total += x.Duration()
		var best int64
		for _, y := range b {
			if y.Start >= x.End {
				break
			}
			if iv, ok := x.Intersect(y); ok && iv.Duration() > best {
				best = iv.Duration()
			}
		}
		matched += best
	}
	return matched, total
}

type segmentation struct {
	refParts []annotation.Interval
	hypParts []annotation.Interval
}

func (p *pair) segmentation() segmentation {
	ref := p.rawRef.Timeline()
	hyp := p.rawHyp.Timeline()
	coverage := ref.Union(hyp)
	return segmentation{
		refParts: partition(ref, coverage),
		hypParts: partition(hyp, coverage),
	}
}

func (s segmentation) coverage() float64 {
	matched, total := bestOverlap(s.refParts, s.hypParts)
	return ratio(matched, total)
}

func (s segmentation) purity() float64 {
	matched, total := bestOverlap(s.hypParts, s.refParts)
	return ratio(matched, total)
}

// transitions returns the inner boundaries of a partition: every point where
// one elementary interval ends, excluding the outer edges of each contiguous
// run.
func transitions(parts []annotation.Interval) []int64 {
	var out []int64
	for i := 0; i+1 < len(parts); i++ {
		if parts[i].End == parts[i+1].Start {
			out = append(out, parts[i].End)
		}
	}
	return out
}

// matchBoundaries counts one-to-one matches between sorted boundary lists
// within tolerance. Scanning left to right and taking the earliest candidate
// gives a maximum matching for points on a line.
func matchBoundaries(ref, hyp []int64, tolerance int64) int {
	matched := 0
	j := 0
	for _, r := range ref {
		for j < len(hyp) && hyp[j] < r-tolerance {
			j++
		}
		if j < len(hyp) && hyp[j] <= r+tolerance {
			matched++
			j++
		}
	}
	return matched
}

func (p *pair) boundaryScores() (precision, recall float64) {
	s := p.segmentation()
	ref := transitions(s.refParts)
	hyp := transitions(s.hypParts)
	matched := int64(matchBoundaries(ref, hyp, annotation.Units(p.opts.Collar)))
	return ratio(matched, int64(len(hyp))), ratio(matched, int64(len(ref)))
}

func segmentationMetrics() []Definition {
	return []Definition{
		{
			ID:          SegmentationPurity,
			Family:      FamilySegmentation,
			Description: "share of each hypothesis segment covered by its best reference segment",
			compute: func(_ context.Context, p *pair) (float64, error) {
				return p.segmentation().purity(), nil
			},
		},
		{
			ID:          SegmentationCoverage,
			Family:      FamilySegmentation,
			Description: "share of each reference segment covered by its best hypothesis segment",
			compute: func(_ context.Context, p *pair) (float64, error) {
				return p.segmentation().coverage(), nil
			},
		},
		{
			ID:          SegmentationFMeasure,
			Family:      FamilySegmentation,
			Description: "harmonic mean of segmentation purity and coverage",
			compute: func(_ context.Context, p *pair) (float64, error) {
				s := p.segmentation()
				return fMeasure(s.purity(), s.coverage(), 1), nil
			},
		},
		{
			ID:          SegmentationPrecision,
			Family:      FamilySegmentation,
			Description: "hypothesis boundaries within the collar of a reference boundary",
			compute: func(_ context.Context, p *pair) (float64, error) {
				precision, _ := p.boundaryScores()
				return precision, nil
			},
		},
		{
			ID:          SegmentationRecall,
			Family:      FamilySegmentation,
			Description: "reference boundaries within the collar of a hypothesis boundary",
			compute: func(_ context.Context, p *pair) (float64, error) {
				_, recall := p.boundaryScores()
				return recall, nil
			},
		},
	}
}
