package metrics

import (
	"context"

	"diareval/internal/annotation"
)

// components is the duration breakdown shared by the identification and
// diarization error rates.
type components struct {
	total      int64
	correct    int64
	confusion  int64
	falseAlarm int64
	missed     int64
	hypTotal   int64
}

func (c components) errorDuration() int64 {
	return c.confusion + c.falseAlarm + c.missed
}

// labelComponents compares labels one-to-one over every elementary interval.
// Each active track counts, so two overlapping segments of the same speaker
// weigh twice.
func labelComponents(ctx context.Context, ref, hyp *annotation.Annotation) components {
	var c components
	for _, pc := range pieces(ctx, ref, hyp) {
		nRef, nHyp, correct := 0, 0, 0
		for label, count := range pc.ref {
			nRef += count
			correct += min(count, pc.hyp[label])
		}
		for _, count := range pc.hyp {
			nHyp += count
		}
		d := pc.duration
		c.total += int64(nRef) * d
		c.hypTotal += int64(nHyp) * d
		c.correct += int64(correct) * d
		c.confusion += int64(min(nRef, nHyp)-correct) * d
		c.falseAlarm += int64(max(0, nHyp-nRef)) * d
		c.missed += int64(max(0, nRef-nHyp)) * d
	}
	return c
}

// rate divides an error duration by a reference duration. With no reference
// speech the rate is 0 when there is no error and 1 otherwise.
func rate(errorDuration, total int64) float64 {
	if total == 0 {
		if errorDuration == 0 {
			return 0
		}
		return 1
	}
	return float64(errorDuration) / float64(total)
}

// ratio divides num by den, treating an empty denominator as a perfect score.
func ratio(num, den int64) float64 {
	if den == 0 {
		return 1
	}
	return float64(num) / float64(den)
}

// fMeasure is the weighted harmonic mean of precision and recall.
func fMeasure(precision, recall, beta float64) float64 {
	b2 := beta * beta
	den := b2*precision + recall
	if den == 0 {
		return 0
	}
	return (1 + b2) * precision * recall / den
}
