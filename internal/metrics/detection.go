package metrics

import (
	"context"
)

const (
	detectionFalseAlarmWeight = 0.25
	detectionMissWeight       = 0.75
)

// detection is the speech/non-speech breakdown inside the evaluated region.
type detection struct {
	region         int64
	refSpeech      int64
	truePositive   int64
	trueNegative   int64
	falseAlarm     int64
	missedDetected int64
}

func (p *pair) detection() detection {
	ref := p.ref.Timeline().Support()
	hyp := p.hyp.Timeline().Support()
	d := detection{
		region:         p.uem.Duration(),
		refSpeech:      ref.Duration(),
		truePositive:   ref.Intersect(hyp).Duration(),
		falseAlarm:     hyp.Subtract(ref).Duration(),
		missedDetected: ref.Subtract(hyp).Duration(),
	}
	d.trueNegative = d.region - ref.Union(hyp).Duration()
	return d
}

func detectionMetrics() []Definition {
	return []Definition{
		{
			ID:          DetectionErrorRate,
			Family:      FamilyDetection,
			Description: "(false alarm + missed speech) / reference speech",
			compute: func(_ context.Context, p *pair) (float64, error) {
				d := p.detection()
				return rate(d.falseAlarm+d.missedDetected, d.refSpeech), nil
			},
		},
		{
			ID:          DetectionAccuracy,
			Family:      FamilyDetection,
			Description: "(true positive + true negative) / evaluated duration",
			compute: func(_ context.Context, p *pair) (float64, error) {
				d := p.detection()
				return ratio(d.truePositive+d.trueNegative, d.region), nil
			},
		},
		{
			ID:          DetectionCost,
			Family:      FamilyDetection,
			Description: "0.25 * false alarm rate + 0.75 * miss rate",
			compute: func(_ context.Context, p *pair) (float64, error) {
				d := p.detection()
				nonSpeech := d.region - d.refSpeech
				return detectionFalseAlarmWeight*rate(d.falseAlarm, nonSpeech) +
					detectionMissWeight*rate(d.missedDetected, d.refSpeech), nil
			},
		},
		{
			ID:          DetectionPrecision,
			Family:      FamilyDetection,
			Description: "detected speech that is reference speech",
			compute: func(_ context.Context, p *pair) (float64, error) {
				d := p.detection()
				return ratio(d.truePositive, d.truePositive+d.falseAlarm), nil
			},
		},
		{
			ID:          DetectionRecall,
			Family:      FamilyDetection,
			Description: "reference speech that is detected",
			compute: func(_ context.Context, p *pair) (float64, error) {
				d := p.detection()
				return ratio(d.truePositive, d.truePositive+d.missedDetected), nil
			},
		},
		{
			ID:          DetectionFMeasure,
			Family:      FamilyDetection,
			Description: "harmonic mean of detection precision and recall",
			compute: func(_ context.Context, p *pair) (float64, error) {
				d := p.detection()
				precision := ratio(d.truePositive, d.truePositive+d.falseAlarm)
				recall := ratio(d.truePositive, d.truePositive+d.missedDetected)
				return fMeasure(precision, recall, 1), nil
			},
		},
	}
}
