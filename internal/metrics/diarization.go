package metrics

import (
	"context"
	"math"
)

func (p *pair) mappedComponents(mapping map[string]string) components {
	return labelComponents(p.ctx, p.ref, mapped(p.hyp, mapping))
}

// purityCoverage computes cluster purity and coverage from the
// cooccurrence matrix.
func (p *pair) purityCoverage() (purity, coverage float64) {
	c := p.cooccurrence()
	refDur := p.ref.LabelDurations()
	hypDur := p.hyp.LabelDurations()

	var covered, refTotal int64
	for i, label := range c.refLabels {
		var best int64
		for _, v := range c.matrix[i] {
			best = max(best, v)
		}
		covered += best
		refTotal += refDur[label]
	}
	var pure, hypTotal int64
	for j, label := range c.hypLabels {
		var best int64
		for i := range c.refLabels {
			best = max(best, c.matrix[i][j])
		}
		pure += best
		hypTotal += hypDur[label]
	}
	return ratio(pure, hypTotal), ratio(covered, refTotal)
}

// conditionalEntropies returns H(ref), H(hyp), H(ref|hyp) and H(hyp|ref)
// estimated from the cooccurrence matrix.
func (p *pair) conditionalEntropies() (hRef, hHyp, hRefGivenHyp, hHypGivenRef float64, ok bool) {
	c := p.cooccurrence()
	total := float64(c.total())
	if total == 0 {
		return 0, 0, 0, 0, false
	}
	rowSum := make([]float64, len(c.refLabels))
	colSum := make([]float64, len(c.hypLabels))
	for i, row := range c.matrix {
		for j, v := range row {
			rowSum[i] += float64(v)
			colSum[j] += float64(v)
		}
	}
	for _, s := range rowSum {
		hRef -= xlogx(s / total)
	}
	for _, s := range colSum {
		hHyp -= xlogx(s / total)
	}
	for i, row := range c.matrix {
		for j, v := range row {
			if v == 0 {
				continue
			}
			joint := float64(v) / total
			hRefGivenHyp -= joint * math.Log(float64(v)/colSum[j])
			hHypGivenRef -= joint * math.Log(float64(v)/rowSum[i])
		}
	}
	return hRef, hHyp, hRefGivenHyp, hHypGivenRef, true
}

func xlogx(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x * math.Log(x)
}

// entropyScore turns a conditional entropy into a [0, 1] score.
func entropyScore(conditional, marginal float64) float64 {
	if marginal == 0 {
		return 1
	}
	return 1 - conditional/marginal
}

// emptyScore is the score of an entropy metric when nothing overlaps.
func (p *pair) emptyScore() float64 {
	if p.ref.Len() == 0 && p.hyp.Len() == 0 {
		return 1
	}
	return 0
}

// jaccard averages, over reference speakers, one minus the intersection over
// union with the mapped hypothesis speaker. Unmapped speakers count as 1.
func (p *pair) jaccard() float64 {
	refLabels := p.ref.Labels()
	if len(refLabels) == 0 {
		if p.hyp.Len() == 0 {
			return 0
		}
		return 1
	}
	inverse := make(map[string]string)
	for hyp, ref := range p.optimalMapping() {
		inverse[ref] = hyp
	}
	var sum float64
	for _, label := range refLabels {
		hypLabel, ok := inverse[label]
		if !ok {
			sum++
			continue
		}
		refTL := p.ref.LabelTimeline(label)
		hypTL := p.hyp.LabelTimeline(hypLabel)
		union := refTL.Union(hypTL).Duration()
		inter := refTL.Intersect(hypTL).Duration()
		sum += 1 - ratio(inter, union)
	}
	return sum / float64(len(refLabels))
}

func diarizationMetrics() []Definition {
	return []Definition{
		{
			ID:          DiarizationErrorRate,
			Family:      FamilyDiarization,
			Description: "(false alarm + missed + confusion) / reference speech after optimal label mapping",
			compute: func(_ context.Context, p *pair) (float64, error) {
				c := p.mappedComponents(p.optimalMapping())
				return rate(c.errorDuration(), c.total), nil
			},
		},
		{
			ID:          DiarizationCompleteness,
			Family:      FamilyDiarization,
			Description: "1 - H(hyp|ref) / H(hyp)",
			compute: func(_ context.Context, p *pair) (float64, error) {
				_, hHyp, _, hHypGivenRef, ok := p.conditionalEntropies()
				if !ok {
					return p.emptyScore(), nil
				}
				return entropyScore(hHypGivenRef, hHyp), nil
			},
		},
		{
			ID:          DiarizationCoverage,
			Family:      FamilyDiarization,
			Description: "reference speech covered by its dominant hypothesis cluster",
			compute: func(_ context.Context, p *pair) (float64, error) {
				_, coverage := p.purityCoverage()
				return coverage, nil
			},
		},
		{
			ID:          DiarizationPurity,
			Family:      FamilyDiarization,
			Description: "hypothesis speech belonging to its dominant reference speaker",
			compute: func(_ context.Context, p *pair) (float64, error) {
				purity, _ := p.purityCoverage()
				return purity, nil
			},
		},
		{
			ID:          DiarizationHomogeneity,
			Family:      FamilyDiarization,
			Description: "1 - H(ref|hyp) / H(ref)",
			compute: func(_ context.Context, p *pair) (float64, error) {
				hRef, _, hRefGivenHyp, _, ok := p.conditionalEntropies()
				if !ok {
					return p.emptyScore(), nil
				}
				return entropyScore(hRefGivenHyp, hRef), nil
			},
		},
		{
			ID:          DiarizationFMeasure,
			Family:      FamilyDiarization,
			Description: "harmonic mean of cluster purity and coverage",
			compute: func(_ context.Context, p *pair) (float64, error) {
				purity, coverage := p.purityCoverage()
				return fMeasure(purity, coverage, 1), nil
			},
		},
		{
			ID:          GreedyDiarizationErrorRate,
			Family:      FamilyDiarization,
			Description: "diarization error rate with greedy label mapping",
			compute: func(_ context.Context, p *pair) (float64, error) {
				c := p.mappedComponents(p.greedyMapping())
				return rate(c.errorDuration(), c.total), nil
			},
		},
		{
			ID:          JaccardErrorRate,
			Family:      FamilyDiarization,
			Description: "mean per-speaker 1 - Jaccard index after optimal label mapping",
			compute: func(_ context.Context, p *pair) (float64, error) {
				return p.jaccard(), nil
			},
		},
	}
}

func identificationMetrics() []Definition {
	breakdown := func(p *pair) components {
		return labelComponents(p.ctx, p.ref, p.hyp.Relabel(p.opts.Mapping))
	}
	return []Definition{
		{
			ID:          IdentificationErrorRate,
			Family:      FamilyIdentification,
			Description: "(false alarm + missed + confusion) / reference speech with a fixed label mapping",
			compute: func(_ context.Context, p *pair) (float64, error) {
				c := breakdown(p)
				return rate(c.errorDuration(), c.total), nil
			},
		},
		{
			ID:          IdentificationPrecision,
			Family:      FamilyIdentification,
			Description: "correctly labelled speech / hypothesis speech",
			compute: func(_ context.Context, p *pair) (float64, error) {
				c := breakdown(p)
				return ratio(c.correct, c.hypTotal), nil
			},
		},
		{
			ID:          IdentificationRecall,
			Family:      FamilyIdentification,
			Description: "correctly labelled speech / reference speech",
			compute: func(_ context.Context, p *pair) (float64, error) {
				c := breakdown(p)
				return ratio(c.correct, c.total), nil
			},
		},
	}
}
