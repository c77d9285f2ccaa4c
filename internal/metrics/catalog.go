package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"diareval/internal/annotation"
)

// Family groups related metrics.
type Family string

const (
	FamilyDetection      Family = "detection"
	FamilySegmentation   Family = "segmentation"
	FamilyDiarization    Family = "diarization"
	FamilyIdentification Family = "identification"
	FamilyPerformance    Family = "performance"
)

// Canonical metric identifiers. They double as report column names.
const (
	DetectionErrorRate = "DetER"
	DetectionAccuracy  = "DetAcc"
	DetectionCost      = "DetCost"
	DetectionPrecision = "DetPrecision"
	DetectionRecall    = "DetRecall"
	DetectionFMeasure  = "DetF"

	SegmentationPurity    = "SegPurity"
	SegmentationCoverage  = "SegCoverage"
	SegmentationFMeasure  = "SegF"
	SegmentationPrecision = "SegPrecision"
	SegmentationRecall    = "SegRecall"

	DiarizationErrorRate       = "DER"
	DiarizationCompleteness    = "DiarCompleteness"
	DiarizationCoverage        = "DiarCoverage"
	DiarizationPurity          = "DiarPurity"
	DiarizationHomogeneity     = "DiarHomogeneity"
	DiarizationFMeasure        = "DiarF"
	GreedyDiarizationErrorRate = "GreedyDER"
	JaccardErrorRate           = "JER"

	IdentificationErrorRate = "IER"
	IdentificationPrecision = "IdPrecision"
	IdentificationRecall    = "IdRecall"

	RealTimeFactor = "RTF"
)

// AllKeyword expands to every enabled metric.
const AllKeyword = "all"

// MaxRecommendedCollar is the largest collar accepted without a warning.
const MaxRecommendedCollar = 500 * time.Millisecond

// ErrUnknownMetric reports an identifier missing from the catalog.
var ErrUnknownMetric = errors.New("unknown metric")

// Options parameterizes every scorer built by a catalog.
type Options struct {
	// Collar is the total tolerance around each reference boundary; half is
	// removed before and half after.
	Collar time.Duration
	// SkipOverlap removes regions where the reference has several speakers.
	SkipOverlap bool
	// Mapping translates hypothesis labels to reference labels for the
	// identification family.
	Mapping map[string]string
	// Identification enables the identification family in "all" expansion.
	Identification bool
}

// Warnings lists non-fatal configuration concerns.
func (o Options) Warnings() []string {
	var out []string
	if o.Collar > MaxRecommendedCollar {
		out = append(out, fmt.Sprintf("collar %s exceeds the usual maximum of %s", o.Collar, MaxRecommendedCollar))
	}
	if o.Identification && len(o.Mapping) == 0 {
		out = append(out, "identification metrics enabled without a label mapping; labels are compared verbatim")
	}
	return out
}

// Scorer computes one metric for a reference/hypothesis pair.
type Scorer func(ctx context.Context, ref, hyp *annotation.Annotation) (float64, error)

type computeFunc func(ctx context.Context, p *pair) (float64, error)

// Definition describes one registered metric.
type Definition struct {
	ID          string
	Family      Family
	Description string
	compute     computeFunc
}

// External reports whether the metric is filled in outside the catalog.
func (d Definition) External() bool {
	return d.compute == nil
}

var aliases = map[string]string{
	"cobertura":    DiarizationCoverage,
	"coverage":     DiarizationCoverage,
	"purity":       DiarizationPurity,
	"jaccard":      JaccardErrorRate,
	"greedy":       GreedyDiarizationErrorRate,
	"detection":    DetectionErrorRate,
	"realtime":     RealTimeFactor,
	"ratio":        RealTimeFactor,
	"homogeneity":  DiarizationHomogeneity,
	"completeness": DiarizationCompleteness,
}

// Catalog is the registry of metric definitions bound to one set of options.
type Catalog struct {
	opts    Options
	defs    []Definition
	byKey   map[string]Definition
	scorers map[string]Scorer
}

// NewCatalog registers every metric and builds its scorer.
func NewCatalog(opts Options) *Catalog {
	c := &Catalog{
		opts:    opts,
		byKey:   make(map[string]Definition),
		scorers: make(map[string]Scorer),
	}
	for _, group := range [][]Definition{detectionMetrics(), segmentationMetrics(), diarizationMetrics(), identificationMetrics()} {
		for _, def := range group {
			c.register(def)
		}
	}
	c.register(Definition{
		ID:          RealTimeFactor,
		Family:      FamilyPerformance,
		Description: "processing time divided by audio duration, from the pipeline execution log",
	})
	return c
}

func (c *Catalog) register(def Definition) {
	c.defs = append(c.defs, def)
	c.byKey[strings.ToLower(def.ID)] = def
	if def.compute == nil {
		return
	}
	compute := def.compute
	opts := c.opts
	c.scorers[def.ID] = func(ctx context.Context, ref, hyp *annotation.Annotation) (float64, error) {
		score, err := compute(ctx, newPair(ctx, ref, hyp, opts))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return score, err
	}
}

// Options returns the options the catalog was built with.
func (c *Catalog) Options() Options {
	return c.opts
}

// Definitions returns every registered metric in registration order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Lookup resolves an identifier or alias, ignoring case.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	key := strings.ToLower(strings.TrimSpace(id))
	if canonical, ok := aliases[key]; ok {
		key = strings.ToLower(canonical)
	}
	def, ok := c.byKey[key]
	return def, ok
}

// Scorer returns the scoring closure for id.
func (c *Catalog) Scorer(id string) (Scorer, error) {
	def, ok := c.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, id)
	}
	scorer, ok := c.scorers[def.ID]
	if !ok {
		return nil, fmt.Errorf("metric %s is not computed from annotations", def.ID)
	}
	return scorer, nil
}

// Expand turns a comma separated list (or "all") into canonical identifiers,
// dropping duplicates and keeping first-seen order.
func (c *Catalog) Expand(list string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, raw := range strings.Split(list, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		if strings.EqualFold(token, AllKeyword) {
			for _, def := range c.defs {
				if def.Family == FamilyIdentification && !c.opts.Identification {
					continue
				}
				add(def.ID)
			}
			continue
		}
		def, ok := c.Lookup(token)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, token)
		}
		add(def.ID)
	}
	if len(out) == 0 {
		return nil, errors.New("no metrics requested")
	}
	return out, nil
}

// Evaluate scores every annotation-based metric in ids over one pair,
// sharing intermediate results. External metrics are left unset for the
// caller to fill in.
func (c *Catalog) Evaluate(ctx context.Context, ids []string, ref, hyp *annotation.Annotation) (*Result, error) {
	result := NewResult()
	p := newPair(ctx, ref, hyp, c.opts)
	for _, id := range ids {
		def, ok := c.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, id)
		}
		if def.External() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := def.compute(ctx, p)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.ID, err)
		}
		result.Set(def.ID, Score(score))
	}
	return result, nil
}
