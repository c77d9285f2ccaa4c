package metrics

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"diareval/internal/annotation"
)

func build(uri string, segs ...annotation.Segment) *annotation.Annotation {
	ann := annotation.New(uri)
	for _, s := range segs {
		ann.Add(s.Interval, s.Label)
	}
	return ann
}

func seg(start, end int64, label string) annotation.Segment {
	return annotation.Segment{Interval: annotation.Interval{Start: start, End: end}, Label: label}
}

func score(t *testing.T, c *Catalog, id string, ref, hyp *annotation.Annotation) float64 {
	t.Helper()
	scorer, err := c.Scorer(id)
	if err != nil {
		t.Fatalf("Scorer(%s): %v", id, err)
	}
	v, err := scorer(context.Background(), ref, hyp)
	if err != nil {
		t.Fatalf("%s returned error: %v", id, err)
	}
	return v
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestIdenticalAnnotationsScorePerfectly(t *testing.T) {
	ref := build("a", seg(0, 500, "A"), seg(400, 900, "B"), seg(1200, 1500, "A"))
	hyp := build("a", seg(0, 500, "x"), seg(400, 900, "y"), seg(1200, 1500, "x"))

	for _, collar := range []time.Duration{0, 100 * time.Millisecond, 250 * time.Millisecond, time.Second} {
		for _, skip := range []bool{false, true} {
			c := NewCatalog(Options{Collar: collar, SkipOverlap: skip})
			for _, id := range []string{DiarizationErrorRate, DetectionErrorRate, GreedyDiarizationErrorRate, JaccardErrorRate} {
				if got := score(t, c, id, ref, hyp); !approx(got, 0) {
					t.Fatalf("%s with collar %s skip=%v = %v, want 0", id, collar, skip, got)
				}
			}
			for _, id := range []string{DiarizationPurity, DiarizationCoverage, DetectionPrecision, DetectionRecall, DetectionAccuracy} {
				if got := score(t, c, id, ref, hyp); !approx(got, 1) {
					t.Fatalf("%s with collar %s skip=%v = %v, want 1", id, collar, skip, got)
				}
			}
		}
	}
}

func TestEmptyHypothesisMissesEverything(t *testing.T) {
	ref := build("a", seg(0, 1000, "A"), seg(1000, 1500, "B"))
	hyp := annotation.New("a")
	c := NewCatalog(Options{})

	if got := score(t, c, DiarizationErrorRate, ref, hyp); !approx(got, 1) {
		t.Fatalf("DER = %v, want 1", got)
	}
	if got := score(t, c, DetectionErrorRate, ref, hyp); !approx(got, 1) {
		t.Fatalf("DetER = %v, want 1", got)
	}
	if got := score(t, c, JaccardErrorRate, ref, hyp); !approx(got, 1) {
		t.Fatalf("JER = %v, want 1", got)
	}
}

func TestSingleMismatchedLabelIsMappedOptimally(t *testing.T) {
	ref := build("a", seg(0, 500, "B"))
	hyp := build("a", seg(0, 500, "A"))
	c := NewCatalog(Options{})

	if got := score(t, c, DiarizationErrorRate, ref, hyp); !approx(got, 0) {
		t.Fatalf("DER = %v, want 0 after mapping A->B", got)
	}
	// Identification compares labels verbatim, so the same pair is all confusion.
	if got := score(t, c, IdentificationErrorRate, ref, hyp); !approx(got, 1) {
		t.Fatalf("IER = %v, want 1", got)
	}
	mappedCatalog := NewCatalog(Options{Mapping: map[string]string{"A": "B"}})
	if got := score(t, mappedCatalog, IdentificationErrorRate, ref, hyp); !approx(got, 0) {
		t.Fatalf("IER with mapping = %v, want 0", got)
	}
}

func TestDiarizationErrorRateDecomposition(t *testing.T) {
	// ref: A [0,10s) B [10s,20s); hyp: x [0,12s) y [12s,18s) z [25s,27s)
	ref := build("a", seg(0, 1000, "A"), seg(1000, 2000, "B"))
	hyp := build("a", seg(0, 1200, "x"), seg(1200, 1800, "y"), seg(2500, 2700, "z"))
	c := NewCatalog(Options{})

	// x->A, y->B: confusion 2s, missed 2s, false alarm 2s over 20s.
	if got := score(t, c, DiarizationErrorRate, ref, hyp); !approx(got, 0.3) {
		t.Fatalf("DER = %v, want 0.3", got)
	}
	// missed 2s + false alarm 2s over 20s.
	if got := score(t, c, DetectionErrorRate, ref, hyp); !approx(got, 0.2) {
		t.Fatalf("DetER = %v, want 0.2", got)
	}
	// Purity: x keeps 10 of 12s, y 6 of 6s, z 0 of 2s -> 16/20.
	if got := score(t, c, DiarizationPurity, ref, hyp); !approx(got, 0.8) {
		t.Fatalf("DiarPurity = %v, want 0.8", got)
	}
	// Coverage: A best 10s, B best 6s -> 16/20.
	if got := score(t, c, DiarizationCoverage, ref, hyp); !approx(got, 0.8) {
		t.Fatalf("DiarCoverage = %v, want 0.8", got)
	}
}

func TestGreedyMappingCanBeWorseThanOptimal(t *testing.T) {
	// Greedy pairs x with A first (largest overlap) and leaves y with nothing.
	ref := build("a", seg(0, 900, "A"), seg(900, 1300, "B"))
	hyp := build("a", seg(0, 500, "x"), seg(500, 900, "y"), seg(900, 1300, "x"))
	c := NewCatalog(Options{})

	if got := score(t, c, DiarizationErrorRate, ref, hyp); !approx(got, 500.0/1300) {
		t.Fatalf("DER = %v, want %v", got, 500.0/1300)
	}
	if got := score(t, c, GreedyDiarizationErrorRate, ref, hyp); !approx(got, 800.0/1300) {
		t.Fatalf("GreedyDER = %v, want %v", got, 800.0/1300)
	}
}

func TestHungarianFindsMinimumAssignment(t *testing.T) {
	cost := [][]float64{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	got := hungarian(context.Background(), cost)
	want := []int{1, 0, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("hungarian() = %v, want %v", got, want)
	}
}

func TestCollarForgivesBoundaryErrors(t *testing.T) {
	ref := build("a", seg(0, 1000, "A"), seg(1000, 2000, "B"))
	hyp := build("a", seg(0, 1010, "x"), seg(1010, 2000, "y"))

	strict := score(t, NewCatalog(Options{}), DiarizationErrorRate, ref, hyp)
	if strict <= 0 {
		t.Fatalf("expected boundary error without collar, got %v", strict)
	}
	relaxed := score(t, NewCatalog(Options{Collar: 250 * time.Millisecond}), DiarizationErrorRate, ref, hyp)
	if !approx(relaxed, 0) {
		t.Fatalf("DER with collar = %v, want 0", relaxed)
	}
}

func TestSkipOverlapIgnoresOverlappedReference(t *testing.T) {
	ref := build("a", seg(0, 1000, "A"), seg(500, 1000, "B"))
	hyp := build("a", seg(0, 1000, "x"))

	withOverlap := score(t, NewCatalog(Options{}), DiarizationErrorRate, ref, hyp)
	if withOverlap <= 0 {
		t.Fatalf("expected missed overlap to count, got %v", withOverlap)
	}
	skipped := score(t, NewCatalog(Options{SkipOverlap: true}), DiarizationErrorRate, ref, hyp)
	if !approx(skipped, 0) {
		t.Fatalf("DER with skip overlap = %v, want 0", skipped)
	}
}

func TestSegmentationBoundaries(t *testing.T) {
	ref := build("a", seg(0, 1000, "A"), seg(1000, 2000, "B"), seg(2000, 3000, "A"))
	hyp := build("a", seg(0, 1020, "x"), seg(1020, 3000, "y"))

	strict := NewCatalog(Options{})
	if got := score(t, strict, SegmentationRecall, ref, hyp); !approx(got, 0) {
		t.Fatalf("SegRecall = %v, want 0", got)
	}
	tolerant := NewCatalog(Options{Collar: 500 * time.Millisecond})
	if got := score(t, tolerant, SegmentationPrecision, ref, hyp); !approx(got, 1) {
		t.Fatalf("SegPrecision = %v, want 1", got)
	}
	if got := score(t, tolerant, SegmentationRecall, ref, hyp); !approx(got, 0.5) {
		t.Fatalf("SegRecall = %v, want 0.5", got)
	}
	if got := score(t, strict, SegmentationCoverage, ref, hyp); got <= 0 || got > 1 {
		t.Fatalf("SegCoverage out of range: %v", got)
	}
}

func TestExpand(t *testing.T) {
	c := NewCatalog(Options{})

	got, err := c.Expand(" der, DetER ,der,cobertura,rtf")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{DiarizationErrorRate, DetectionErrorRate, DiarizationCoverage, RealTimeFactor}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expand() = %v, want %v", got, want)
	}

	all, err := c.Expand("all")
	if err != nil {
		t.Fatalf("Expand(all): %v", err)
	}
	for _, id := range all {
		def, _ := c.Lookup(id)
		if def.Family == FamilyIdentification {
			t.Fatalf("identification metric %s expanded while disabled", id)
		}
	}
	if all[len(all)-1] != RealTimeFactor {
		t.Fatalf("expected RTF last, got %v", all)
	}

	withID, _ := NewCatalog(Options{Identification: true}).Expand("all")
	if len(withID) != len(all)+3 {
		t.Fatalf("expected identification metrics when enabled: %v", withID)
	}

	if _, err := c.Expand("DER,bogus"); !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
	if _, err := c.Expand(" , "); err == nil {
		t.Fatal("expected error for empty metric list")
	}
}

func TestEvaluateSkipsExternalMetricsAndHonoursContext(t *testing.T) {
	ref := build("a", seg(0, 1000, "A"))
	c := NewCatalog(Options{})

	res, err := c.Evaluate(context.Background(), []string{DiarizationErrorRate, RealTimeFactor}, ref, ref)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if _, ok := res.Get(RealTimeFactor); ok {
		t.Fatal("expected RTF to be left to the caller")
	}
	if v, ok := res.Get(DiarizationErrorRate); !ok || !v.Applicable() {
		t.Fatalf("expected DER score, got %v", v)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Evaluate(ctx, []string{DiarizationErrorRate}, ref, ref); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOptionsWarnings(t *testing.T) {
	if w := (Options{Collar: 250 * time.Millisecond}).Warnings(); len(w) != 0 {
		t.Fatalf("unexpected warnings: %v", w)
	}
	if w := (Options{Collar: time.Second}).Warnings(); len(w) != 1 {
		t.Fatalf("expected collar warning, got %v", w)
	}
}

func TestValueDistinguishesZeroFromNA(t *testing.T) {
	zero := Score(0)
	na := NA()
	if zero == na {
		t.Fatal("zero score must differ from not applicable")
	}
	if zero.String() != "0.0000" || na.String() != NotApplicableText {
		t.Fatalf("unexpected rendering %q %q", zero, na)
	}
	res := AllNA([]string{"DER", "DetER"})
	if res.Len() != 2 || !reflect.DeepEqual(res.Names(), []string{"DER", "DetER"}) {
		t.Fatalf("unexpected AllNA result: %v", res.Names())
	}
}
