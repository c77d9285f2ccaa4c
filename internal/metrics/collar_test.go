package metrics

import (
	"context"
	"math/rand"
	"testing"
	"testing/quick"
	"time"

	"diareval/internal/annotation"
)

// randomAnnotation lays out non-overlapping turns per label so that every
// label track has multiplicity one.
func randomAnnotation(rng *rand.Rand, labels []string) *annotation.Annotation {
	ann := annotation.New("prop")
	for _, label := range labels {
		at := int64(rng.Intn(200))
		for turns := rng.Intn(4) + 1; turns > 0; turns-- {
			length := int64(rng.Intn(400) + 1)
			ann.Add(annotation.Interval{Start: at, End: at + length}, label)
			at += length + int64(rng.Intn(300)+1)
		}
	}
	return ann
}

func errorDurations(ref, hyp *annotation.Annotation, collar time.Duration) (detectionErr, diarizationErr int64) {
	p := newPair(context.Background(), ref, hyp, Options{Collar: collar})
	d := p.detection()
	return d.falseAlarm + d.missedDetected, p.mappedComponents(p.optimalMapping()).errorDuration()
}

func TestWiderCollarNeverAddsError(t *testing.T) {
	property := func(seed int64, a, b uint8) bool {
		rng := rand.New(rand.NewSource(seed))
		ref := randomAnnotation(rng, []string{"A", "B", "C"})
		hyp := randomAnnotation(rng, []string{"x", "y"})

		narrow := time.Duration(min(a, b)) * 10 * time.Millisecond
		wide := time.Duration(max(a, b)) * 10 * time.Millisecond

		detNarrow, diarNarrow := errorDurations(ref, hyp, narrow)
		detWide, diarWide := errorDurations(ref, hyp, wide)
		return detWide <= detNarrow && diarWide <= diarNarrow
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 200, Rand: rand.New(rand.NewSource(11))}); err != nil {
		t.Fatal(err)
	}
}

func TestIdentityScoresZeroForRandomAnnotations(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		ref := randomAnnotation(rng, []string{"A", "B", "C"})
		collar := time.Duration(rng.Intn(100)) * 10 * time.Millisecond
		c := NewCatalog(Options{Collar: collar, SkipOverlap: trial%2 == 0})
		for _, id := range []string{DiarizationErrorRate, DetectionErrorRate} {
			if got := score(t, c, id, ref, ref); got != 0 {
				t.Fatalf("trial %d: %s = %v, want 0", trial, id, got)
			}
		}
	}
}
