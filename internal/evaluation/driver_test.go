package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"diareval/internal/discovery"
	"diareval/internal/logging"
	"diareval/internal/metrics"
	"diareval/internal/testsupport"
)

const nemoModel = "NeMo__oracle_vad+titanet_large"

func newDriver(t *testing.T, tree *testsupport.Tree, ids []string, mutate ...func(*Options)) *Driver {
	t.Helper()
	opts := Options{
		HypothesesDir: tree.Hypotheses,
		ReferenceDir:  tree.References,
		Metrics:       ids,
	}
	for _, m := range mutate {
		m(&opts)
	}
	d, err := NewDriver(metrics.NewCatalog(metrics.Options{}), opts, logging.NewNop())
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	return d
}

func value(t *testing.T, row MetricsByAudioFile, id string) metrics.Value {
	t.Helper()
	v, ok := row.Metrics.Get(id)
	if !ok {
		t.Fatalf("row %v has no %s", row.Triple, id)
	}
	return v
}

func TestEvaluateIdenticalAnnotations(t *testing.T) {
	tree := testsupport.NewTree(t)
	turns := []testsupport.Turn{{Start: 0, Duration: 5, Speaker: "A"}}
	tree.Hypothesis("ds", nemoModel, "a.rttm", turns...)
	tree.Reference("ds", "a.rttm", turns...)

	d := newDriver(t, tree, []string{metrics.DiarizationErrorRate, metrics.DetectionErrorRate})
	row := d.Evaluate(context.Background(), discovery.Triple{Audio: "a.rttm", Dataset: "ds", Model: nemoModel})

	if row.Err != "" {
		t.Fatalf("unexpected row error %q", row.Err)
	}
	if !reflect.DeepEqual(row.Metrics.Names(), []string{"DER", "DetER"}) {
		t.Fatalf("unexpected metric order %v", row.Metrics.Names())
	}
	for _, id := range []string{"DER", "DetER"} {
		if got, ok := value(t, row, id).Float(); !ok || got != 0 {
			t.Fatalf("%s = %v (applicable %v), want 0", id, got, ok)
		}
	}
	if row.Config.Family != discovery.FamilyNeMo || row.Config.First != "oracle_vad" {
		t.Fatalf("unexpected configuration %+v", row.Config)
	}
}

func TestEvaluateMissingReferenceIsNotApplicable(t *testing.T) {
	tree := testsupport.NewTree(t)
	tree.Hypothesis("ds", nemoModel, "a.rttm", testsupport.Turn{Start: 0, Duration: 5, Speaker: "A"})
	tree.ExecLog("nemo", "a.rttm "+nemoModel+" ds 2 4")

	d := newDriver(t, tree, []string{metrics.DiarizationErrorRate, metrics.RealTimeFactor})
	row := d.Evaluate(context.Background(), discovery.Triple{Audio: "a.rttm", Dataset: "ds", Model: nemoModel})

	if value(t, row, "DER").Applicable() {
		t.Fatal("DER must be not applicable without a reference")
	}
	if got, ok := value(t, row, "RTF").Float(); !ok || got != 0.5 {
		t.Fatalf("RTF = %v (applicable %v), want 0.5", got, ok)
	}
	if !strings.Contains(row.Err, ErrMissingAnnotation.Error()) {
		t.Fatalf("expected missing annotation note, got %q", row.Err)
	}
}

func TestEvaluateMissingHypothesisSkipsRTF(t *testing.T) {
	tree := testsupport.NewTree(t)
	tree.Reference("ds", "a.rttm", testsupport.Turn{Start: 0, Duration: 5, Speaker: "A"})
	tree.ExecLog("nemo", "a.rttm "+nemoModel+" ds 2 4")

	d := newDriver(t, tree, []string{metrics.RealTimeFactor})
	row := d.Evaluate(context.Background(), discovery.Triple{Audio: "a.rttm", Dataset: "ds", Model: nemoModel})
	if value(t, row, "RTF").Applicable() {
		t.Fatal("RTF must be not applicable without a hypothesis")
	}
}

func TestEvaluateRTFWithoutLogOrMatch(t *testing.T) {
	tree := testsupport.NewTree(t)
	turns := []testsupport.Turn{{Start: 0, Duration: 5, Speaker: "A"}}
	tree.Hypothesis("ds", nemoModel, "a.rttm", turns...)
	tree.Reference("ds", "a.rttm", turns...)
	tree.Hypothesis("ds", "Pyannote__v3_0+resnet34", "a.rttm", turns...)
	tree.ExecLog("nemo", "b.rttm "+nemoModel+" ds 2 4")

	d := newDriver(t, tree, []string{metrics.DiarizationErrorRate, metrics.RealTimeFactor})

	nemo := d.Evaluate(context.Background(), discovery.Triple{Audio: "a.rttm", Dataset: "ds", Model: nemoModel})
	if value(t, nemo, "RTF").Applicable() {
		t.Fatal("RTF must be not applicable when no log line matches")
	}
	pyannote := d.Evaluate(context.Background(), discovery.Triple{Audio: "a.rttm", Dataset: "ds", Model: "Pyannote__v3_0+resnet34"})
	if value(t, pyannote, "RTF").Applicable() {
		t.Fatal("RTF must be not applicable when the log is missing")
	}
	if got, _ := value(t, pyannote, "DER").Float(); got != 0 {
		t.Fatalf("DER = %v, want 0", got)
	}
	if pyannote.Err != "" {
		t.Fatalf("missing execution log must not mark the row: %q", pyannote.Err)
	}
}

func TestEvaluateFlatLayout(t *testing.T) {
	tree := testsupport.NewTree(t)
	tree.Hypothesis("", nemoModel, "a.rttm", testsupport.Turn{Start: 0, Duration: 4, Speaker: "x"})
	tree.Reference("", "a.rttm", testsupport.Turn{Start: 0, Duration: 4, Speaker: "A"})
	tree.ExecLog("nemo", "a.rttm "+nemoModel+" . 1 4")

	d := newDriver(t, tree, []string{metrics.DiarizationErrorRate, metrics.RealTimeFactor})
	row := d.Evaluate(context.Background(), discovery.Triple{Audio: "a.rttm", Dataset: nemoModel, Model: nemoModel})
	if got, ok := value(t, row, "DER").Float(); !ok || got != 0 {
		t.Fatalf("DER = %v, want 0", got)
	}
	if got, ok := value(t, row, "RTF").Float(); !ok || got != 0.25 {
		t.Fatalf("RTF = %v, want 0.25", got)
	}
}

func TestEvaluateMalformedAnnotationIsRecorded(t *testing.T) {
	tree := testsupport.NewTree(t)
	path := tree.Hypothesis("ds", nemoModel, "a.rttm")
	if err := os.WriteFile(path, []byte("SPEAKER a 1 zero\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tree.Reference("ds", "a.rttm", testsupport.Turn{Start: 0, Duration: 1, Speaker: "A"})

	d := newDriver(t, tree, []string{metrics.DiarizationErrorRate})
	row := d.Evaluate(context.Background(), discovery.Triple{Audio: "a.rttm", Dataset: "ds", Model: nemoModel})
	if !strings.HasPrefix(row.Err, "hypothesis:") {
		t.Fatalf("expected hypothesis parse error, got %q", row.Err)
	}
	if value(t, row, "DER").Applicable() {
		t.Fatal("DER must be not applicable for an unreadable hypothesis")
	}
}

func TestRunEvaluatesDiscoveredTriplesInOrder(t *testing.T) {
	tree := testsupport.NewTree(t)
	ref := []testsupport.Turn{{Start: 0, Duration: 10, Speaker: "A"}, {Start: 10, Duration: 10, Speaker: "B"}}
	for _, audio := range []string{"c.rttm", "a.rttm", "b.rttm"} {
		tree.Reference("ds", audio, ref...)
		tree.Hypothesis("ds", nemoModel, audio, testsupport.Turn{Start: 0, Duration: 20, Speaker: "x"})
	}

	triples, err := discovery.Discover(os.DirFS(tree.Hypotheses))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	d := newDriver(t, tree, []string{metrics.DiarizationErrorRate}, func(o *Options) { o.Workers = 2 })
	acc, err := d.Run(context.Background(), triples)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rows := acc.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, want := range []string{"a.rttm", "b.rttm", "c.rttm"} {
		if rows[i].Triple.Audio != want {
			t.Fatalf("row %d audio = %q, want %q", i, rows[i].Triple.Audio, want)
		}
		if got, _ := value(t, rows[i], "DER").Float(); math.Abs(got-0.5) > 1e-9 {
			t.Fatalf("row %d DER = %v, want 0.5", i, got)
		}
	}

	summary := Summarize(rows)
	if len(summary) != 1 || summary[0].Scored != 3 || math.Abs(summary[0].Mean-0.5) > 1e-9 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRunTimeoutYieldsNotApplicable(t *testing.T) {
	tree := testsupport.NewTree(t)
	turns := []testsupport.Turn{{Start: 0, Duration: 5, Speaker: "A"}}
	tree.Hypothesis("ds", nemoModel, "a.rttm", turns...)
	tree.Reference("ds", "a.rttm", turns...)

	d := newDriver(t, tree, []string{metrics.DiarizationErrorRate}, func(o *Options) { o.TripleTimeout = time.Nanosecond })
	acc, err := d.Run(context.Background(), []discovery.Triple{{Audio: "a.rttm", Dataset: "ds", Model: nemoModel}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rows := acc.Rows()
	if len(rows) != 1 || rows[0].Err != TimeoutMessage {
		t.Fatalf("expected timeout row, got %+v", rows)
	}
	if value(t, rows[0], "DER").Applicable() {
		t.Fatal("timed out triple must be not applicable")
	}
}

func TestRunTimeoutLeavesNoEvaluationRunning(t *testing.T) {
	tree := testsupport.NewTree(t)
	var ref, hyp []testsupport.Turn
	for i := 0; i < 3000; i++ {
		start := float64(i) * 0.5
		ref = append(ref, testsupport.Turn{Start: start, Duration: 0.3, Speaker: fmt.Sprintf("r%d", i%40)})
		hyp = append(hyp, testsupport.Turn{Start: start + 0.1, Duration: 0.3, Speaker: fmt.Sprintf("h%d", i%37)})
	}
	var triples []discovery.Triple
	for _, audio := range []string{"a.rttm", "b.rttm", "c.rttm"} {
		tree.Reference("ds", audio, ref...)
		tree.Hypothesis("ds", nemoModel, audio, hyp...)
		triples = append(triples, discovery.Triple{Audio: audio, Dataset: "ds", Model: nemoModel})
	}

	d := newDriver(t, tree, []string{metrics.DiarizationErrorRate, metrics.JaccardErrorRate}, func(o *Options) {
		o.Workers = 1
		o.TripleTimeout = time.Millisecond
	})
	before := runtime.NumGoroutine()
	acc, err := d.Run(context.Background(), triples)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if acc.Len() != len(triples) {
		t.Fatalf("expected %d rows, got %d", len(triples), acc.Len())
	}
	// A finished evaluation can take a moment to be reaped after its send.
	deadline := time.Now().Add(time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if after := runtime.NumGoroutine(); after > before {
		t.Fatalf("%d goroutines still running after Run returned (started with %d)", after, before)
	}
}

func TestRunCancelled(t *testing.T) {
	tree := testsupport.NewTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newDriver(t, tree, []string{metrics.DiarizationErrorRate})
	_, err := d.Run(ctx, []discovery.Triple{{Audio: "a.rttm", Dataset: "ds", Model: nemoModel}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewDriverRejectsUnknownMetric(t *testing.T) {
	tree := testsupport.NewTree(t)
	_, err := NewDriver(metrics.NewCatalog(metrics.Options{}), Options{
		HypothesesDir: tree.Hypotheses,
		ReferenceDir:  tree.References,
		Metrics:       []string{"bogus"},
	}, nil)
	if !errors.Is(err, metrics.ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
}
