package history_test

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"diareval/internal/config"
	"diareval/internal/discovery"
	"diareval/internal/evaluation"
	"diareval/internal/history"
	"diareval/internal/metrics"
	"diareval/internal/testsupport"
)

func openStore(t *testing.T, cfg *config.Config) *history.Store {
	t.Helper()
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRows() []evaluation.MetricsByAudioFile {
	scored := metrics.NewResult()
	scored.Set(metrics.DiarizationErrorRate, metrics.Score(0))
	scored.Set(metrics.RealTimeFactor, metrics.NA())
	scored.Set(metrics.JaccardErrorRate, metrics.Score(0.125))

	missing := metrics.AllNA([]string{metrics.DiarizationErrorRate, metrics.RealTimeFactor, metrics.JaccardErrorRate})

	return []evaluation.MetricsByAudioFile{
		{
			Triple:  discovery.Triple{Audio: "a.rttm", Dataset: "ami", Model: "NeMo__marblenet+titanet"},
			Config:  discovery.Decompose("NeMo__marblenet+titanet"),
			Metrics: scored,
		},
		{
			Triple:  discovery.Triple{Audio: "b.rttm", Dataset: "ami", Model: "NeMo__marblenet+titanet"},
			Config:  discovery.Decompose("NeMo__marblenet+titanet"),
			Metrics: missing,
			Err:     "annotation missing: reference",
		},
	}
}

func TestRecordAndReadBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := openStore(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run, err := store.Record(ctx, history.Run{
		StartedAt:     started,
		FinishedAt:    started.Add(1500 * time.Millisecond),
		HypothesesDir: cfg.Paths.HypothesesDir,
		ReferenceDir:  cfg.Paths.ReferenceDir,
		Metrics:       []string{"DER", "RTF", "JER"},
		Collar:        250 * time.Millisecond,
		SkipOverlap:   true,
		OutputPath:    "/tmp/metrics.xlsx",
	}, sampleRows())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if run.ID == "" || run.RowCount != 2 || run.ErrorCount != 1 {
		t.Fatalf("unexpected recorded run %+v", run)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !got.StartedAt.Equal(started) || got.Duration() != 1500*time.Millisecond {
		t.Fatalf("timestamps not preserved: %+v", got)
	}
	if got.Collar != 250*time.Millisecond || !got.SkipOverlap || got.OutputPath != "/tmp/metrics.xlsx" {
		t.Fatalf("parameters not preserved: %+v", got)
	}
	if !reflect.DeepEqual(got.Metrics, []string{"DER", "RTF", "JER"}) {
		t.Fatalf("metrics = %v", got.Metrics)
	}

	rows, err := store.Rows(ctx, run.ID)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	first := rows[0]
	if first.Triple.Audio != "a.rttm" || first.Config.Family != discovery.FamilyNeMo {
		t.Fatalf("unexpected first row %+v", first)
	}
	if !reflect.DeepEqual(first.Metrics.Names(), []string{"DER", "RTF", "JER"}) {
		t.Fatalf("metric order lost: %v", first.Metrics.Names())
	}
	der, _ := first.Metrics.Get("DER")
	if v, ok := der.Float(); !ok || v != 0 {
		t.Fatalf("zero DER must stay a score, got %v", der)
	}
	rtf, _ := first.Metrics.Get("RTF")
	if rtf.Applicable() {
		t.Fatalf("N/A RTF must stay N/A, got %v", rtf)
	}
	if rows[1].Err != "annotation missing: reference" {
		t.Fatalf("error not preserved: %q", rows[1].Err)
	}
}

func TestListRunsNewestFirstAndPrefixLookup(t *testing.T) {
	store := openStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ids := []string{"aaaa1111-0000-4000-8000-000000000000", "aaaa2222-0000-4000-8000-000000000000", "bbbb3333-0000-4000-8000-000000000000"}
	for i, id := range ids {
		started := base.Add(time.Duration(i) * time.Minute).Add(500 * time.Millisecond * time.Duration(i%2))
		if _, err := store.Record(ctx, history.Run{ID: id, StartedAt: started, FinishedAt: started, Metrics: []string{"DER"}}, nil); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected order %v", runs)
	}
	all, err := store.ListRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListRuns(0) = %d runs, %v", len(all), err)
	}

	run, err := store.GetRun(ctx, "bbbb")
	if err != nil || run.ID != ids[2] {
		t.Fatalf("prefix lookup = %v, %v", run.ID, err)
	}
	if _, err := store.GetRun(ctx, "aaaa"); !errors.Is(err, history.ErrAmbiguousRunID) {
		t.Fatalf("expected ErrAmbiguousRunID, got %v", err)
	}
	if _, err := store.GetRun(ctx, "cccc"); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	store := openStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	run, err := store.Record(ctx, history.Run{Metrics: []string{"DER"}}, sampleRows())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Delete(ctx, run.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	rows, err := store.Rows(ctx, run.ID)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected rows to be removed, got %d", len(rows))
	}
	if err := store.Delete(ctx, run.ID); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on second delete, got %v", err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := openStore(t, cfg)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", cfg.Paths.HistoryDB)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 999"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := history.Open(cfg); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
