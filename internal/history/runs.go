package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"diareval/internal/discovery"
	"diareval/internal/evaluation"
	"diareval/internal/metrics"
)

// ErrRunNotFound reports an unknown run identifier.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRunID reports a prefix that matches several runs.
var ErrAmbiguousRunID = errors.New("ambiguous run id")

// Run describes one evaluation run.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	HypothesesDir string
	ReferenceDir  string
	Metrics       []string
	Collar        time.Duration
	SkipOverlap   bool
	OutputPath    string
	RowCount      int
	ErrorCount    int
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, started_at, finished_at, hypotheses_dir, reference_dir, metrics, collar_ms, skip_overlap, output_path, row_count, error_count"

// Record stores run and its rows in one transaction. RowCount and ErrorCount
// are derived from rows; an empty ID is replaced by a new one.
func (s *Store) Record(ctx context.Context, run Run, rows []evaluation.MetricsByAudioFile) (Run, error) {
	ctx = ensureContext(ctx)
	if run.ID == "" {
		run.ID = NewRunID()
	}
	run.RowCount = len(rows)
	run.ErrorCount = 0
	for _, row := range rows {
		if row.Err != "" {
			run.ErrorCount++
		}
	}

	err := retryOnBusy(ctx, func() error {
		return s.record(ctx, run, rows)
	})
	if err != nil {
		return Run{}, fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return run, nil
}

func (s *Store) record(ctx context.Context, run Run, rows []evaluation.MetricsByAudioFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs ("+runColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.HypothesesDir,
		run.ReferenceDir,
		strings.Join(run.Metrics, ","),
		run.Collar.Milliseconds(),
		boolToInt(run.SkipOverlap),
		nullableString(run.OutputPath),
		run.RowCount,
		run.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rowStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO run_rows (run_id, position, audio, dataset, model, error_message) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer rowStmt.Close()
	scoreStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO run_scores (run_id, position, ordinal, metric, value) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer scoreStmt.Close()

	for pos, row := range rows {
		if _, err := rowStmt.ExecContext(ctx, run.ID, pos, row.Triple.Audio, row.Triple.Dataset, row.Triple.Model, nullableString(row.Err)); err != nil {
			return fmt.Errorf("insert row %s: %w", row.Triple, err)
		}
		for ordinal, name := range row.Metrics.Names() {
			value, _ := row.Metrics.Get(name)
			var stored any
			if score, ok := value.Float(); ok {
				stored = score
			}
			if _, err := scoreStmt.ExecContext(ctx, run.ID, pos, ordinal, name, stored); err != nil {
				return fmt.Errorf("insert score %s for %s: %w", name, row.Triple, err)
			}
		}
	}
	return tx.Commit()
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun returns the run whose ID equals id or, failing that, starts with it.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, ErrRunNotFound
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2", len(id), id)
	if err != nil {
		return Run{}, fmt.Errorf("lookup run: %w", err)
	}
	defer rows.Close()
	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRunID, id)
	}
}

// Rows rebuilds the stored rows of a run in their recorded order.
func (s *Store) Rows(ctx context.Context, runID string) ([]evaluation.MetricsByAudioFile, error) {
	ctx = ensureContext(ctx)
	rowRecords, err := s.db.QueryContext(ctx,
		"SELECT position, audio, dataset, model, error_message FROM run_rows WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	var out []evaluation.MetricsByAudioFile
	index := make(map[int]int)
	for rowRecords.Next() {
		var (
			pos    int
			triple discovery.Triple
			errMsg sql.NullString
		)
		if err := rowRecords.Scan(&pos, &triple.Audio, &triple.Dataset, &triple.Model, &errMsg); err != nil {
			_ = rowRecords.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		index[pos] = len(out)
		out = append(out, evaluation.MetricsByAudioFile{
			Triple:  triple,
			Config:  discovery.Decompose(triple.Model),
			Metrics: metrics.NewResult(),
			Err:     errMsg.String,
		})
	}
	if err := rowRecords.Err(); err != nil {
		_ = rowRecords.Close()
		return nil, err
	}
	_ = rowRecords.Close()

	scores, err := s.db.QueryContext(ctx,
		"SELECT position, metric, value FROM run_scores WHERE run_id = ? ORDER BY position, ordinal", runID)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer scores.Close()
	for scores.Next() {
		var (
			pos    int
			metric string
			value  sql.NullFloat64
		)
		if err := scores.Scan(&pos, &metric, &value); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		i, ok := index[pos]
		if !ok {
			continue
		}
		if value.Valid {
			out[i].Metrics.Set(metric, metrics.Score(value.Float64))
		} else {
			out[i].Metrics.Set(metric, metrics.NA())
		}
	}
	return out, scores.Err()
}

// Delete removes a run and its rows.
func (s *Store) Delete(ctx context.Context, runID string) error {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw string
		metricsRaw  string
		collarMS    int64
		skipOverlap int
		outputPath  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&startedRaw,
		&finishedRaw,
		&run.HypothesesDir,
		&run.ReferenceDir,
		&metricsRaw,
		&collarMS,
		&skipOverlap,
		&outputPath,
		&run.RowCount,
		&run.ErrorCount,
	); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	if metricsRaw != "" {
		run.Metrics = strings.Split(metricsRaw, ",")
	}
	run.Collar = time.Duration(collarMS) * time.Millisecond
	run.SkipOverlap = skipOverlap != 0
	run.OutputPath = outputPath.String
	return run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
