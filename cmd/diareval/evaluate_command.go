package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"diareval/internal/config"
	"diareval/internal/discovery"
	"diareval/internal/evaluation"
	"diareval/internal/history"
	"diareval/internal/logging"
	"diareval/internal/metrics"
	"diareval/internal/models"
	"diareval/internal/preflight"
	"diareval/internal/report"
)

type evaluateFlags struct {
	hypotheses     string
	reference      string
	metrics        string
	collar         float64
	skipOverlap    bool
	identification bool
	workers        int
	timeout        time.Duration
	output         string
	format         string
	noHistory      bool
}

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var flags evaluateFlags

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score every hypothesis against its reference and write the report",
		Long: `Discover {hypotheses}/{dataset}/{model}/{audio}.rttm files, pair each with
{reference}/{dataset}/{audio}.rttm, compute the requested metrics and write
one row per triple to the report. Rows with N/A cells are highlighted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			effective, err := applyEvaluateFlags(cmd, *cfg, flags)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			run := &evaluateRun{
				cfg:           effective,
				recordHistory: !flags.noHistory,
				out:           cmd.OutOrStdout(),
				errOut:        cmd.ErrOrStderr(),
				logger:        logger,
			}
			return run.execute(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&flags.hypotheses, "hypotheses", "", "Hypotheses root (overrides paths.hypotheses_dir)")
	cmd.Flags().StringVar(&flags.reference, "reference", "", "Reference root (overrides paths.reference_dir)")
	cmd.Flags().StringVarP(&flags.metrics, "metrics", "m", "", `Comma-separated metric identifiers or "all"`)
	cmd.Flags().Float64Var(&flags.collar, "collar", 0, "Boundary tolerance in seconds")
	cmd.Flags().BoolVar(&flags.skipOverlap, "skip-overlap", false, "Ignore regions where the reference has overlapping speakers")
	cmd.Flags().BoolVar(&flags.identification, "identification", false, `Include identification metrics in "all"`)
	cmd.Flags().IntVarP(&flags.workers, "workers", "j", 0, "Parallel triple evaluations")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Per-triple evaluation budget, rounded up to whole seconds")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Report path (default {hypotheses}/../metrics/metrics.xlsx)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Report format: xlsx or csv")
	cmd.Flags().BoolVar(&flags.noHistory, "no-history", false, "Do not record this run in the history database")
	return cmd
}

// applyEvaluateFlags layers explicitly set flags over cfg and revalidates.
func applyEvaluateFlags(cmd *cobra.Command, cfg config.Config, flags evaluateFlags) (*config.Config, error) {
	changed := cmd.Flags().Changed
	expand := func(name, value string, dst *string) error {
		expanded, err := config.ExpandPath(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
		*dst = expanded
		return nil
	}

	if changed("hypotheses") {
		if err := expand("hypotheses", flags.hypotheses, &cfg.Paths.HypothesesDir); err != nil {
			return nil, err
		}
	}
	if changed("reference") {
		if err := expand("reference", flags.reference, &cfg.Paths.ReferenceDir); err != nil {
			return nil, err
		}
	}
	if changed("output") {
		if err := expand("output", flags.output, &cfg.Paths.OutputPath); err != nil {
			return nil, err
		}
	}
	if changed("metrics") {
		cfg.Evaluation.Metrics = []string{flags.metrics}
	}
	if changed("collar") {
		cfg.Evaluation.Collar = flags.collar
	}
	if changed("skip-overlap") {
		cfg.Evaluation.SkipOverlap = flags.skipOverlap
	}
	if changed("identification") {
		cfg.Evaluation.Identification = flags.identification
	}
	if changed("workers") {
		cfg.Evaluation.Workers = flags.workers
	}
	if changed("timeout") {
		cfg.Evaluation.TripleTimeoutSeconds = int((flags.timeout + time.Second - 1) / time.Second)
	}
	if changed("format") {
		cfg.Report.Format = strings.ToLower(strings.TrimSpace(flags.format))
	}

	if strings.TrimSpace(cfg.Paths.HypothesesDir) == "" {
		return nil, errors.New("hypotheses directory is not set (use --hypotheses or paths.hypotheses_dir)")
	}
	if strings.TrimSpace(cfg.Paths.ReferenceDir) == "" {
		return nil, errors.New("reference directory is not set (use --reference or paths.reference_dir)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// outputPath resolves the report location, switching the default extension
// to match a CSV report.
func outputPath(cfg *config.Config) string {
	if cfg.Paths.OutputPath != "" {
		return cfg.Paths.OutputPath
	}
	path := filepath.Clean(report.DefaultPath(cfg.Paths.HypothesesDir))
	if cfg.Report.Format == report.FormatCSV {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	}
	return path
}

type evaluateRun struct {
	cfg           *config.Config
	recordHistory bool
	out           io.Writer
	errOut        io.Writer
	logger        *slog.Logger
}

func (r *evaluateRun) execute(ctx context.Context) error {
	cfg := r.cfg
	output := outputPath(cfg)

	if failed := preflight.Failed(preflight.RunAll(cfg, output, r.recordHistory)); len(failed) > 0 {
		for _, result := range failed {
			fmt.Fprintln(r.errOut, result.String())
		}
		return fmt.Errorf("preflight failed: %d check(s) did not pass; no evaluation performed", len(failed))
	}

	runID := history.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(r.logger, "cli"))
	started := time.Now()

	catalog := metrics.NewCatalog(metrics.Options{
		Collar:         cfg.CollarDuration(),
		SkipOverlap:    cfg.Evaluation.SkipOverlap,
		Mapping:        cfg.Evaluation.IdentificationMapping,
		Identification: cfg.Evaluation.Identification,
	})
	for _, warning := range catalog.Options().Warnings() {
		logging.Warn(logger, warning, logging.Event{
			Type:   "configuration_warning",
			Impact: "scores may not be comparable with standard results",
			Hint:   "review evaluation settings",
		})
	}
	ids, err := catalog.Expand(cfg.MetricList())
	if err != nil {
		return err
	}

	triples, err := discovery.Discover(os.DirFS(cfg.Paths.HypothesesDir))
	if err != nil {
		return fmt.Errorf("discover hypotheses: %w", err)
	}
	if len(triples) == 0 {
		logging.Warn(logger, "no hypothesis annotations found", logging.Event{
			Type:   "discovery_empty",
			Impact: "report contains a header only",
			Hint:   "expected {dataset}/{model}/{audio}.rttm under the hypotheses root",
		}, logging.String("hypotheses_dir", cfg.Paths.HypothesesDir))
	}

	driver, err := evaluation.NewDriver(catalog, evaluation.Options{
		HypothesesDir: cfg.Paths.HypothesesDir,
		ReferenceDir:  cfg.Paths.ReferenceDir,
		Metrics:       ids,
		Workers:       cfg.Evaluation.Workers,
		TripleTimeout: cfg.TripleTimeout(),
	}, r.logger)
	if err != nil {
		return err
	}
	acc, err := driver.Run(ctx, triples)
	if err != nil {
		return err
	}
	rows := acc.Rows()

	table := report.Build(rows, models.Default())
	if err := report.Write(ctx, table, output, report.WriteOptions{
		Format:         cfg.Report.Format,
		HighlightColor: cfg.Report.HighlightColor,
	}); err != nil {
		return err
	}
	logger.Info("report written",
		logging.String(logging.FieldEventType, "report_written"),
		logging.String("path", output),
		logging.Int("rows", len(rows)),
	)

	run := history.Run{
		ID:            runID,
		StartedAt:     started,
		FinishedAt:    time.Now(),
		HypothesesDir: cfg.Paths.HypothesesDir,
		ReferenceDir:  cfg.Paths.ReferenceDir,
		Metrics:       ids,
		Collar:        cfg.CollarDuration(),
		SkipOverlap:   cfg.Evaluation.SkipOverlap,
		OutputPath:    output,
	}
	if r.recordHistory {
		run = r.record(ctx, logger, run, rows)
	}

	r.printSummary(run, rows, output)
	return nil
}

// record stores the run; a history failure is logged and does not fail the
// evaluation because the report is already written.
func (r *evaluateRun) record(ctx context.Context, logger *slog.Logger, run history.Run, rows []evaluation.MetricsByAudioFile) history.Run {
	store, err := history.Open(r.cfg)
	if err != nil {
		logging.Warn(logger, "history unavailable", logging.Event{
			Type:   "history_open_failed",
			Impact: "run not recorded in history",
			Hint:   "check paths.history_db or pass --no-history",
		}, logging.Error(err))
		return run
	}
	defer store.Close()

	recorded, err := store.Record(ctx, run, rows)
	if err != nil {
		logging.Warn(logger, "history write failed", logging.Event{
			Type:   "history_record_failed",
			Impact: "run not recorded in history",
		}, logging.Error(err))
		return run
	}
	return recorded
}

func (r *evaluateRun) printSummary(run history.Run, rows []evaluation.MetricsByAudioFile, output string) {
	errorsSeen := 0
	for _, row := range rows {
		if row.Err != "" {
			errorsSeen++
		}
	}
	fmt.Fprintf(r.out, "Run %s: %d triple(s), %d with errors\n", run.ID, len(rows), errorsSeen)
	fmt.Fprintf(r.out, "Report: %s\n", output)
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(r.out, renderSummary(evaluation.Summarize(rows)))
}

func renderSummary(summaries []evaluation.Summary) string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		mean := metrics.NotApplicableText
		if s.Scored > 0 {
			mean = strconv.FormatFloat(s.Mean, 'f', 4, 64)
		}
		rows = append(rows, []string{s.Metric, mean, strconv.Itoa(s.Scored), strconv.Itoa(s.NA)})
	}
	return renderTable(tableSpec{
		headers: []string{"Metric", "Mean", "Scored", "N/A"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	})
}
