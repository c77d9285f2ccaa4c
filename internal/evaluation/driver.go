package evaluation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"diareval/internal/annotation"
	"diareval/internal/discovery"
	"diareval/internal/exectime"
	"diareval/internal/logging"
	"diareval/internal/metrics"
	"diareval/internal/rttm"
)

// ErrMissingAnnotation marks a triple whose hypothesis or reference file does
// not exist. It is recorded on the row and never aborts a run.
var ErrMissingAnnotation = errors.New("annotation missing")

// TimeoutMessage is the row error recorded when a triple exceeds its budget.
const TimeoutMessage = "timeout"

const (
	DefaultWorkers       = 4
	DefaultTripleTimeout = 2 * time.Minute
)

// Options configures a Driver.
type Options struct {
	HypothesesDir string
	ReferenceDir  string
	// Metrics are canonical identifiers, usually from Catalog.Expand.
	Metrics       []string
	Workers       int
	TripleTimeout time.Duration
}

// Driver evaluates triples against a metric catalog.
type Driver struct {
	catalog *metrics.Catalog
	opts    Options
	logs    *exectime.Cache
	logger  *slog.Logger
}

// NewDriver validates opts against catalog.
func NewDriver(catalog *metrics.Catalog, opts Options, logger *slog.Logger) (*Driver, error) {
	if catalog == nil {
		return nil, errors.New("metric catalog is required")
	}
	if opts.HypothesesDir == "" || opts.ReferenceDir == "" {
		return nil, errors.New("hypotheses and reference directories are required")
	}
	if len(opts.Metrics) == 0 {
		return nil, errors.New("no metrics requested")
	}
	for _, id := range opts.Metrics {
		if _, ok := catalog.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %q", metrics.ErrUnknownMetric, id)
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.TripleTimeout <= 0 {
		opts.TripleTimeout = DefaultTripleTimeout
	}
	return &Driver{
		catalog: catalog,
		opts:    opts,
		logs:    exectime.NewCache(opts.HypothesesDir),
		logger:  logging.NewComponentLogger(logger, "evaluation"),
	}, nil
}

// Metrics returns the metric identifiers every row carries.
func (d *Driver) Metrics() []string {
	out := make([]string, len(d.opts.Metrics))
	copy(out, d.opts.Metrics)
	return out
}

func (d *Driver) wantsRTF() bool {
	for _, id := range d.opts.Metrics {
		if id == metrics.RealTimeFactor {
			return true
		}
	}
	return false
}

func (d *Driver) tripleLogger(ctx context.Context, t discovery.Triple) *slog.Logger {
	return logging.WithContext(ctx, d.logger).With(logging.Triple(t.Dataset, t.Model, t.Audio)...)
}

// load parses one annotation. A missing file yields (nil, nil).
func load(path, uri string) (*annotation.Annotation, error) {
	ann, err := rttm.ParseFile(path, uri)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return ann, err
}

// Evaluate scores one triple. Missing or unreadable annotations and metric
// failures are recorded on the row instead of being returned.
func (d *Driver) Evaluate(ctx context.Context, t discovery.Triple) MetricsByAudioFile {
	logger := d.tripleLogger(ctx, t)
	row := MetricsByAudioFile{
		Triple:  t,
		Config:  discovery.Decompose(t.Model),
		Metrics: metrics.AllNA(d.opts.Metrics),
	}

	hyp, err := load(t.HypothesisPath(d.opts.HypothesesDir), t.AudioID())
	if err != nil {
		row.Err = fmt.Sprintf("hypothesis: %v", err)
		logger.Warn("hypothesis annotation unreadable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "annotation_parse_failed"),
			logging.String(logging.FieldErrorHint, "check the RTTM file written by the pipeline"),
		)
		return row
	}
	ref, err := load(t.ReferencePath(d.opts.ReferenceDir), t.AudioID())
	if err != nil {
		row.Err = fmt.Sprintf("reference: %v", err)
		logger.Warn("reference annotation unreadable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "annotation_parse_failed"),
			logging.String(logging.FieldErrorHint, "check the reference RTTM file"),
		)
		return row
	}

	if hyp != nil && d.wantsRTF() {
		row.Metrics.Set(metrics.RealTimeFactor, d.realTimeFactor(logger, t, row.Config))
	}

	switch {
	case hyp == nil:
		row.Err = fmt.Sprintf("%v: hypothesis", ErrMissingAnnotation)
	case ref == nil:
		row.Err = fmt.Sprintf("%v: reference", ErrMissingAnnotation)
	}
	if row.Err != "" {
		logger.Debug("triple not applicable", logging.String("reason", row.Err))
		return row
	}

	scored, err := d.catalog.Evaluate(ctx, d.opts.Metrics, ref, hyp)
	if err != nil {
		row.Err = err.Error()
		if ctx.Err() == nil {
			logger.Warn("metric computation failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "metric_failed"),
				logging.String(logging.FieldImpact, "row reported as not applicable"),
			)
		}
		return row
	}
	for _, name := range scored.Names() {
		v, _ := scored.Get(name)
		row.Metrics.Set(name, v)
	}
	return row
}

// realTimeFactor looks up the pipeline's execution log. Unavailable logs are
// reported once per pipeline.
func (d *Driver) realTimeFactor(logger *slog.Logger, t discovery.Triple, cfg discovery.Configuration) metrics.Value {
	if !cfg.Family.Known() {
		return metrics.NA()
	}
	log, first, err := d.logs.Log(cfg.Family.LogName())
	if err != nil {
		if first {
			logging.Warn(logger, "execution log unavailable", logging.Event{
				Type:   "exec_log_unavailable",
				Impact: "RTF reported as N/A for this pipeline",
				Hint:   "check that the pipeline wrote " + exectime.Path(d.opts.HypothesesDir, cfg.Family.LogName()),
			},
				logging.Error(err),
				logging.String("pipeline", cfg.Family.LogName()),
			)
		}
		return metrics.NA()
	}
	ratio, ok := log.Ratio(exectime.Key{Audio: t.Audio, Model: t.Model, Dataset: t.LogDataset()})
	if !ok {
		return metrics.NA()
	}
	return metrics.Score(ratio)
}

// evaluateWithTimeout bounds one triple. A triple that runs out of time keeps
// only not-applicable values. It returns only after the evaluation goroutine
// has exited.
func (d *Driver) evaluateWithTimeout(ctx context.Context, t discovery.Triple) MetricsByAudioFile {
	tripleCtx, cancel := context.WithTimeout(ctx, d.opts.TripleTimeout)
	defer cancel()

	done := make(chan MetricsByAudioFile, 1)
	go func() {
		done <- d.Evaluate(tripleCtx, t)
	}()
	select {
	case row := <-done:
		if deadline, ok := tripleCtx.Deadline(); ok && !time.Now().Before(deadline) && ctx.Err() == nil {
			return d.timedOut(t)
		}
		return row
	case <-tripleCtx.Done():
		// Hold the worker slot until the abandoned evaluation notices the
		// cancellation, so no more than Workers triples compute at once.
		<-done
		if ctx.Err() == nil {
			return d.timedOut(t)
		}
		return MetricsByAudioFile{
			Triple:  t,
			Config:  discovery.Decompose(t.Model),
			Metrics: metrics.AllNA(d.opts.Metrics),
			Err:     ctx.Err().Error(),
		}
	}
}

func (d *Driver) timedOut(t discovery.Triple) MetricsByAudioFile {
	d.tripleLogger(context.Background(), t).Warn("triple evaluation timed out",
		logging.Duration("timeout", d.opts.TripleTimeout),
		logging.String(logging.FieldEventType, "triple_timeout"),
		logging.String(logging.FieldImpact, "row reported as not applicable"),
	)
	return MetricsByAudioFile{
		Triple:  t,
		Config:  discovery.Decompose(t.Model),
		Metrics: metrics.AllNA(d.opts.Metrics),
		Err:     TimeoutMessage,
	}
}

// Run evaluates every triple on a bounded worker pool. Cancelling ctx stops
// dispatch; the rows finished so far are returned with the context error.
func (d *Driver) Run(ctx context.Context, triples []discovery.Triple) (*Accumulator, error) {
	acc := NewAccumulator()
	start := time.Now()
	logger := logging.WithContext(ctx, d.logger)
	logger.Info("evaluation started",
		logging.String(logging.FieldEventType, "evaluation_start"),
		logging.Int("triples", len(triples)),
		logging.Int("workers", d.opts.Workers),
		logging.Int("metrics", len(d.opts.Metrics)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for _, t := range triples {
		t := t
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := d.evaluateWithTimeout(gctx, t)
			if err := gctx.Err(); err != nil {
				return err
			}
			acc.Add(row)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		logger.Warn("evaluation interrupted",
			logging.Error(err),
			logging.Int("completed", acc.Len()),
			logging.String(logging.FieldEventType, "evaluation_interrupted"),
		)
		return acc, fmt.Errorf("evaluation interrupted: %w", err)
	}
	logger.Info("evaluation completed",
		logging.String(logging.FieldEventType, "evaluation_complete"),
		logging.Int("rows", acc.Len()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return acc, nil
}
