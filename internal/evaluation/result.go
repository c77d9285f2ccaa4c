package evaluation

import (
	"sort"
	"sync"

	"diareval/internal/discovery"
	"diareval/internal/metrics"
)

// MetricsByAudioFile is the outcome of one triple.
type MetricsByAudioFile struct {
	Triple  discovery.Triple
	Config  discovery.Configuration
	Metrics *metrics.Result
	// Err holds a per-triple problem that did not abort the run.
	Err string
}

// Accumulator collects rows from concurrent workers.
type Accumulator struct {
	mu   sync.Mutex
	rows []MetricsByAudioFile
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends one row.
func (a *Accumulator) Add(row MetricsByAudioFile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, row)
}

// Len returns the number of rows collected so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rows)
}

// Rows returns a copy of the rows ordered by triple.
func (a *Accumulator) Rows() []MetricsByAudioFile {
	a.mu.Lock()
	out := make([]MetricsByAudioFile, len(a.rows))
	copy(out, a.rows)
	a.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Triple.Less(out[j].Triple) })
	return out
}

// Summary is the mean of each metric over the rows that scored it.
type Summary struct {
	Metric string
	Mean   float64
	Scored int
	NA     int
}

// Summarize averages every metric in first-appearance order.
func Summarize(rows []MetricsByAudioFile) []Summary {
	var order []string
	byName := make(map[string]*Summary)
	for _, row := range rows {
		if row.Metrics == nil {
			continue
		}
		for _, name := range row.Metrics.Names() {
			s, ok := byName[name]
			if !ok {
				s = &Summary{Metric: name}
				byName[name] = s
				order = append(order, name)
			}
			v, _ := row.Metrics.Get(name)
			score, ok := v.Float()
			if !ok {
				s.NA++
				continue
			}
			s.Mean += score
			s.Scored++
		}
	}
	out := make([]Summary, 0, len(order))
	for _, name := range order {
		s := byName[name]
		if s.Scored > 0 {
			s.Mean /= float64(s.Scored)
		}
		out = append(out, *s)
	}
	return out
}
