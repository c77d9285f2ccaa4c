package preflight

import (
	"fmt"
	"path/filepath"
	"strings"

	"diareval/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

func (r Result) String() string {
	return fmt.Sprintf("%s: %s", r.Name, r.Detail)
}

// RunAll checks the input roots, the report location and, when recordHistory
// is set, the history database location.
func RunAll(cfg *config.Config, outputPath string, recordHistory bool) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckReadableDirectory("Hypotheses directory", cfg.Paths.HypothesesDir),
		CheckReadableDirectory("Reference directory", cfg.Paths.ReferenceDir),
		CheckWritableLocation("Report output", filepath.Dir(outputPath)),
	}
	if recordHistory && strings.TrimSpace(cfg.Paths.HistoryDB) != "" {
		results = append(results, CheckWritableLocation("History database", filepath.Dir(cfg.Paths.HistoryDB)))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
