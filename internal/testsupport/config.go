package testsupport

import (
	"path/filepath"
	"testing"

	"diareval/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Input roots point at rttm and rttm_ref under the same base as NewTree uses.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.HypothesesDir = filepath.Join(base, "rttm")
	cfgVal.Paths.ReferenceDir = filepath.Join(base, "rttm_ref")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "state", "history.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTree points the input roots at tree.
func WithTree(tree *Tree) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.HypothesesDir = tree.Hypotheses
		b.cfg.Paths.ReferenceDir = tree.References
	}
}

// WithMetrics overrides the configured metric list.
func WithMetrics(metrics ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Evaluation.Metrics = metrics
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
