package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Turn is one speaker turn in seconds, used to author RTTM fixtures.
type Turn struct {
	Start    float64
	Duration float64
	Speaker  string
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// RTTM renders turns as SPEAKER lines.
func RTTM(uri string, turns ...Turn) []byte {
	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "SPEAKER %s 1 %.3f %.3f <NA> <NA> %s <NA> <NA>\n", uri, turn.Start, turn.Duration, turn.Speaker)
	}
	return []byte(b.String())
}

// WriteRTTM writes an RTTM fixture for the given turns.
func WriteRTTM(t testing.TB, path string, turns ...Turn) {
	t.Helper()
	uri := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	WriteFile(t, path, RTTM(uri, turns...))
}

// Tree is a pair of hypotheses and reference roots in a temp directory.
type Tree struct {
	t          testing.TB
	Hypotheses string
	References string
}

// NewTree creates empty hypotheses and reference roots.
func NewTree(t testing.TB) *Tree {
	t.Helper()
	base := t.TempDir()
	tree := &Tree{
		t:          t,
		Hypotheses: filepath.Join(base, "rttm"),
		References: filepath.Join(base, "rttm_ref"),
	}
	for _, dir := range []string{tree.Hypotheses, tree.References} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return tree
}

// Hypothesis writes {hyp}/{dataset}/{model}/{audio}. An empty dataset writes
// the dataset-less layout {hyp}/{model}/{audio}.
func (tr *Tree) Hypothesis(dataset, model, audio string, turns ...Turn) string {
	tr.t.Helper()
	path := filepath.Join(tr.Hypotheses, dataset, model, audio)
	WriteRTTM(tr.t, path, turns...)
	return path
}

// Reference writes {ref}/{dataset}/{audio}, or {ref}/{audio} when dataset is
// empty.
func (tr *Tree) Reference(dataset, audio string, turns ...Turn) string {
	tr.t.Helper()
	path := filepath.Join(tr.References, dataset, audio)
	WriteRTTM(tr.t, path, turns...)
	return path
}

// ExecLog appends lines to the execution-time log of pipeline.
func (tr *Tree) ExecLog(pipeline string, lines ...string) string {
	tr.t.Helper()
	path := filepath.Join(tr.Hypotheses, strings.ToUpper(pipeline)+"_exec_time.txt")
	WriteFile(tr.t, path, []byte(strings.Join(lines, "\n")+"\n"))
	return path
}
