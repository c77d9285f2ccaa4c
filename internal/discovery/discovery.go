// Package discovery enumerates the (audio, dataset, model configuration)
// triples present under a hypotheses root.
//
// The expected layout is {root}/{dataset}/{model}/{audio}.rttm. A file one
// level up, {root}/{model}/{audio}.rttm, belongs to a dataset-less run: its
// triple carries Dataset == Model and its reference lives directly under the
// reference root.
package discovery

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is the annotation file suffix, matched case-insensitively.
const Extension = ".rttm"

// FlatDataset is the dataset name pipelines write to the execution log for
// dataset-less runs.
const FlatDataset = "."

// Triple identifies one comparison unit.
type Triple struct {
	Audio   string
	Dataset string
	Model   string
}

// Flat reports whether the triple comes from a dataset-less layout.
func (t Triple) Flat() bool {
	return t.Dataset == t.Model
}

// AudioID is the audio file name without the annotation extension.
func (t Triple) AudioID() string {
	if strings.EqualFold(filepath.Ext(t.Audio), Extension) {
		return strings.TrimSuffix(t.Audio, filepath.Ext(t.Audio))
	}
	return t.Audio
}

// LogDataset is the dataset name used in execution-time logs.
func (t Triple) LogDataset() string {
	if t.Flat() {
		return FlatDataset
	}
	return t.Dataset
}

// HypothesisPath resolves the hypothesis annotation under root.
func (t Triple) HypothesisPath(root string) string {
	if t.Flat() {
		return filepath.Join(root, t.Model, t.Audio)
	}
	return filepath.Join(root, t.Dataset, t.Model, t.Audio)
}

// ReferencePath resolves the reference annotation under root.
func (t Triple) ReferencePath(root string) string {
	if t.Flat() {
		return filepath.Join(root, t.Audio)
	}
	return filepath.Join(root, t.Dataset, t.Audio)
}

func (t Triple) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Dataset, t.Model, t.Audio)
}

// Less orders triples by dataset, model, then audio.
func (t Triple) Less(o Triple) bool {
	if t.Dataset != o.Dataset {
		return t.Dataset < o.Dataset
	}
	if t.Model != o.Model {
		return t.Model < o.Model
	}
	return t.Audio < o.Audio
}

// resolve reports whether entry in dir is a directory or an annotation file.
// Symlinks are followed; dangling links count as neither.
func resolve(fsys fs.FS, dir string, entry fs.DirEntry) (isDir, isAnnotation bool) {
	mode := entry.Type()
	if mode&fs.ModeSymlink != 0 {
		info, err := fs.Stat(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return false, false
		}
		mode = info.Mode().Type()
	}
	if mode.IsDir() {
		return true, false
	}
	return false, mode.IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), Extension)
}

// Discover walks fsys two levels deep and returns every distinct triple,
// sorted. Files at the root itself are ignored.
func Discover(fsys fs.FS) ([]Triple, error) {
	top, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read hypotheses root: %w", err)
	}
	seen := make(map[Triple]struct{})
	add := func(t Triple) {
		seen[t] = struct{}{}
	}
	for _, first := range top {
		if isDir, _ := resolve(fsys, ".", first); !isDir {
			continue
		}
		entries, err := fs.ReadDir(fsys, first.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", first.Name(), err)
		}
		for _, second := range entries {
			isDir, isAnnotation := resolve(fsys, first.Name(), second)
			if isAnnotation {
				add(Triple{Audio: second.Name(), Dataset: first.Name(), Model: first.Name()})
				continue
			}
			if !isDir {
				continue
			}
			dir := path.Join(first.Name(), second.Name())
			files, err := fs.ReadDir(fsys, dir)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", dir, err)
			}
			for _, file := range files {
				if _, isAnnotation := resolve(fsys, dir, file); isAnnotation {
					add(Triple{Audio: file.Name(), Dataset: first.Name(), Model: second.Name()})
				}
			}
		}
	}
	out := make([]Triple, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}
