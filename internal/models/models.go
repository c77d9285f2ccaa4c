// Package models holds the known pretrained model names used by the
// diarization pipelines, each with the short aliases operators type on the
// command line and in folder names.
//
// Lookups ignore case and accept either the canonical name, its last path
// element (folder names cannot hold a slash) or any alias.
package models

import (
	"path"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Kind is the role a model plays inside a pipeline.
type Kind string

const (
	KindSegmentation Kind = "segmentation"
	KindEmbedding    Kind = "embedding"
	KindVAD          Kind = "vad"
	KindSpeaker      Kind = "speaker"
	KindMSDD         Kind = "msdd"
	KindClustering   Kind = "clustering"
)

// Model is one known model and the names that refer to it.
type Model struct {
	Kind    Kind
	Name    string
	Aliases []string
}

var known = []Model{
	{Kind: KindSegmentation, Name: "pyannote/segmentation", Aliases: []string{"v2_1", "segmentation2_1"}},
	{Kind: KindSegmentation, Name: "pyannote/segmentation-3.0", Aliases: []string{"v3_0", "segmentation3_0"}},
	{Kind: KindSegmentation, Name: "diarizers-community/speaker-segmentation-fine-tuned-callhome-spa", Aliases: []string{"diarizers", "callhome", "callhome_spain"}},

	{Kind: KindEmbedding, Name: "pyannote/embedding", Aliases: []string{"pyannote"}},
	{Kind: KindEmbedding, Name: "pyannote/wespeaker-voxceleb-resnet34-LM", Aliases: []string{"wespeaker", "resnet", "resnet34"}},
	{Kind: KindEmbedding, Name: "speechbrain/spkrec-ecapa-voxceleb", Aliases: []string{"ecapa", "spkrec", "ecapa_voxceleb"}},

	{Kind: KindClustering, Name: "centroid"},
	{Kind: KindClustering, Name: "average"},
	{Kind: KindClustering, Name: "complete"},
	{Kind: KindClustering, Name: "median"},
	{Kind: KindClustering, Name: "single"},
	{Kind: KindClustering, Name: "ward"},

	{Kind: KindVAD, Name: "oracle_vad", Aliases: []string{"oracle"}},
	{Kind: KindVAD, Name: "vad_multilingual_marblenet", Aliases: []string{"marble", "marblenet", "multilingual"}},

	{Kind: KindSpeaker, Name: "titanet_large", Aliases: []string{"large", "titanet_l", "titanet"}},
	{Kind: KindSpeaker, Name: "titanet_small", Aliases: []string{"small", "titanet_s"}},
	{Kind: KindSpeaker, Name: "ecapa_tdnn", Aliases: []string{"ecapa", "tdnn"}},
	{Kind: KindSpeaker, Name: "speakerverification_speakernet", Aliases: []string{"verification", "speakerverification", "speaker_verification", "speakernet"}},

	{Kind: KindMSDD, Name: "diar_infer_general", Aliases: []string{"general", "infer_general"}},
	{Kind: KindMSDD, Name: "diar_infer_meeting", Aliases: []string{"meeting", "infer_meeting"}},
	{Kind: KindMSDD, Name: "diar_infer_telephonic", Aliases: []string{"telephonic", "infer_telephonic"}},
}

// key folds s for lookup. Casers hold state, so each call gets its own.
func key(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Registry resolves model names within each kind.
type Registry struct {
	byKind map[Kind]map[string]Model
}

// Default returns a registry of every known model.
func Default() *Registry {
	return NewRegistry(known)
}

// NewRegistry indexes the given models. Later entries never shadow earlier
// ones for the same kind and key.
func NewRegistry(list []Model) *Registry {
	r := &Registry{byKind: make(map[Kind]map[string]Model)}
	for _, m := range list {
		names := r.byKind[m.Kind]
		if names == nil {
			names = make(map[string]Model)
			r.byKind[m.Kind] = names
		}
		for _, n := range append([]string{m.Name, path.Base(m.Name)}, m.Aliases...) {
			k := key(n)
			if _, exists := names[k]; !exists {
				names[k] = m
			}
		}
	}
	return r
}

// Lookup resolves name within kind.
func (r *Registry) Lookup(kind Kind, name string) (Model, bool) {
	m, ok := r.byKind[kind][key(name)]
	return m, ok
}

// Canonical returns the canonical name for name within kind, or name itself
// when it is unknown.
func (r *Registry) Canonical(kind Kind, name string) string {
	if m, ok := r.Lookup(kind, name); ok {
		return m.Name
	}
	return name
}

// Kinds lists the kinds present in the registry.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.byKind))
	for k := range r.byKind {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Models lists the distinct models of one kind sorted by name.
func (r *Registry) Models(kind Kind) []Model {
	seen := make(map[string]struct{})
	var out []Model
	for _, m := range r.byKind[kind] {
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
