package metrics

import (
	"context"
	"sort"

	"diareval/internal/annotation"
)

// pair caches the derived views of one (reference, hypothesis) comparison so
// that several metrics can share them. Long computations stop early once ctx
// is done; their partial results are discarded by the caller.
type pair struct {
	ctx  context.Context
	opts Options

	rawRef *annotation.Annotation
	rawHyp *annotation.Annotation

	uem annotation.Timeline
	ref *annotation.Annotation
	hyp *annotation.Annotation

	cooc    *cooccurrence
	optimal map[string]string
	greedy  map[string]string
}

func newPair(ctx context.Context, ref, hyp *annotation.Annotation, opts Options) *pair {
	if ref == nil {
		ref = annotation.New("")
	}
	if hyp == nil {
		hyp = annotation.New("")
	}
	p := &pair{ctx: ctx, opts: opts, rawRef: ref, rawHyp: hyp}
	p.uem = evaluationRegion(ref, hyp, opts)
	p.ref = ref.Crop(p.uem)
	p.hyp = hyp.Crop(p.uem)
	return p
}

// evaluationRegion starts from the joint extent of both annotations and
// removes collar windows around reference boundaries and, when requested,
// overlapped reference speech.
func evaluationRegion(ref, hyp *annotation.Annotation, opts Options) annotation.Timeline {
	extent := ref.Timeline().Union(hyp.Timeline()).Extent()
	if extent.Empty() {
		return nil
	}
	region := annotation.Timeline{extent}

	if half := annotation.Units(opts.Collar) / 2; half > 0 {
		var windows annotation.Timeline
		for _, seg := range ref.Segments() {
			windows = append(windows,
				annotation.Interval{Start: seg.Start - half, End: seg.Start + half},
				annotation.Interval{Start: seg.End - half, End: seg.End + half},
			)
		}
		region = region.Subtract(windows)
	}
	if opts.SkipOverlap {
		region = region.Subtract(ref.Overlap())
	}
	return region
}

// piece is one elementary interval between consecutive boundaries of both
// annotations, with the label multiplicities active on each side.
type piece struct {
	duration int64
	ref      map[string]int
	hyp      map[string]int
}

type event struct {
	at    int64
	delta int
	label string
	ref   bool
}

// cancelCheckEvery is how many sweep steps run between context checks.
const cancelCheckEvery = 1024

// pieces sweeps both annotations and returns every elementary interval where
// at least one side is active. The sweep stops early when ctx is done.
func pieces(ctx context.Context, ref, hyp *annotation.Annotation) []piece {
	var events []event
	for _, seg := range ref.Segments() {
		events = append(events, event{seg.Start, 1, seg.Label, true}, event{seg.End, -1, seg.Label, true})
	}
	for _, seg := range hyp.Segments() {
		events = append(events, event{seg.Start, 1, seg.Label, false}, event{seg.End, -1, seg.Label, false})
	}
	if len(events) == 0 {
		return nil
	}
	sort.Slice(events, func(i, j int) bool { return events[i].at < events[j].at })

	activeRef := map[string]int{}
	activeHyp := map[string]int{}
	var out []piece
	for i, step := 0, 0; i < len(events); step++ {
		if step%cancelCheckEvery == 0 && ctx.Err() != nil {
			return out
		}
		at := events[i].at
		for ; i < len(events) && events[i].at == at; i++ {
			ev := events[i]
			active := activeHyp
			if ev.ref {
				active = activeRef
			}
			active[ev.label] += ev.delta
			if active[ev.label] == 0 {
				delete(active, ev.label)
			}
		}
		if i == len(events) {
			break
		}
		next := events[i].at
		if len(activeRef) == 0 && len(activeHyp) == 0 {
			continue
		}
		out = append(out, piece{duration: next - at, ref: cloneCounts(activeRef), hyp: cloneCounts(activeHyp)})
	}
	return out
}

func cloneCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (p *pair) cooccurrence() *cooccurrence {
	if p.cooc == nil {
		p.cooc = newCooccurrence(p.ctx, p.ref, p.hyp)
	}
	return p.cooc
}

func (p *pair) optimalMapping() map[string]string {
	if p.optimal == nil {
		p.optimal = p.cooccurrence().optimalMapping(p.ctx)
	}
	return p.optimal
}

func (p *pair) greedyMapping() map[string]string {
	if p.greedy == nil {
		p.greedy = p.cooccurrence().greedyMapping()
	}
	return p.greedy
}

// unmatchedPrefix keeps hypothesis labels that found no reference partner
// from colliding with a reference label of the same name.
const unmatchedPrefix = "\x00unmatched:"

// mapped relabels the hypothesis through mapping; labels without a partner
// get a prefix that can never match a reference label.
func mapped(hyp *annotation.Annotation, mapping map[string]string) *annotation.Annotation {
	full := make(map[string]string, len(mapping))
	for _, label := range hyp.Labels() {
		if target, ok := mapping[label]; ok {
			full[label] = target
			continue
		}
		full[label] = unmatchedPrefix + label
	}
	return hyp.Relabel(full)
}
