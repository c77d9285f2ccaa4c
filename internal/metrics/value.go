package metrics

import (
	"strconv"
)

// NotApplicableText is how a not-applicable value renders.
const NotApplicableText = "N/A"

// Value is a metric score or the not-applicable marker.
type Value struct {
	score      float64
	applicable bool
}

// Score wraps a computed metric score.
func Score(v float64) Value {
	return Value{score: v, applicable: true}
}

// NA returns the not-applicable marker.
func NA() Value {
	return Value{}
}

// Applicable reports whether the value carries a score.
func (v Value) Applicable() bool {
	return v.applicable
}

// Float returns the score and whether it is applicable.
func (v Value) Float() (float64, bool) {
	return v.score, v.applicable
}

func (v Value) String() string {
	if !v.applicable {
		return NotApplicableText
	}
	return strconv.FormatFloat(v.score, 'f', 4, 64)
}

// Result holds metric values keyed by metric name, remembering insertion order.
type Result struct {
	names  []string
	values map[string]Value
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{values: make(map[string]Value)}
}

// Set stores a value, keeping the position of an existing name.
func (r *Result) Set(name string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
}

// Get returns the value for name and whether it was set.
func (r *Result) Get(name string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Names returns metric names in insertion order.
func (r *Result) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of stored metrics.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// AllNA resolves every name to the not-applicable marker.
func AllNA(names []string) *Result {
	out := NewResult()
	for _, name := range names {
		out.Set(name, NA())
	}
	return out
}
