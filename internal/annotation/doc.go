// Package annotation models speaker-labelled time segments and the interval
// set arithmetic the metric catalog is built on.
//
// Times are integer centiseconds so that boundary comparisons never depend on
// floating point rounding. An Annotation keeps overlapping segments as-is
// (simultaneous speech); Timeline values are the merged, label-free view used
// for union, intersection and subtraction.
package annotation
