// Package metrics implements the diarization metric catalog.
//
// Every metric is registered once under a canonical identifier and built into
// a scoring closure that captures the collar, overlap and label-mapping
// options of the run. Scores are computed over the interval arithmetic of
// package annotation after restricting both annotations to the evaluated
// region (collar windows around reference boundaries and, optionally,
// overlapped reference speech are removed).
//
// Families:
//   - detection: speech/non-speech only, labels collapsed
//   - segmentation: boundary agreement, labels ignored
//   - diarization: labels matched optimally (or greedily) before scoring
//   - identification: labels compared through a fixed external mapping
//   - performance: real-time factor, filled in by the evaluation driver
//
// A Value is either a score or the explicit not-applicable marker; the two
// never collapse into each other, so a zero score stays distinguishable from
// a missing one all the way into the report.
package metrics
