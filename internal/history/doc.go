// Package history persists evaluation runs in SQLite so earlier results can
// be listed and reprinted without re-scoring.
//
// Each run stores its parameters, one row per triple, and one score per
// metric. A not-applicable score is stored as NULL, keeping it distinct from
// a real zero.
package history
