// Package preflight verifies filesystem paths before an evaluation run.
//
// The evaluate command calls RunAll after flags are applied. A failed check
// aborts the run with a diagnostic naming the path, so no partial report is
// written for a mistyped root.
package preflight
