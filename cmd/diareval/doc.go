// Package main hosts the diareval CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, applies flag
// overrides, and drives discovery, evaluation, report writing and run
// history. Keep this package lean: add behaviour to the internal packages
// first, then surface it through commands or flags here.
package main
