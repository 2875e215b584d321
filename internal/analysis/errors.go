// Package analysis defines the error kinds shared by every analyzer.
// Callers match kinds with eris.Is to distinguish bad input from missing
// data from a failed computation; no analyzer lets a panic or an
// unclassified error cross its public boundary.
package analysis

import "github.com/rotisserie/eris"

var (
	// ErrInvalidInput marks a request rejected before any computation ran.
	ErrInvalidInput = eris.New("invalid input")

	// ErrNoData marks an analysis that ran against an empty or missing
	// source (no municipalities in range, raster absent, no valid pixels).
	ErrNoData = eris.New("no data")

	// ErrComputation marks a failure inside the computation itself
	// (malformed raster, unsupported projection, arithmetic error).
	ErrComputation = eris.New("computation failed")
)
