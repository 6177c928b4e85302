package engine

import "errors"

// Rejected intents. None of them change engine state except
// ErrStaleSelection, which also clears the pending visit.
var (
	ErrUnknownStation   = errors.New("unknown station")
	ErrInvalidSelection = errors.New("venue is not in the current venue set")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrNoPendingVisit   = errors.New("no pending visit")
	ErrSubmitInFlight   = errors.New("a visit submission is already in flight")
	ErrStaleSelection   = errors.New("pending visit refers to a venue no longer in view")
)
