package domain

import "errors"

// Money-safety errors surfaced by the order executor. Batch cycles catch
// these per ticker and continue; they never abort a whole cycle.
var (
	// ErrInsufficientShares means the dollar budget buys less than one share.
	ErrInsufficientShares = errors.New("insufficient funds for a single share")

	// ErrInsufficientCash means the order cost exceeds available cash. The
	// executor re-checks this at execution time because the price may have
	// moved since sizing.
	ErrInsufficientCash = errors.New("insufficient cash for purchase")

	// ErrNoPosition means a sell was requested for a ticker that is not held.
	ErrNoPosition = errors.New("no position held for ticker")

	// ErrAlreadyHeld means a buy was requested for a ticker that already has
	// an open position. Positions are never averaged into or replaced.
	ErrAlreadyHeld = errors.New("position already held for ticker")
)
