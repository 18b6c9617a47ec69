package models

import "errors"

// Data acquisition error taxonomy. Callers wrap these with context via
// fmt.Errorf("...: %w", err) and branch with errors.Is.
var (
	// ErrSourceExhausted means every provider in the chain failed for a
	// snapshot or history fetch. Recoverable: the caller degrades to an
	// empty or skipped result, never a batch failure.
	ErrSourceExhausted = errors.New("all market data sources exhausted")

	// ErrInsufficientHistory means a series has fewer bars than an
	// indicator needs. The symbol is excluded from the candidate pool;
	// its indicators are withheld rather than zeroed.
	ErrInsufficientHistory = errors.New("insufficient history for indicators")

	// ErrNoData means a fetch returned an empty result. The caller logs
	// and continues.
	ErrNoData = errors.New("no data returned")
)
