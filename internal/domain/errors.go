package domain

import "errors"

// Error kinds returned across modules. Callers wrap them with context
// and test with errors.Is.
var (
	// ErrNotFound is returned when a holding or trade id does not exist
	ErrNotFound = errors.New("not found")

	// ErrQuoteUnavailable is returned when no market quote exists for an item
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrDataUnavailable is returned when the market data source fails
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientItems is returned when an allocation has fewer than two items
	ErrInsufficientItems = errors.New("at least two distinct items are required")

	// ErrInvalidPriceData is returned for series with non-positive or non-finite prices,
	// or too few observations to estimate statistics
	ErrInvalidPriceData = errors.New("invalid price data")

	// ErrOptimizationFailed is returned when the solver does not converge
	ErrOptimizationFailed = errors.New("optimization failed")

	// ErrInvalidInput is returned for malformed arguments
	ErrInvalidInput = errors.New("invalid input")
)
