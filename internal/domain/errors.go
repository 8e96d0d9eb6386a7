package domain

import "errors"

// Error kinds shared by the scoring, backtest and order paths.
// Wrap them with fmt.Errorf("...: %w", kind) and test with errors.Is.
var (
	// ErrDataUnavailable means no candles exist for an instrument or window.
	// Recoverable by skipping the item.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInvalidParameter means a computed price is non-positive or an input bound is malformed.
	// Recoverable by skipping or rejecting the input.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrExternalService means a market-data, broker or parameter-store call failed or timed out.
	// Retried on the next cycle; fatal during run bootstrap.
	ErrExternalService = errors.New("external service error")

	// ErrPersistence means a storage read or write for orders or trades failed.
	ErrPersistence = errors.New("persistence error")

	// ErrDuplicateSubmission means a second paired SELL was about to be created for a BUY.
	ErrDuplicateSubmission = errors.New("duplicate submission")
)

// IsSkippable reports whether err only invalidates the current item
// (bond, day, order) rather than the whole run.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrDataUnavailable) || errors.Is(err, ErrInvalidParameter)
}
