// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package econ

// ErrorKind identifies a kind of error that can be used to define new errors
// via const SomeError = econ.ErrorKind("something").
type ErrorKind string

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Market engine error kinds. Validation and access failures are rejected
// before any mutation. Consistency failures indicate a broken internal
// invariant and are surfaced rather than retried.
const (
	// ErrInvalidPrice is returned for a negative per-unit price.
	ErrInvalidPrice = ErrorKind("invalid price")
	// ErrInvalidQuantity is returned for a zero or otherwise impossible
	// order quantity.
	ErrInvalidQuantity = ErrorKind("invalid quantity")
	// ErrInsufficientFunds is returned when a wallet debit would leave a
	// negative balance.
	ErrInsufficientFunds = ErrorKind("insufficient funds")
	// ErrUnauthorized is returned for access failures such as a tax change
	// by a character without an authorized corporate role.
	ErrUnauthorized = ErrorKind("unauthorized")
	// ErrVendorOrder is returned when a player-initiated operation targets
	// an infrastructure vendor order.
	ErrVendorOrder = ErrorKind("vendor orders cannot be modified")
	// ErrCancelTooEarly is returned for a player cancel before the
	// cancel-protection window has elapsed.
	ErrCancelTooEarly = ErrorKind("order is too new to cancel")
	// ErrNotFound is returned when a referenced item, order or market
	// vanished between lookup and use.
	ErrNotFound = ErrorKind("not found")
	// ErrConsistency is a fatal internal invariant violation.
	ErrConsistency = ErrorKind("consistency failure")
	// ErrRetryable is a generic transient storage failure (deadlock,
	// transaction timeout) that the caller may retry.
	ErrRetryable = ErrorKind("temporary storage failure")
)

// Error pairs an error with details.
type Error struct {
	wrapped error
	detail  string
}

// Error satisfies the error interface, combining the wrapped error message
// with the details.
func (e Error) Error() string {
	return e.wrapped.Error() + ": " + e.detail
}

// Unwrap returns the wrapped error, allowing errors.Is and errors.As to work.
func (e Error) Unwrap() error {
	return e.wrapped
}

// NewError wraps the provided Error with details in a Error, facilitating the
// use of errors.Is and errors.As via errors.Unwrap.
func NewError(err error, detail string) Error {
	return Error{
		wrapped: err,
		detail:  detail,
	}
}
