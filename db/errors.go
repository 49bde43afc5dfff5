// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package db

import "errors"

// ArchiveError is the error type used by the archivist for certain
// recognized errors. Not all returned errors will be of this type.
type ArchiveError struct {
	Code   uint16
	Detail string
}

// The possible Code values in an ArchiveError.
const (
	ErrGeneralFailure uint16 = iota
	ErrUnknownOrder
	ErrUnknownMarket
	ErrNoCounterOrder
	ErrInvalidOrder
	ErrUnknownItem
	ErrUnknownWallet
	ErrInsufficientBalance
	ErrUnknownEntity
)

func (ae ArchiveError) Error() string {
	desc := "unrecognized error"
	switch ae.Code {
	case ErrGeneralFailure:
		desc = "general failure"
	case ErrUnknownOrder:
		desc = "unknown order"
	case ErrUnknownMarket:
		desc = "unknown market"
	case ErrNoCounterOrder:
		desc = "no eligible counter order"
	case ErrInvalidOrder:
		desc = "invalid order"
	case ErrUnknownItem:
		desc = "unknown item stack"
	case ErrUnknownWallet:
		desc = "unknown wallet"
	case ErrInsufficientBalance:
		desc = "insufficient balance"
	case ErrUnknownEntity:
		desc = "unknown entity"
	}

	if ae.Detail == "" {
		return desc
	}
	return desc + ": " + ae.Detail
}

// IsErrOrderUnknown returns true if the error is of type ArchiveError and has
// code ErrUnknownOrder.
func IsErrOrderUnknown(err error) bool {
	var errA ArchiveError
	if errors.As(err, &errA) {
		return errA.Code == ErrUnknownOrder
	}
	return false
}

// IsErrNoCounterOrder returns true if the error is of type ArchiveError and
// has code ErrNoCounterOrder.
func IsErrNoCounterOrder(err error) bool {
	var errA ArchiveError
	if errors.As(err, &errA) {
		return errA.Code == ErrNoCounterOrder
	}
	return false
}

// IsErrInsufficientBalance returns true if the error is of type ArchiveError
// and has code ErrInsufficientBalance.
func IsErrInsufficientBalance(err error) bool {
	var errA ArchiveError
	if errors.As(err, &errA) {
		return errA.Code == ErrInsufficientBalance
	}
	return false
}
