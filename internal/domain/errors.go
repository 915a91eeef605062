package domain

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrNoBids          = errors.New("no bids found for auction")
)

// Lock errors
var (
	ErrLockContended = errors.New("lock is held by another caller")
	ErrLockNotOwned  = errors.New("lock is not owned by this token")
)

// Business rejections; routine control flow, never system faults.
var (
	ErrNotActive      = errors.New("auction is not active")
	ErrOutOfWindow    = errors.New("auction bidding window is not open")
	ErrAmountTooLow   = errors.New("bid amount does not exceed the floor")
	ErrAlreadyLeading = errors.New("bidder already holds the leading bid")
	ErrCannotCancel   = errors.New("auction can no longer be cancelled")
)

type RejectReason string

const (
	ReasonContended      RejectReason = "contended"
	ReasonNotFound       RejectReason = "notFound"
	ReasonNotActive      RejectReason = "notActive"
	ReasonOutOfWindow    RejectReason = "outOfWindow"
	ReasonAmountTooLow   RejectReason = "amountTooLow"
	ReasonAlreadyLeading RejectReason = "alreadyLeading"
)

// RejectReasonFor maps a bid rejection to its wire reason code. The
// second return is false for infrastructure faults, which have no
// reason code and propagate as errors.
func RejectReasonFor(err error) (RejectReason, bool) {
	switch {
	case errors.Is(err, ErrLockContended):
		return ReasonContended, true
	case errors.Is(err, ErrAuctionNotFound):
		return ReasonNotFound, true
	case errors.Is(err, ErrNotActive):
		return ReasonNotActive, true
	case errors.Is(err, ErrOutOfWindow):
		return ReasonOutOfWindow, true
	case errors.Is(err, ErrAmountTooLow):
		return ReasonAmountTooLow, true
	case errors.Is(err, ErrAlreadyLeading):
		return ReasonAlreadyLeading, true
	default:
		return "", false
	}
}
