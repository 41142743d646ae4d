package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrIntentNotFound  = errors.New("purchase intent not found")
	ErrIntentExists    = errors.New("purchase intent already exists")

	// ErrVersionConflict means another mutation won the compare-and-swap.
	// Retryable: re-read, re-validate, try again.
	ErrVersionConflict = errors.New("auction version conflict")

	ErrAlreadyClosed = errors.New("auction already closed")
	ErrUnauthorized  = errors.New("requester may not close this auction")
)

type RejectReason string

const (
	RejectNotActive    RejectReason = "auction_not_active"
	RejectNotStarted   RejectReason = "auction_not_started"
	RejectEnded        RejectReason = "auction_ended"
	RejectBelowMinimum RejectReason = "below_minimum"
)

// BidRejectedError is a validation outcome, not a failure. For
// RejectBelowMinimum, Minimum carries the exact amount the caller must
// reach so it can be shown to the bidder.
type BidRejectedError struct {
	Reason  RejectReason
	Minimum int64
}

func (e *BidRejectedError) Error() string {
	if e.Reason == RejectBelowMinimum {
		return fmt.Sprintf("bid must be at least %d", e.Minimum)
	}
	return string(e.Reason)
}

// IsRejection reports whether err is a bid rejection (as opposed to a
// system error) and returns it typed if so.
func IsRejection(err error) (*BidRejectedError, bool) {
	var rej *BidRejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
