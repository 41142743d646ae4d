package services

import (
	"time"

	"auction-engine/internal/domain"
)

// ValidateBid checks a proposed bid against the auction snapshot the caller
// holds. It is pure: no I/O, no re-fetch, safe to call any number of times.
// Evaluating the time window against the snapshot rather than re-reading
// avoids a check/use gap; the coordinator's lock makes the snapshot current.
func ValidateBid(a *domain.Auction, amount int64, now time.Time) error {
	if !a.Active {
		return &domain.BidRejectedError{Reason: domain.RejectNotActive}
	}
	if now.Before(a.StartTime) {
		return &domain.BidRejectedError{Reason: domain.RejectNotStarted}
	}
	if now.After(a.EndTime) {
		return &domain.BidRejectedError{Reason: domain.RejectEnded}
	}
	if min := a.MinimumNextBid(); amount < min {
		return &domain.BidRejectedError{Reason: domain.RejectBelowMinimum, Minimum: min}
	}
	return nil
}
