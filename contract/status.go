package contract

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no contract row exists for the identifier.
	ErrNotFound = errors.New("contract: not found")
	// ErrInvalidTransition signals a status change outside the allowed edges.
	ErrInvalidTransition = errors.New("contract: invalid status transition")
	// ErrWrongAmount signals a deposit that does not match the contract amount.
	ErrWrongAmount = errors.New("contract: deposit amount mismatch")
	// ErrContractExpired signals a deposit attempted after the contract expiry.
	ErrContractExpired = errors.New("contract: expired")
	// ErrNotParticipant signals an actor that is not the required contract party.
	ErrNotParticipant = errors.New("contract: actor is not a contract party")
)

// transitions is the full edge set of the contract state machine. Anything
// not listed here is rejected.
var transitions = map[Status][]Status{
	StatusActive:    {StatusDeposited},
	StatusDeposited: {StatusCompleted, StatusExpired},
	StatusExpired:   {StatusDispute},
	StatusDispute:   {StatusResolved},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition (with the offending edge
// attached) unless from -> to is allowed.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// AppealDeadlineFor derives the end of the appeal window from its start.
func AppealDeadlineFor(windowStart time.Time) time.Time {
	return windowStart.Add(AppealWindow)
}

// CanAppeal reports whether an appeal may be filed against the contract at
// time now. The window closes exactly at windowStart+AppealWindow: the
// boundary instant itself is rejected.
func CanAppeal(rec Record, disputeExists bool, now time.Time) bool {
	if rec.Status != StatusExpired {
		return false
	}
	if rec.LandlordDecision == nil || *rec.LandlordDecision != DecisionWithheld {
		return false
	}
	if rec.AppealWindowStart == nil {
		return false
	}
	if !now.Before(AppealDeadlineFor(*rec.AppealWindowStart)) {
		return false
	}
	return !disputeExists
}
