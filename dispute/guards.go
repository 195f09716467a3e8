package dispute

import (
	"fmt"
	"time"
	"unicode/utf8"

	"leaseflow/contract"
)

// EligibleVoter reports whether addr may still vote on the dispute: it must
// not be a contract party and must not appear among the existing votes.
func EligibleVoter(c contract.Record, votes []Vote, addr string) bool {
	if c.IsParty(addr) {
		return false
	}
	for _, v := range votes {
		if v.Voter == addr {
			return false
		}
	}
	return true
}

// ValidateEvidence checks the submission fields before anything touches the
// store. The blob must already be uploaded; the caption is bounded.
func ValidateEvidence(blobID, caption string) error {
	if blobID == "" {
		return ErrMissingFile
	}
	if n := utf8.RuneCountInString(caption); n > contract.CaptionMaxLen {
		return fmt.Errorf("%w: %d > %d", ErrCaptionTooLong, n, contract.CaptionMaxLen)
	}
	return nil
}

// ValidateVote applies the admission rules in order: eligibility, stake,
// deadline. hasVoted covers the persisted vote set; the caller must evaluate
// it under the dispute row lock.
func ValidateVote(c contract.Record, d Record, voter string, choice Choice, reason string, stake int64, hasVoted bool, now time.Time) error {
	if choice != ChoiceTenant && choice != ChoiceLandlord {
		return fmt.Errorf("dispute: unknown choice %q", choice)
	}
	if utf8.RuneCountInString(reason) > contract.CaptionMaxLen {
		return fmt.Errorf("dispute: reason exceeds %d characters", contract.CaptionMaxLen)
	}
	if c.IsParty(voter) || hasVoted {
		return ErrNotEligible
	}
	if stake != contract.RequiredStake {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidStake, stake, contract.RequiredStake)
	}
	if now.After(d.AppealDeadline) {
		return fmt.Errorf("%w: voting closed at %s", ErrDeadlinePassed, d.AppealDeadline.UTC().Format(time.RFC3339))
	}
	return nil
}
