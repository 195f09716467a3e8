package dispute

import (
	"errors"
	"time"
)

// Choice is the side a juror votes for.
type Choice string

const (
	ChoiceTenant   Choice = "tenant"
	ChoiceLandlord Choice = "landlord"
)

var (
	// ErrNotFound signals that no dispute exists for the identifier.
	ErrNotFound = errors.New("dispute: not found")
	// ErrNotEligible signals a voter who is a contract party or already voted.
	ErrNotEligible = errors.New("dispute: voter not eligible")
	// ErrInvalidStake signals a stake that is not the required amount or a
	// receipt that failed verification.
	ErrInvalidStake = errors.New("dispute: invalid stake")
	// ErrDeadlinePassed signals an appeal or vote after the window closed.
	ErrDeadlinePassed = errors.New("dispute: deadline passed")
	// ErrCaptionTooLong signals an evidence caption over the limit.
	ErrCaptionTooLong = errors.New("dispute: caption too long")
	// ErrMissingFile signals evidence submitted without a blob reference.
	ErrMissingFile = errors.New("dispute: missing file")
	// ErrTieUnresolved signals a tally with no strict majority.
	ErrTieUnresolved = errors.New("dispute: tie vote unresolved")
	// ErrAlreadyResolved signals a resolution attempt on a settled dispute.
	ErrAlreadyResolved = errors.New("dispute: already resolved")
)

// Record mirrors the disputes table. One dispute per contract.
type Record struct {
	ID             string
	ContractID     string
	AppealedBy     string
	AppealOpenedAt time.Time
	AppealDeadline time.Time
	Winner         *Choice
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}

// Evidence mirrors the evidence table. Rows are append-only.
type Evidence struct {
	ID        string
	DisputeID string
	Uploader  string
	BlobID    string
	MimeType  string
	Caption   string
	CreatedAt time.Time
}

// Vote mirrors the votes table. At most one row per (dispute, voter).
type Vote struct {
	ID          string
	DisputeID   string
	Voter       string
	Choice      Choice
	Reason      *string
	StakeAmount int64
	StakeTx     string
	CreatedAt   time.Time
}

// Tally is the per-side vote count for a dispute.
type Tally struct {
	Tenant   int
	Landlord int
}

// Winner returns the strict-majority side, or false on a tie.
func (t Tally) Winner() (Choice, bool) {
	switch {
	case t.Tenant > t.Landlord:
		return ChoiceTenant, true
	case t.Landlord > t.Tenant:
		return ChoiceLandlord, true
	default:
		return "", false
	}
}
