package contract

import "time"

// Status enumerates the lifecycle states of a rental deposit contract.
type Status string

const (
	StatusActive    Status = "active"
	StatusDeposited Status = "deposited"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusDispute   Status = "dispute"
	StatusResolved  Status = "resolved"
)

// Decision is the landlord's call on the deposit at lease end.
type Decision string

const (
	DecisionReleased Decision = "released"
	DecisionWithheld Decision = "withheld"
)

// Policy constants shared by the lifecycle and dispute packages.
const (
	// RequiredStake is the fixed stake (in contract currency units) a juror
	// locks to cast a vote.
	RequiredStake int64 = 10
	// AppealWindow is how long the tenant has to contest a withholding
	// decision, counted from appeal_window_start.
	AppealWindow = 7 * 24 * time.Hour
	// CaptionMaxLen bounds evidence captions and vote reasons.
	CaptionMaxLen = 200
	// TieExtension is how far the sweeper pushes the voting deadline when
	// the tally is tied at expiry.
	TieExtension = 72 * time.Hour
)

// Record mirrors the contracts table.
type Record struct {
	ID                string
	Title             string
	LandlordAddress   string
	TenantAddress     string
	DepositAmount     int64
	Currency          string
	ExpiresAt         time.Time
	Terms             string
	EscrowAddress     string
	Status            Status
	LandlordDecision  *Decision
	AppealWindowStart *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Summary is the listing projection returned by List.
type Summary struct {
	ID            string
	Title         string
	DepositAmount int64
	Currency      string
	Status        Status
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// IsParty reports whether addr is the landlord or tenant of the contract.
func (r Record) IsParty(addr string) bool {
	return addr == r.LandlordAddress || addr == r.TenantAddress
}
