package dispute

// SettlementCommand is one transfer the settlement layer must execute when
// a dispute resolves. The batch for a resolution is written to the outbox in
// the resolution transaction; the settlement layer must apply the whole
// batch atomically.
type SettlementCommand struct {
	Kind      string `json:"kind"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

const (
	// CommandDepositPayout moves the escrowed deposit to the winning party.
	CommandDepositPayout = "deposit_payout"
	// CommandStakeReturn returns a winning voter's stake plus reward share.
	CommandStakeReturn = "stake_return"
	// CommandEscrowRetain keeps the indivisible reward remainder in escrow.
	CommandEscrowRetain = "escrow_retain"
)

// buildSettlement computes the transfer batch for a resolved dispute:
// the deposit goes to the winning side, winning voters get their stake back
// plus an equal share of the losing stakes, and any remainder from the
// integer split stays with the escrow wallet.
func buildSettlement(c lockedContract, winner Choice, votes []Vote) []SettlementCommand {
	payoutTo := c.TenantAddress
	if winner == ChoiceLandlord {
		payoutTo = c.LandlordAddress
	}

	commands := []SettlementCommand{{
		Kind:      CommandDepositPayout,
		Recipient: payoutTo,
		Amount:    c.DepositAmount,
	}}

	var winners []Vote
	var losingPool int64
	for _, v := range votes {
		if v.Choice == winner {
			winners = append(winners, v)
		} else {
			losingPool += v.StakeAmount
		}
	}

	var reward, remainder int64
	if len(winners) > 0 {
		reward = losingPool / int64(len(winners))
		remainder = losingPool % int64(len(winners))
	}

	for _, v := range winners {
		commands = append(commands, SettlementCommand{
			Kind:      CommandStakeReturn,
			Recipient: v.Voter,
			Amount:    v.StakeAmount + reward,
			Reference: v.StakeTx,
		})
	}
	if remainder > 0 {
		commands = append(commands, SettlementCommand{
			Kind:      CommandEscrowRetain,
			Recipient: c.EscrowAddress,
			Amount:    remainder,
		})
	}
	return commands
}
