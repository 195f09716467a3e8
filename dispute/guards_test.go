package dispute

import (
	"errors"
	"strings"
	"testing"
	"time"

	"leaseflow/contract"
)

const (
	landlordAddr = "0xcafe000000000000000000000000000000000000000000000000000000000001"
	tenantAddr   = "0xface000000000000000000000000000000000000000000000000000000000002"
	jurorAddr    = "0xbeef000000000000000000000000000000000000000000000000000000000003"
)

func testContract() contract.Record {
	return contract.Record{
		LandlordAddress: landlordAddr,
		TenantAddress:   tenantAddr,
		DepositAmount:   1000,
		Currency:        "SUI",
	}
}

func openDispute(deadline time.Time) Record {
	return Record{
		ID:             "d1",
		ContractID:     "c1",
		AppealedBy:     tenantAddr,
		AppealOpenedAt: deadline.Add(-contract.AppealWindow),
		AppealDeadline: deadline,
	}
}

func TestEligibleVoter_ExcludesParties(t *testing.T) {
	c := testContract()
	for _, addr := range []string{landlordAddr, tenantAddr} {
		if EligibleVoter(c, nil, addr) {
			t.Errorf("party %s must never be eligible", addr)
		}
		if EligibleVoter(c, []Vote{{Voter: jurorAddr}}, addr) {
			t.Errorf("party %s must never be eligible regardless of votes", addr)
		}
	}
	if !EligibleVoter(c, nil, jurorAddr) {
		t.Error("expected outside address to be eligible")
	}
}

func TestEligibleVoter_OneVotePerAddress(t *testing.T) {
	c := testContract()
	votes := []Vote{{Voter: jurorAddr, Choice: ChoiceTenant}}
	if EligibleVoter(c, votes, jurorAddr) {
		t.Error("expected prior voter to be ineligible")
	}
	if !EligibleVoter(c, votes, "0xother") {
		t.Error("expected fresh address to stay eligible")
	}
}

func TestValidateEvidence_CaptionBoundary(t *testing.T) {
	if err := ValidateEvidence("blob-1", strings.Repeat("a", 200)); err != nil {
		t.Fatalf("caption of 200 chars must pass, got %v", err)
	}
	err := ValidateEvidence("blob-1", strings.Repeat("a", 201))
	if !errors.Is(err, ErrCaptionTooLong) {
		t.Fatalf("expected ErrCaptionTooLong, got %v", err)
	}
}

func TestValidateEvidence_MissingBlob(t *testing.T) {
	if err := ValidateEvidence("", "caption"); !errors.Is(err, ErrMissingFile) {
		t.Fatalf("expected ErrMissingFile, got %v", err)
	}
}

func TestValidateVote_Eligibility(t *testing.T) {
	c := testContract()
	d := openDispute(time.Now().Add(24 * time.Hour))

	err := ValidateVote(c, d, landlordAddr, ChoiceTenant, "", contract.RequiredStake, false, time.Now())
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("landlord vote: expected ErrNotEligible, got %v", err)
	}
	err = ValidateVote(c, d, tenantAddr, ChoiceTenant, "", contract.RequiredStake, false, time.Now())
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("tenant vote: expected ErrNotEligible, got %v", err)
	}
	err = ValidateVote(c, d, jurorAddr, ChoiceTenant, "", contract.RequiredStake, true, time.Now())
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("second vote: expected ErrNotEligible, got %v", err)
	}
}

func TestValidateVote_Stake(t *testing.T) {
	c := testContract()
	d := openDispute(time.Now().Add(24 * time.Hour))

	err := ValidateVote(c, d, jurorAddr, ChoiceLandlord, "", contract.RequiredStake-1, false, time.Now())
	if !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("expected ErrInvalidStake, got %v", err)
	}
	if err := ValidateVote(c, d, jurorAddr, ChoiceLandlord, "", contract.RequiredStake, false, time.Now()); err != nil {
		t.Fatalf("expected valid vote, got %v", err)
	}
}

func TestValidateVote_Deadline(t *testing.T) {
	c := testContract()
	deadline := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	d := openDispute(deadline)

	if err := ValidateVote(c, d, jurorAddr, ChoiceTenant, "", contract.RequiredStake, false, deadline); err != nil {
		t.Fatalf("vote exactly at the deadline must pass, got %v", err)
	}
	err := ValidateVote(c, d, jurorAddr, ChoiceTenant, "", contract.RequiredStake, false, deadline.Add(time.Second))
	if !errors.Is(err, ErrDeadlinePassed) {
		t.Fatalf("expected ErrDeadlinePassed, got %v", err)
	}
}

func TestValidateVote_RuleOrder(t *testing.T) {
	// An ineligible voter with a bad stake after the deadline must still see
	// the eligibility error first.
	c := testContract()
	d := openDispute(time.Now().Add(-time.Hour))
	err := ValidateVote(c, d, landlordAddr, ChoiceTenant, "", 1, false, time.Now())
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected eligibility checked first, got %v", err)
	}
}

func TestValidateVote_ReasonLength(t *testing.T) {
	c := testContract()
	d := openDispute(time.Now().Add(24 * time.Hour))
	err := ValidateVote(c, d, jurorAddr, ChoiceTenant, strings.Repeat("x", 201), contract.RequiredStake, false, time.Now())
	if err == nil {
		t.Fatal("expected over-long reason to be rejected")
	}
}

func TestTally_Winner(t *testing.T) {
	cases := []struct {
		tally  Tally
		winner Choice
		ok     bool
	}{
		{Tally{Tenant: 3, Landlord: 1}, ChoiceTenant, true},
		{Tally{Tenant: 1, Landlord: 4}, ChoiceLandlord, true},
		{Tally{Tenant: 2, Landlord: 2}, "", false},
		{Tally{}, "", false},
	}
	for _, tc := range cases {
		winner, ok := tc.tally.Winner()
		if winner != tc.winner || ok != tc.ok {
			t.Errorf("tally %+v: got (%s,%v), want (%s,%v)", tc.tally, winner, ok, tc.winner, tc.ok)
		}
	}
}
