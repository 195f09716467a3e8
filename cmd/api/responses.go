package main

import (
	"time"

	"leaseflow/contract"
	"leaseflow/dispute"
)

type contractResponse struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	LandlordAddress   string           `json:"landlordAddress"`
	TenantAddress     string           `json:"tenantAddress"`
	DepositAmount     int64            `json:"depositAmount"`
	Currency          string           `json:"currency"`
	ExpiresAt         string           `json:"expiresAt"`
	Terms             string           `json:"terms"`
	EscrowAddress     string           `json:"escrowAddress,omitempty"`
	Status            string           `json:"status"`
	LandlordDecision  *string          `json:"landlordDecision,omitempty"`
	AppealWindowStart *string          `json:"appealWindowStart,omitempty"`
	CreatedAt         string           `json:"createdAt"`
	Dispute           *disputeResponse `json:"dispute,omitempty"`
}

type contractSummaryResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	DepositAmount int64  `json:"depositAmount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	ExpiresAt     string `json:"expiresAt"`
	CreatedAt     string `json:"createdAt"`
}

type disputeResponse struct {
	ID             string             `json:"id"`
	ContractID     string             `json:"contractId"`
	AppealedBy     string             `json:"appealedBy"`
	AppealOpenedAt string             `json:"appealOpenedAt"`
	AppealDeadline string             `json:"appealDeadline"`
	Winner         *string            `json:"winner,omitempty"`
	ResolvedAt     *string            `json:"resolvedAt,omitempty"`
	Evidence       []evidenceResponse `json:"evidence,omitempty"`
	Votes          []voteResponse     `json:"votes,omitempty"`
}

type evidenceResponse struct {
	ID        string `json:"id"`
	Uploader  string `json:"uploader"`
	BlobID    string `json:"blobId"`
	MimeType  string `json:"mimeType"`
	Caption   string `json:"caption,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type voteResponse struct {
	ID          string  `json:"id"`
	Voter       string  `json:"voter"`
	Choice      string  `json:"choice"`
	Reason      *string `json:"reason,omitempty"`
	StakeAmount int64   `json:"stakeAmount"`
	CreatedAt   string  `json:"createdAt"`
}

func toContractResponse(rec contract.Record) contractResponse {
	resp := contractResponse{
		ID:              rec.ID,
		Title:           rec.Title,
		LandlordAddress: rec.LandlordAddress,
		TenantAddress:   rec.TenantAddress,
		DepositAmount:   rec.DepositAmount,
		Currency:        rec.Currency,
		ExpiresAt:       rec.ExpiresAt.UTC().Format(time.RFC3339),
		Terms:           rec.Terms,
		EscrowAddress:   rec.EscrowAddress,
		Status:          string(rec.Status),
		CreatedAt:       rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.LandlordDecision != nil {
		d := string(*rec.LandlordDecision)
		resp.LandlordDecision = &d
	}
	if rec.AppealWindowStart != nil {
		ts := rec.AppealWindowStart.UTC().Format(time.RFC3339)
		resp.AppealWindowStart = &ts
	}
	return resp
}

func toContractSummaryResponse(sum contract.Summary) contractSummaryResponse {
	return contractSummaryResponse{
		ID:            sum.ID,
		Title:         sum.Title,
		DepositAmount: sum.DepositAmount,
		Currency:      sum.Currency,
		Status:        string(sum.Status),
		ExpiresAt:     sum.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:     sum.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toDisputeResponse(rec dispute.Record, evidence []dispute.Evidence, votes []dispute.Vote) disputeResponse {
	resp := disputeResponse{
		ID:             rec.ID,
		ContractID:     rec.ContractID,
		AppealedBy:     rec.AppealedBy,
		AppealOpenedAt: rec.AppealOpenedAt.UTC().Format(time.RFC3339),
		AppealDeadline: rec.AppealDeadline.UTC().Format(time.RFC3339),
	}
	if rec.Winner != nil {
		w := string(*rec.Winner)
		resp.Winner = &w
	}
	if rec.ResolvedAt != nil {
		ts := rec.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &ts
	}
	for _, ev := range evidence {
		resp.Evidence = append(resp.Evidence, evidenceResponse{
			ID:        ev.ID,
			Uploader:  ev.Uploader,
			BlobID:    ev.BlobID,
			MimeType:  ev.MimeType,
			Caption:   ev.Caption,
			CreatedAt: ev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, v := range votes {
		resp.Votes = append(resp.Votes, voteResponse{
			ID:          v.ID,
			Voter:       v.Voter,
			Choice:      string(v.Choice),
			Reason:      v.Reason,
			StakeAmount: v.StakeAmount,
			CreatedAt:   v.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}
