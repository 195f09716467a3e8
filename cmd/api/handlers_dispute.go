package main

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leaseflow/dispute"
)

func (s *Server) handleAppeal(w http.ResponseWriter, r *http.Request) {
	rec, err := s.disputeService.FileAppeal(r.Context(), chi.URLParam(r, "contractID"), requestAddress(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if s.met != nil {
		s.met.AppealsTotal.Inc()
	}
	writeJSON(w, http.StatusCreated, toDisputeResponse(rec, nil, nil))
}

type submitEvidenceRequest struct {
	BlobID   string `json:"blobId"`
	MimeType string `json:"mimeType"`
	Caption  string `json:"caption"`
}

func (s *Server) handleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	var req submitEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	d, err := s.disputeService.GetByContract(r.Context(), chi.URLParam(r, "contractID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	ev, err := s.disputeService.SubmitEvidence(r.Context(), d.ID, dispute.SubmitEvidenceParams{
		Uploader: requestAddress(r),
		BlobID:   req.BlobID,
		MimeType: req.MimeType,
		Caption:  req.Caption,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if s.met != nil {
		s.met.EvidenceTotal.Inc()
	}
	writeJSON(w, http.StatusCreated, evidenceResponse{
		ID:        ev.ID,
		Uploader:  ev.Uploader,
		BlobID:    ev.BlobID,
		MimeType:  ev.MimeType,
		Caption:   ev.Caption,
		CreatedAt: ev.CreatedAt.UTC().Format(time.RFC3339),
	})
}

type castVoteRequest struct {
	Choice      string `json:"choice"`
	Reason      string `json:"reason"`
	StakeAmount int64  `json:"stakeAmount"`
	StakeTx     string `json:"stakeTx"`
	Attestation string `json:"attestation"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	attestation, err := hex.DecodeString(strings.TrimPrefix(req.Attestation, "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "attestation must be hex")
		return
	}

	d, err := s.disputeService.GetByContract(r.Context(), chi.URLParam(r, "contractID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	v, err := s.disputeService.CastVote(r.Context(), d.ID, dispute.CastVoteParams{
		Voter:       requestAddress(r),
		Choice:      dispute.Choice(req.Choice),
		Reason:      req.Reason,
		StakeAmount: req.StakeAmount,
		Receipt:     dispute.StakeReceipt{TxRef: req.StakeTx, Attestation: attestation},
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if s.met != nil {
		s.met.VotesTotal.WithLabelValues(string(v.Choice)).Inc()
	}
	writeJSON(w, http.StatusCreated, voteResponse{
		ID:          v.ID,
		Voter:       v.Voter,
		Choice:      string(v.Choice),
		Reason:      v.Reason,
		StakeAmount: v.StakeAmount,
		CreatedAt:   v.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// handleVoteStatus tells a jury client whether an address already voted.
func (s *Server) handleVoteStatus(w http.ResponseWriter, r *http.Request) {
	d, err := s.disputeService.GetByContract(r.Context(), chi.URLParam(r, "contractID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	voted, err := s.disputeService.HasVoted(r.Context(), d.ID, chi.URLParam(r, "address"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasVoted": voted})
}
