package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"leaseflow/contract"
	"leaseflow/dispute"
)

type createContractRequest struct {
	Title         string `json:"title"`
	TenantAddress string `json:"tenantAddress"`
	DepositAmount int64  `json:"depositAmount"`
	Currency      string `json:"currency"`
	ExpiresAt     string `json:"expiresAt"`
	Terms         string `json:"terms"`
	EscrowAddress string `json:"escrowAddress"`
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "expiresAt must be RFC3339")
		return
	}

	rec, err := s.contractService.Create(r.Context(), contract.CreateParams{
		Title:           req.Title,
		LandlordAddress: requestAddress(r),
		TenantAddress:   req.TenantAddress,
		DepositAmount:   req.DepositAmount,
		Currency:        req.Currency,
		ExpiresAt:       expiresAt,
		Terms:           req.Terms,
		EscrowAddress:   req.EscrowAddress,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractResponse(rec))
}

// handleContract returns a contract with its dispute, evidence, and votes
// nested, matching what the dispute view renders in one fetch.
func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	contractID := chi.URLParam(r, "contractID")

	rec, err := s.contractService.Get(r.Context(), contractID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := toContractResponse(rec)

	d, err := s.disputeService.GetByContract(r.Context(), contractID)
	switch {
	case err == nil:
		evidence, err := s.disputeService.ListEvidence(r.Context(), d.ID, dispute.OrderNewestFirst)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		votes, err := s.disputeService.ListVotes(r.Context(), d.ID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		nested := toDisputeResponse(d, evidence, votes)
		resp.Dispute = &nested
	case errors.Is(err, dispute.ErrNotFound):
		// no dispute yet
	default:
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	filters := contract.ListFilters{
		Status: contract.Status(r.URL.Query().Get("status")),
	}
	if page := r.URL.Query().Get("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil {
			writeError(w, http.StatusBadRequest, "page must be an integer")
			return
		}
		filters.Page = n
	}

	summaries, total, err := s.contractService.List(r.Context(), filters)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	items := make([]contractSummaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		items = append(items, toContractSummaryResponse(sum))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.lifecycleService.Deposit(r.Context(), chi.URLParam(r, "contractID"), requestAddress(r), req.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractResponse(rec))
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.lifecycleService.RecordDecision(r.Context(), chi.URLParam(r, "contractID"),
		requestAddress(r), contract.Decision(req.Decision))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractResponse(rec))
}
