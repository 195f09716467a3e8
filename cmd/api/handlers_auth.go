package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"leaseflow/auth"
)

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req auth.ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ch, err := s.authService.IssueChallenge(req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"nonce":     ch.Nonce,
		"expiresAt": ch.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type verifyRequest struct {
	Nonce string `json:"nonce"`
	auth.VerifyRequest
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	session, err := s.authService.Verify(req.Nonce, req.VerifyRequest)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrChallengeExpired):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, auth.ErrInvalidSignature):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			s.writeDomainError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":     session.Token,
		"address":   session.Address,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
