package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"leaseflow/auth"
	"leaseflow/blob"
	"leaseflow/contract"
	"leaseflow/dispute"
	"leaseflow/metrics"
)

type ctxKey int

const ctxKeyAddress ctxKey = iota

type contractService interface {
	Create(ctx context.Context, params contract.CreateParams) (contract.Record, error)
	Get(ctx context.Context, id string) (contract.Record, error)
	List(ctx context.Context, filters contract.ListFilters) ([]contract.Summary, int, error)
}

type lifecycleService interface {
	Deposit(ctx context.Context, contractID, payer string, amount int64) (contract.Record, error)
	RecordDecision(ctx context.Context, contractID, actor string, decision contract.Decision) (contract.Record, error)
}

type disputeService interface {
	FileAppeal(ctx context.Context, contractID, appellant string) (dispute.Record, error)
	GetByContract(ctx context.Context, contractID string) (dispute.Record, error)
	SubmitEvidence(ctx context.Context, disputeID string, params dispute.SubmitEvidenceParams) (dispute.Evidence, error)
	CastVote(ctx context.Context, disputeID string, params dispute.CastVoteParams) (dispute.Vote, error)
	ListEvidence(ctx context.Context, disputeID string, order dispute.EvidenceOrder) ([]dispute.Evidence, error)
	ListVotes(ctx context.Context, disputeID string) ([]dispute.Vote, error)
	HasVoted(ctx context.Context, disputeID, voter string) (bool, error)
}

type authService interface {
	IssueChallenge(req auth.ChallengeRequest) (auth.Challenge, error)
	Verify(nonce string, req auth.VerifyRequest) (auth.Session, error)
	VerifyToken(token string) (string, error)
}

type blobStore interface {
	Store(ctx context.Context, content io.Reader, size int64) (blob.Stored, error)
	Fetch(ctx context.Context, blobID string) ([]byte, error)
}

// Server wires the HTTP surface to the domain services.
type Server struct {
	contractService  contractService
	lifecycleService lifecycleService
	disputeService   disputeService
	authService      authService
	blobStore        blobStore
	log              *zap.Logger
	met              *metrics.Metrics
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/auth/challenge", s.handleChallenge)
	r.Post("/auth/verify", s.handleVerify)

	r.Post("/upload", s.handleUpload)
	r.Get("/image/{blobID}", s.handleImage)

	r.Route("/contracts", func(r chi.Router) {
		r.Get("/", s.handleListContracts)
		r.Get("/{contractID}", s.handleContract)
		r.Get("/{contractID}/votes/{address}", s.handleVoteStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleCreateContract)
			r.Post("/{contractID}/deposit", s.handleDeposit)
			r.Post("/{contractID}/decision", s.handleDecision)
			r.Post("/{contractID}/appeal", s.handleAppeal)
			r.Post("/{contractID}/evidence", s.handleSubmitEvidence)
			r.Post("/{contractID}/vote", s.handleCastVote)
		})
	})

	return r
}

// requireAuth resolves the bearer token to a wallet address and stores it in
// the request context. Mutating handlers read the actor from context only.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		addr, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyAddress, addr)))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		if s.met != nil {
			s.met.RequestsTotal.WithLabelValues(route, r.Method, httpStatusLabel(rec.status)).Inc()
			s.met.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		}
		if s.log != nil {
			s.log.Info("request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Duration("took", time.Since(start)))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func httpStatusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

func requestAddress(r *http.Request) string {
	addr, _ := r.Context().Value(ctxKeyAddress).(string)
	return addr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps sentinel errors to HTTP statuses. Unknown errors are
// internal.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contract.ErrNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, blob.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, contract.ErrInvalidTransition),
		errors.Is(err, contract.ErrContractExpired),
		errors.Is(err, dispute.ErrDeadlinePassed),
		errors.Is(err, dispute.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, contract.ErrNotParticipant), errors.Is(err, dispute.ErrNotEligible):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, contract.ErrWrongAmount),
		errors.Is(err, dispute.ErrInvalidStake),
		errors.Is(err, dispute.ErrCaptionTooLong),
		errors.Is(err, dispute.ErrMissingFile):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		if s.log != nil {
			s.log.Error("internal error", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
