package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	proposalvoting "pentarchy/contexts/governance/proposal-voting"
	governanceerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	governancehttp "pentarchy/contexts/governance/proposal-voting/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "pentarchy/internal/platform/httpserver/docs"
)

const (
	apiPrefix      = "/api/v1/votes"
	maxRequestBody = 1 << 20
)

type Options struct {
	Addr string
	// RateLimit guards the governance API routes; nil disables limiting.
	RateLimit *RateLimiter
	// Stream serves the live event stream; nil disables the endpoint.
	Stream  *Hub
	Metrics http.Handler
	Logger  *slog.Logger
}

type Server struct {
	mux        *http.ServeMux
	httpServer *http.Server
	logger     *slog.Logger
	addr       string
	governance proposalvoting.Module
	limiter    *RateLimiter
	stream     *Hub
	metrics    http.Handler
}

func New(governance proposalvoting.Module, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		governance: governance,
		limiter:    opts.RateLimit,
		stream:     opts.Stream,
		metrics:    opts.Metrics,
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
	if s.stream != nil {
		s.mux.HandleFunc("GET "+apiPrefix+"/ws", s.stream.ServeWS)
	}

	s.handleAPI("POST "+apiPrefix+"/proposals", s.handleCreateProposal)
	s.handleAPI("GET "+apiPrefix+"/proposals", s.handleListProposals)
	s.handleAPI("GET "+apiPrefix+"/proposals/{proposal_id}", s.handleGetProposal)
	s.handleAPI("POST "+apiPrefix+"/proposals/{proposal_id}/vote", s.handleSubmitVote)
	s.handleAPI("POST "+apiPrefix+"/proposals/{proposal_id}/resolve", s.handleResolveProposal)
	s.handleAPI("GET "+apiPrefix+"/pending", s.handlePendingProposals)
	s.handleAPI("GET "+apiPrefix+"/thresholds", s.handleThresholds)
	s.handleAPI("GET "+apiPrefix+"/stats", s.handleStats)
	s.handleAPI("POST "+apiPrefix+"/analyze-action", s.handleAnalyzeAction)
	s.handleAPI("POST "+apiPrefix+"/auto-proposal", s.handleAutoProposal)
}

func (s *Server) handleAPI(pattern string, handler http.HandlerFunc) {
	if s.limiter == nil {
		s.mux.HandleFunc(pattern, handler)
		return
	}
	s.mux.Handle(pattern, s.limiter.Middleware(handler))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.CreateProposalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.governance.Handler.CreateProposalHandler(r.Context(), resolveInitiator(r), req)
	if err != nil {
		s.writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := governancehttp.ListProposalsRequest{
		Status: query.Get("status"),
	}
	if limitRaw := query.Get("limit"); limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeGovernanceError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		if limit == 0 {
			writeGovernanceError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100")
			return
		}
		req.Limit = limit
	}
	if offsetRaw := query.Get("offset"); offsetRaw != "" {
		offset, err := strconv.Atoi(offsetRaw)
		if err != nil {
			writeGovernanceError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}
		req.Offset = offset
	}

	resp, err := s.governance.Handler.ListProposalsHandler(r.Context(), req)
	if err != nil {
		s.writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.GetProposalHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		s.writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.SubmitVoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.governance.Handler.SubmitVoteHandler(r.Context(), r.PathValue("proposal_id"), req)
	if err != nil {
		s.writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveProposal(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.ResolveProposalHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		s.writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePendingProposals(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.PendingProposalsHandler(r.Context())
	if err != nil {
		s.writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.governance.Handler.ThresholdsHandler(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.StatsHandler(r.Context())
	if err != nil {
		s.writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyzeAction(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.AnalyzeActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.governance.Handler.AnalyzeActionHandler(r.Context(), req)
	if err != nil {
		s.writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAutoProposal(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.AutoProposalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.governance.Handler.AutoProposalHandler(r.Context(), resolveInitiator(r), req)
	if err != nil {
		s.writeGovernanceDomainError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (s *Server) writeGovernanceDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, governanceerrors.ErrValidation),
		errors.Is(err, governanceerrors.ErrUnknownRiskLevel):
		writeGovernanceError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, governanceerrors.ErrUnknownVoter):
		writeGovernanceError(w, http.StatusBadRequest, "unknown_voter", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidListFilter):
		writeGovernanceError(w, http.StatusBadRequest, "invalid_list_filter", err.Error())
	case errors.Is(err, governanceerrors.ErrNotFound):
		writeGovernanceError(w, http.StatusNotFound, "proposal_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrDuplicateVoter):
		writeGovernanceError(w, http.StatusConflict, "duplicate_voter", err.Error())
	case errors.Is(err, governanceerrors.ErrConflict):
		writeGovernanceError(w, http.StatusConflict, "proposal_conflict", err.Error())
	default:
		s.logger.Error("governance request failed",
			"event", "http_governance_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		writeGovernanceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGovernanceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, governancehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(target); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func resolveInitiator(r *http.Request) string {
	if fromHeader := strings.TrimSpace(r.Header.Get("X-User-Id")); fromHeader != "" {
		return fromHeader
	}
	return "api"
}
