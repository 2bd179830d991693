package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/ledgersync/internal/buildinfo"
	"github.com/cleared-dev/ledgersync/internal/metrics"
	"github.com/cleared-dev/ledgersync/internal/scheduler"
	"github.com/cleared-dev/ledgersync/internal/synclog"
	"github.com/cleared-dev/ledgersync/internal/syncer"
	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

type checkpointResponse struct {
	Tenant        string `json:"tenant"`
	AccountNumber string `json:"accountNumber,omitempty"`
	IDTransferTo  string `json:"idTransferTo"`
}

type passResponse struct {
	RunID         string `json:"runId"`
	Tenant        string `json:"tenant"`
	AccountNumber string `json:"accountNumber"`
	Status        string `json:"status"`
	Checkpoint    string `json:"checkpoint,omitempty"`
	Transactions  int    `json:"transactions"`
	Created       int    `json:"created"`
	Divergent     int    `json:"divergent"`
	RolledBack    int    `json:"rolledBack"`
	Error         string `json:"error,omitempty"`
	ErrorKind     string `json:"errorKind,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": buildinfo.String(),
		"service": "ledgersync",
	})
}

func (s *Server) handleTenants(w http.ResponseWriter, r *http.Request) {
	passes, err := s.source.Passes(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list passes")
		s.writeError(w, http.StatusInternalServerError, "tenant list unavailable")
		return
	}
	seen := map[string]bool{}
	tenants := []string{}
	for _, p := range passes {
		if !seen[p.Tenant] {
			seen[p.Tenant] = true
			tenants = append(tenants, p.Tenant)
		}
	}
	sort.Strings(tenants)
	s.writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	account := chi.URLParam(r, "account")

	cp, ok, err := s.store.Get(r.Context(), tenant, account)
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenant).Msg("Failed to read checkpoint")
		s.writeError(w, http.StatusInternalServerError, "checkpoint store unavailable")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "checkpoint not found")
		return
	}
	s.writeJSON(w, http.StatusOK, checkpointResponse{Tenant: tenant, AccountNumber: account, IDTransferTo: cp})
}

func (s *Server) handleCheckpointByToken(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeError(w, http.StatusBadRequest, "token query parameter is required")
		return
	}

	cp, ok, err := s.store.GetByToken(r.Context(), tenant, token)
	if err != nil {
		s.log.Error().Err(err).Str("tenant", tenant).Msg("Failed to read checkpoint")
		s.writeError(w, http.StatusInternalServerError, "checkpoint store unavailable")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "checkpoint not found")
		return
	}
	s.writeJSON(w, http.StatusOK, checkpointResponse{Tenant: tenant, IDTransferTo: cp})
}

func (s *Server) handleLastPass(w http.ResponseWriter, r *http.Request) {
	if s.syncLog == "" {
		s.writeError(w, http.StatusNotFound, "sync log disabled")
		return
	}
	tenant := chi.URLParam(r, "tenant")
	account := chi.URLParam(r, "account")

	entry, ok, err := synclog.Last(s.syncLog, tenant, account)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read sync log")
		s.writeError(w, http.StatusInternalServerError, "sync log unavailable")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "no passes recorded")
		return
	}
	s.writeJSON(w, http.StatusOK, passResponse{
		RunID:         entry.RunID,
		Tenant:        entry.Tenant,
		AccountNumber: entry.Account,
		Status:        entry.Status,
		Checkpoint:    entry.Checkpoint,
		Transactions:  entry.Transactions,
		Divergent:     entry.Divergent,
		Error:         entry.Error,
	})
}

// handleSync runs every pass of the tenant and reports each. A pass that is
// already running elsewhere turns the whole response into a 409.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")

	all, err := s.source.Passes(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list passes")
		s.writeError(w, http.StatusInternalServerError, "tenant list unavailable")
		return
	}
	var passes []syncer.Pass
	for _, p := range all {
		if p.Tenant == tenant {
			passes = append(passes, p)
		}
	}
	if len(passes) == 0 {
		s.writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}

	status := http.StatusOK
	busy := false
	responses := make([]passResponse, 0, len(passes))
	for _, p := range passes {
		res, err := s.runner.Run(r.Context(), p)
		if errors.Is(err, scheduler.ErrPassRunning) {
			busy = true
			responses = append(responses, passResponse{
				Tenant:        p.Tenant,
				AccountNumber: p.AccountNumber,
				Status:        metrics.PassSkipped,
				Error:         err.Error(),
			})
			continue
		}
		if res == nil {
			res = &syncer.Result{Tenant: p.Tenant, AccountNumber: p.AccountNumber}
		}
		resp := passResponse{
			RunID:         res.RunID,
			Tenant:        res.Tenant,
			AccountNumber: res.AccountNumber,
			Status:        res.Status(err),
			Checkpoint:    res.Checkpoint,
			Transactions:  res.Transactions,
			Created:       res.Created,
			Divergent:     res.Divergent,
			RolledBack:    res.RolledBack,
		}
		if err != nil {
			resp.Error = err.Error()
			resp.ErrorKind = syncerr.KindOf(err).String()
			status = http.StatusBadGateway
		}
		responses = append(responses, resp)
	}
	if busy {
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"error":  scheduler.ErrPassRunning.Error(),
			"passes": responses,
		})
		return
	}
	s.writeJSON(w, status, map[string]any{"passes": responses})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
