package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cleared-dev/ledgersync/internal/registry"
)

type createTokenRequest struct {
	Value   string `json:"value"`
	Account string `json:"account"`
	Wait    bool   `json:"wait"`
}

// registryError maps a registry failure to a response.
func (s *Server) registryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrInvalid):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("Registry operation failed")
		s.writeError(w, http.StatusInternalServerError, "registry unavailable")
	}
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.registry.ListTenants(r.Context())
	if err != nil {
		s.registryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	if err := s.registry.CreateTenant(r.Context(), tenant); err != nil {
		s.registryError(w, err)
		return
	}
	s.log.Info().Str("tenant", tenant).Msg("Tenant registered")
	s.writeJSON(w, http.StatusOK, map[string]string{"tenant": tenant})
}

func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	if err := s.registry.DeleteTenant(r.Context(), tenant); err != nil {
		s.registryError(w, err)
		return
	}
	s.log.Info().Str("tenant", tenant).Msg("Tenant removed")
	s.writeJSON(w, http.StatusOK, map[string]string{"tenant": tenant})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.registry.ListTokens(r.Context(), chi.URLParam(r, "tenant"))
	if err != nil {
		s.registryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokens)
}

// handleCreateToken registers a provider token. The response carries the
// generated id, never the secret.
func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")

	var req createTokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.registry.CreateToken(r.Context(), tenant, registry.Token{
		Value:   req.Value,
		Account: req.Account,
		Wait:    req.Wait,
	})
	if err != nil {
		s.registryError(w, err)
		return
	}
	s.log.Info().Str("tenant", tenant).Str("token_id", token.ID).Msg("Token registered")
	s.writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	id := chi.URLParam(r, "id")
	if err := s.registry.DeleteToken(r.Context(), tenant, id); err != nil {
		s.registryError(w, err)
		return
	}
	s.log.Info().Str("tenant", tenant).Str("token_id", id).Msg("Token removed")
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
