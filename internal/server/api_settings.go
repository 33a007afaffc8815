package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"plexmaint/internal/arrutil"
	"plexmaint/internal/httputil"
	"plexmaint/internal/plex"
	"plexmaint/internal/store"
)

func integrationService(r *http.Request) (string, bool) {
	service := chi.URLParam(r, "service")
	switch service {
	case "plex", "radarr", "sonarr":
		return service, true
	}
	return "", false
}

// GET /api/settings/integrations/{service}
// The API key is never echoed back; only whether one is set.
func (s *Server) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	service, ok := integrationService(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown service")
		return
	}

	cfg, err := s.store.GetIntegrationConfig(service)
	if err != nil {
		log.Printf("get %s config: %v", service, err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":         cfg.URL,
		"enabled":     cfg.Enabled,
		"has_api_key": cfg.APIKey != "",
	})
}

// PUT /api/settings/integrations/{service}
// An empty api_key keeps the stored one so the UI can update the URL
// without re-entering the key.
func (s *Server) handleSetIntegration(w http.ResponseWriter, r *http.Request) {
	service, ok := integrationService(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown service")
		return
	}

	var req struct {
		URL     string `json:"url"`
		APIKey  string `json:"api_key"`
		Enabled bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL != "" {
		if err := httputil.ValidateIntegrationURL(req.URL); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if req.APIKey == "" {
		existing, err := s.store.GetIntegrationConfig(service)
		if err != nil {
			log.Printf("get %s config: %v", service, err)
			writeError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		req.APIKey = existing.APIKey
	}

	cfg := store.IntegrationConfig{URL: req.URL, APIKey: req.APIKey, Enabled: req.Enabled}
	if err := s.store.SetIntegrationConfig(service, cfg); err != nil {
		log.Printf("set %s config: %v", service, err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /api/settings/integrations/{service}/test
func (s *Server) handleTestIntegration(w http.ResponseWriter, r *http.Request) {
	service, ok := integrationService(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown service")
		return
	}

	cfg, err := s.store.GetIntegrationConfig(service)
	if err != nil {
		log.Printf("get %s config: %v", service, err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if cfg.URL == "" || cfg.APIKey == "" {
		writeError(w, http.StatusBadRequest, "service is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), httputil.IntegrationTimeout)
	defer cancel()

	if err := testIntegration(ctx, service, cfg); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func testIntegration(ctx context.Context, service string, cfg store.IntegrationConfig) error {
	if service == "plex" {
		client, err := plex.NewClient(cfg.URL, cfg.APIKey)
		if err != nil {
			return err
		}
		return client.TestConnection(ctx)
	}

	client, err := arrutil.New(service, cfg.URL, cfg.APIKey)
	if err != nil {
		return err
	}
	return client.TestConnection(ctx)
}
