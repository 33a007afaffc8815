package server

import (
	"encoding/json"
	"log"
	"net/http"

	"plexmaint/internal/fields"
	"plexmaint/internal/models"
	"plexmaint/internal/rules"
)

// GET /api/maintenance/fields?media_type=movie
// Without media_type returns the whole catalog; with it, only the
// applicable fields, grouped by data source for the rule builder UI.
func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	mt := models.MediaType(r.URL.Query().Get("media_type"))
	if mt == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"movie":     fields.ByDataSource(models.MediaTypeMovie),
			"tv_series": fields.ByDataSource(models.MediaTypeTV),
		})
		return
	}
	if !mt.Valid() {
		writeError(w, http.StatusBadRequest, "invalid media_type")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields.ByDataSource(mt)})
}

// POST /api/maintenance/criteria/validate
// Dry-run validation for the rule builder: checks the tree without
// saving anything and reports its complexity.
func (s *Server) handleValidateCriteria(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MediaType models.MediaType `json:"media_type"`
		Criteria  json.RawMessage  `json:"criteria"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.MediaType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid media_type")
		return
	}

	criteria, err := models.ParseCriteria(req.Criteria)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	if err := rules.ValidateCriteria(req.MediaType, criteria); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}

	info := rules.Complexity(criteria)
	if info.Label == "complex" {
		log.Printf("validate criteria: complex rule submitted (%d conditions, depth %d)",
			info.ConditionCount, info.MaxDepth)
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "complexity": info})
}
