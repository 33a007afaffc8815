package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/robfig/cron/v3"

	"plexmaint/internal/models"
	"plexmaint/internal/queue"
	"plexmaint/internal/rules"
)

// validateRuleInput runs the full save-time validation: structural
// fields, the predicate tree against the field registry, and the cron
// expression if one is set.
func validateRuleInput(input *models.MaintenanceRuleInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	criteria, err := models.ParseCriteria(input.Criteria)
	if err != nil {
		return err
	}
	if err := rules.ValidateCriteria(input.MediaType, criteria); err != nil {
		return err
	}
	if input.Schedule != "" {
		if _, err := cron.ParseStandard(input.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %v", input.Schedule, err)
		}
	}
	return nil
}

// GET /api/maintenance/rules
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListMaintenanceRules(r.Context())
	if err != nil {
		log.Printf("list rules: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": list})
}

// POST /api/maintenance/rules
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var input models.MaintenanceRuleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateRuleInput(&input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := s.store.CreateMaintenanceRule(r.Context(), &input)
	if err != nil {
		log.Printf("create rule: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}

	if err := s.scheduler.Sync(rule); err != nil {
		log.Printf("sync schedule for rule %d: %v", rule.ID, err)
	}

	writeJSON(w, http.StatusCreated, rule)
}

// GET /api/maintenance/rules/{id}
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id parameter")
		return
	}

	rule, err := s.store.GetMaintenanceRule(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		log.Printf("get rule %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get rule")
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// PUT /api/maintenance/rules/{id}
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id parameter")
		return
	}

	var input models.MaintenanceRuleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateRuleInput(&input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := s.store.UpdateMaintenanceRule(r.Context(), id, &input)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		log.Printf("update rule %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to update rule")
		return
	}

	if err := s.scheduler.Sync(rule); err != nil {
		log.Printf("sync schedule for rule %d: %v", rule.ID, err)
	}

	writeJSON(w, http.StatusOK, rule)
}

// DELETE /api/maintenance/rules/{id}
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id parameter")
		return
	}

	if err := s.store.DeleteMaintenanceRule(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		log.Printf("delete rule %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}

	s.scheduler.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/maintenance/rules/{id}/scan — queue a manual scan.
func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id parameter")
		return
	}

	rule, err := s.store.GetMaintenanceRule(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		log.Printf("get rule %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get rule")
		return
	}
	if !rule.Enabled {
		writeError(w, http.StatusConflict, "rule is disabled")
		return
	}

	jobID, err := s.scanQueue.Enqueue(r.Context(), queue.JobScan, queue.ScanPayload{
		RuleID:        rule.ID,
		ManualTrigger: true,
	})
	if err != nil {
		log.Printf("enqueue scan for rule %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to queue scan")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": jobID})
}

// GET /api/maintenance/rules/{id}/scans
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id parameter")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	scans, err := s.store.ListScansForRule(r.Context(), id, limit)
	if err != nil {
		log.Printf("list scans for rule %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

// GET /api/maintenance/scans/{id}
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id parameter")
		return
	}

	sc, err := s.store.GetScan(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	if err != nil {
		log.Printf("get scan %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get scan")
		return
	}

	writeJSON(w, http.StatusOK, sc)
}
