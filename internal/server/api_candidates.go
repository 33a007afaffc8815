package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"plexmaint/internal/models"
	"plexmaint/internal/queue"
)

// GET /api/maintenance/scans/{id}/candidates
func (s *Server) handleListScanCandidates(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id parameter")
		return
	}

	candidates, err := s.store.ListCandidatesForScan(r.Context(), id)
	if err != nil {
		log.Printf("list candidates for scan %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to list candidates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

// GET /api/maintenance/candidates?status=PENDING&limit=100
func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	status := models.ReviewStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.ReviewPending
	}
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	candidates, err := s.store.ListCandidatesByStatus(r.Context(), status, limit)
	if err != nil {
		log.Printf("list candidates by status: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list candidates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

// GET /api/maintenance/candidates/{id}
func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id parameter")
		return
	}

	candidate, err := s.store.GetCandidate(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	if err != nil {
		log.Printf("get candidate %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get candidate")
		return
	}

	writeJSON(w, http.StatusOK, candidate)
}

// POST /api/maintenance/candidates/review
// Moves candidates between PENDING, APPROVED and REJECTED. Candidates
// already REJECTED or DELETED are left untouched.
func (s *Server) handleReviewCandidates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CandidateIDs []int64             `json:"candidate_ids"`
		Status       models.ReviewStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateBulkIDs(req.CandidateIDs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.store.SetReviewStatus(r.Context(), req.CandidateIDs, req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

// POST /api/maintenance/candidates/delete — queue deletion of approved
// candidates. The deletion queue runs one job at a time.
func (s *Server) handleDeleteCandidates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CandidateIDs []int64 `json:"candidate_ids"`
		DeleteFiles  bool    `json:"delete_files"`
		UserID       string  `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateBulkIDs(req.CandidateIDs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		req.UserID = "unknown"
	}

	jobID, err := s.deletionQueue.Enqueue(r.Context(), queue.JobDeletion, queue.DeletionPayload{
		CandidateIDs: req.CandidateIDs,
		DeleteFiles:  req.DeleteFiles,
		UserID:       req.UserID,
	})
	if err != nil {
		log.Printf("enqueue deletion: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to queue deletion")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": jobID})
}

// GET /api/maintenance/deletion-log
func (s *Server) handleDeletionLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.store.ListDeletionLog(r.Context(), limit)
	if err != nil {
		log.Printf("list deletion log: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list deletion log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// GET /api/maintenance/schedulers
func (s *Server) handleListSchedulers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schedulers": s.scheduler.ListActive()})
}

// GET /api/maintenance/jobs/{queue}/{id}/progress
func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	var q queue.JobQueue
	switch chi.URLParam(r, "queue") {
	case queue.QueueMaintenance:
		q = s.scanQueue
	case queue.QueueDeletion:
		q = s.deletionQueue
	default:
		writeError(w, http.StatusNotFound, "unknown queue")
		return
	}

	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	pct, err := q.Progress(r.Context(), jobID)
	if err != nil {
		log.Printf("job progress %s: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, "failed to read progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobId": jobID, "percent": pct})
}
