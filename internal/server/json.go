package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const maxBulkOperationSize = 500 // SQLite SQLITE_MAX_VARIABLE_NUMBER limit is 999

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func validateBulkIDs(ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("ids required")
	}
	if len(ids) > maxBulkOperationSize {
		return fmt.Errorf("cannot process more than %d items at once", maxBulkOperationSize)
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("invalid id: must be positive")
		}
		if seen[id] {
			return fmt.Errorf("duplicate id in request")
		}
		seen[id] = true
	}
	return nil
}
