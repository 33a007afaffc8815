package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"

	"plexmaint/internal/models"
	"plexmaint/internal/queue"
	"plexmaint/internal/store"
)

func migrationsDir() string {
	_, f, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(f), "..", "..", "migrations")
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(migrationsDir()); err != nil {
		t.Fatal(err)
	}

	sched := queue.NewScheduler(st, queue.NoopQueue{})
	srv := New(":0", st, sched, queue.NoopQueue{}, queue.NoopQueue{})
	return srv, st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

func ruleBody(name, schedule string) map[string]any {
	return map[string]any{
		"name":       name,
		"enabled":    true,
		"media_type": "movie",
		"schedule":   schedule,
		"criteria": map[string]any{
			"type":       "group",
			"operator":   "AND",
			"libraryIds": []string{"1"},
			"conditions": []map[string]any{
				{"type": "condition", "field": "playCount", "operator": "le", "value": 0},
			},
		},
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRuleLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	// Create.
	rec := doJSON(t, h, http.MethodPost, "/api/maintenance/rules", ruleBody("stale movies", "0 3 * * 0"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created models.MaintenanceRule
	decode(t, rec, &created)
	if created.ID == 0 || created.Name != "stale movies" {
		t.Fatalf("created = %+v", created)
	}

	// Creating registers a cron entry.
	rec = doJSON(t, h, http.MethodGet, "/api/maintenance/schedulers", nil)
	var scheds struct {
		Schedulers []queue.ScheduleEntry `json:"schedulers"`
	}
	decode(t, rec, &scheds)
	if len(scheds.Schedulers) != 1 || scheds.Schedulers[0].SchedulerID != fmt.Sprintf("maintenance-rule-%d", created.ID) {
		t.Errorf("schedulers = %+v", scheds.Schedulers)
	}

	// Get.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/maintenance/rules/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// Update.
	rec = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/maintenance/rules/%d", created.ID), ruleBody("renamed", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	var updated models.MaintenanceRule
	decode(t, rec, &updated)
	if updated.Name != "renamed" {
		t.Errorf("updated = %+v", updated)
	}

	// Dropping the schedule drops the cron entry.
	rec = doJSON(t, h, http.MethodGet, "/api/maintenance/schedulers", nil)
	decode(t, rec, &scheds)
	if len(scheds.Schedulers) != 0 {
		t.Errorf("schedulers after unschedule = %+v", scheds.Schedulers)
	}

	// Delete.
	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/maintenance/rules/%d", created.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/maintenance/rules/%d", created.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing name", func(b map[string]any) { b["name"] = "" }},
		{"bad cron", func(b map[string]any) { b["schedule"] = "every sunday" }},
		{"bad criteria field", func(b map[string]any) {
			b["criteria"].(map[string]any)["conditions"] = []map[string]any{
				{"type": "condition", "field": "nope", "operator": "le", "value": 0},
			}
		}},
		{"no libraries", func(b map[string]any) {
			b["criteria"].(map[string]any)["libraryIds"] = []string{}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := ruleBody("r", "0 3 * * 0")
			tt.mutate(body)
			rec := doJSON(t, h, http.MethodPost, "/api/maintenance/rules", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTriggerScan(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.routes()

	rec := doJSON(t, h, http.MethodPost, "/api/maintenance/rules", ruleBody("r", ""))
	var rule models.MaintenanceRule
	decode(t, rec, &rule)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/maintenance/rules/%d/scan", rule.ID), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["jobId"] == "" {
		t.Error("response must carry a job id")
	}

	// Disabled rules refuse manual scans.
	input := &models.MaintenanceRuleInput{
		Name:       "r",
		Enabled:    false,
		MediaType:  models.MediaTypeMovie,
		Criteria:   rule.Criteria,
		ActionType: models.ActionDelete,
	}
	if _, err := st.UpdateMaintenanceRule(context.Background(), rule.ID, input); err != nil {
		t.Fatal(err)
	}
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/maintenance/rules/%d/scan", rule.ID), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("disabled rule scan status = %d, want 409", rec.Code)
	}

	// Unknown rule.
	rec = doJSON(t, h, http.MethodPost, "/api/maintenance/rules/9999/scan", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing rule scan status = %d, want 404", rec.Code)
	}
}

func TestReviewAndDeleteCandidates(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.routes()
	ctx := context.Background()

	rec := doJSON(t, h, http.MethodPost, "/api/maintenance/rules", ruleBody("r", ""))
	var rule models.MaintenanceRule
	decode(t, rec, &rule)

	scanID, err := st.CreateScan(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	radarrID := int64(7)
	if err := st.BatchInsertCandidates(ctx, scanID, []models.CandidateInit{{
		MediaType:     models.MediaTypeMovie,
		PlexRatingKey: "101",
		Title:         "A",
		RadarrID:      &radarrID,
		MatchedRules:  []string{"r"},
	}}); err != nil {
		t.Fatal(err)
	}
	cands, err := st.ListCandidatesForScan(ctx, scanID)
	if err != nil {
		t.Fatal(err)
	}

	// Pending list includes it.
	rec = doJSON(t, h, http.MethodGet, "/api/maintenance/candidates", nil)
	var listResp struct {
		Candidates []models.MaintenanceCandidate `json:"candidates"`
	}
	decode(t, rec, &listResp)
	if len(listResp.Candidates) != 1 {
		t.Fatalf("pending candidates = %d", len(listResp.Candidates))
	}

	// Approve.
	rec = doJSON(t, h, http.MethodPost, "/api/maintenance/candidates/review", map[string]any{
		"candidate_ids": []int64{cands[0].ID},
		"status":        "APPROVED",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("review status = %d: %s", rec.Code, rec.Body.String())
	}
	var reviewResp map[string]int64
	decode(t, rec, &reviewResp)
	if reviewResp["updated"] != 1 {
		t.Errorf("updated = %d", reviewResp["updated"])
	}

	// Queue deletion.
	rec = doJSON(t, h, http.MethodPost, "/api/maintenance/candidates/delete", map[string]any{
		"candidate_ids": []int64{cands[0].ID},
		"delete_files":  true,
		"user_id":       "admin",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBulkLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	ids := make([]int64, maxBulkOperationSize+1)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	rec := doJSON(t, h, http.MethodPost, "/api/maintenance/candidates/review", map[string]any{
		"candidate_ids": ids,
		"status":        "APPROVED",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized batch status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/maintenance/candidates/review", map[string]any{
		"candidate_ids": []int64{},
		"status":        "APPROVED",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", rec.Code)
	}
}

func TestListFields(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	rec := doJSON(t, h, http.MethodGet, "/api/maintenance/fields?media_type=movie", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/maintenance/fields?media_type=music", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad media type status = %d, want 400", rec.Code)
	}
}

func TestValidateCriteriaEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	rec := doJSON(t, h, http.MethodPost, "/api/maintenance/criteria/validate", map[string]any{
		"media_type": "movie",
		"criteria":   ruleBody("r", "")["criteria"],
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Valid bool `json:"valid"`
	}
	decode(t, rec, &resp)
	if !resp.Valid {
		t.Errorf("response = %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/maintenance/criteria/validate", map[string]any{
		"media_type": "movie",
		"criteria": map[string]any{
			"type": "group", "operator": "AND", "libraryIds": []string{"1"},
			"conditions": []map[string]any{
				{"type": "condition", "field": "nope", "operator": "le", "value": 0},
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("dry-run status = %d, want 200 even when invalid", rec.Code)
	}
	decode(t, rec, &resp)
	if resp.Valid {
		t.Error("unknown field must be reported invalid")
	}
}

func TestJobProgressEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	rec := doJSON(t, h, http.MethodGet, "/api/maintenance/jobs/maintenance/abc/progress", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Percent int `json:"percent"`
	}
	decode(t, rec, &resp)
	if resp.Percent != -1 {
		t.Errorf("percent = %d, want -1 for unknown job", resp.Percent)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/maintenance/jobs/nope/abc/progress", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown queue status = %d, want 404", rec.Code)
	}
}

func TestIntegrationSettingsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.routes()

	rec := doJSON(t, h, http.MethodPut, "/api/settings/integrations/radarr", map[string]any{
		"url":     "http://radarr:7878",
		"api_key": "secret",
		"enabled": true,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/settings/integrations/radarr", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var resp map[string]any
	decode(t, rec, &resp)
	if resp["has_api_key"] != true {
		t.Errorf("response = %v", resp)
	}
	if _, present := resp["api_key"]; present {
		t.Error("api key must never be echoed")
	}

	// Unknown services are rejected.
	rec = doJSON(t, h, http.MethodGet, "/api/settings/integrations/jellyfin", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown service status = %d, want 404", rec.Code)
	}
}
