package deletion

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"plexmaint/internal/media"
	"plexmaint/internal/models"
	"plexmaint/internal/store"
)

func migrationsDir() string {
	_, f, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(f), "..", "..", "migrations")
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(migrationsDir()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

// deleteCall records one DeleteMedia invocation.
type deleteCall struct {
	externalID  int64
	deleteFiles bool
}

type fakeSource struct {
	name    string
	calls   []deleteCall
	failIDs map[int64]error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) ListLibraries(context.Context) ([]media.LibraryRef, error) {
	return nil, nil
}

func (f *fakeSource) FetchItems(context.Context, media.LibraryRef) ([]models.MediaItem, error) {
	return nil, nil
}

func (f *fakeSource) DeleteMedia(_ context.Context, externalID int64, deleteFiles bool) error {
	f.calls = append(f.calls, deleteCall{externalID, deleteFiles})
	if err := f.failIDs[externalID]; err != nil {
		return err
	}
	return nil
}

type fakeResolver struct {
	source media.Source
	err    error
}

func (f *fakeResolver) Source(context.Context, models.MediaType) (media.Source, error) {
	return f.source, f.err
}

func seedApproved(t *testing.T, s *store.Store, inits []models.CandidateInit) []models.MaintenanceCandidate {
	t.Helper()
	ctx := context.Background()

	rule, err := s.CreateMaintenanceRule(ctx, &models.MaintenanceRuleInput{
		Name:       "cleanup",
		Enabled:    true,
		MediaType:  models.MediaTypeMovie,
		Criteria:   json.RawMessage(`{"type":"group","operator":"AND","libraryIds":["1"],"conditions":[]}`),
		ActionType: models.ActionDelete,
	})
	if err != nil {
		t.Fatal(err)
	}
	scanID, err := s.CreateScan(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.BatchInsertCandidates(ctx, scanID, inits); err != nil {
		t.Fatal(err)
	}

	cands, err := s.ListCandidatesForScan(ctx, scanID)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]int64, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}
	if _, err := s.SetReviewStatus(ctx, ids, models.ReviewApproved); err != nil {
		t.Fatal(err)
	}
	return cands
}

func movieInit(key, title string, radarrID int64) models.CandidateInit {
	init := models.CandidateInit{
		MediaType:     models.MediaTypeMovie,
		PlexRatingKey: key,
		Title:         title,
		MatchedRules:  []string{"cleanup"},
	}
	if radarrID != 0 {
		init.RadarrID = &radarrID
	}
	return init
}

func TestExecuteDeletesApproved(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	cands := seedApproved(t, st, []models.CandidateInit{
		movieInit("101", "Movie A", 11),
		movieInit("102", "Movie B", 22),
	})

	src := &fakeSource{name: "radarr"}
	exec := New(st, &fakeResolver{source: src})

	res, err := exec.Execute(ctx, []int64{cands[0].ID, cands[1].ID}, true, "admin@example.com", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Success != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(src.calls) != 2 || !src.calls[0].deleteFiles {
		t.Errorf("upstream calls = %+v", src.calls)
	}

	for _, c := range cands {
		got, err := st.GetCandidate(ctx, c.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.ReviewStatus != models.ReviewDeleted || got.DeletedAt == nil {
			t.Errorf("candidate %q = %+v, want DELETED", c.Title, got)
		}
	}

	log, err := st.ListDeletionLog(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 {
		t.Fatalf("audit rows = %d, want 2", len(log))
	}
	for _, e := range log {
		if e.DeletedBy != "admin@example.com" || e.DeletedFrom != "radarr" || !e.FilesDeleted {
			t.Errorf("audit row = %+v", e)
		}
		if len(e.RuleNames) != 1 || e.RuleNames[0] != "cleanup" {
			t.Errorf("rule names = %v", e.RuleNames)
		}
	}
}

func TestExecuteSkipsUnapproved(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	cands := seedApproved(t, st, []models.CandidateInit{movieInit("101", "Approved", 11)})

	// A second batch that stays PENDING.
	rule, _ := st.CreateMaintenanceRule(ctx, &models.MaintenanceRuleInput{
		Name:       "other",
		Enabled:    true,
		MediaType:  models.MediaTypeMovie,
		Criteria:   json.RawMessage(`{"type":"group","operator":"AND","libraryIds":["1"],"conditions":[]}`),
		ActionType: models.ActionDelete,
	})
	scanID, _ := st.CreateScan(ctx, rule.ID)
	if err := st.BatchInsertCandidates(ctx, scanID, []models.CandidateInit{movieInit("201", "Pending", 99)}); err != nil {
		t.Fatal(err)
	}
	pending, _ := st.ListCandidatesForScan(ctx, scanID)

	src := &fakeSource{name: "radarr"}
	exec := New(st, &fakeResolver{source: src})

	res, err := exec.Execute(ctx, []int64{cands[0].ID, pending[0].ID}, false, "admin", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(src.calls) != 1 || src.calls[0].externalID != 11 {
		t.Errorf("only the approved candidate should reach upstream: %+v", src.calls)
	}

	got, _ := st.GetCandidate(ctx, pending[0].ID)
	if got.ReviewStatus != models.ReviewPending {
		t.Errorf("pending candidate was touched: %+v", got)
	}
}

func TestExecuteContinuesPastFailures(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	cands := seedApproved(t, st, []models.CandidateInit{
		movieInit("101", "Fails", 11),
		movieInit("102", "Succeeds", 22),
	})

	src := &fakeSource{name: "radarr", failIDs: map[int64]error{11: errors.New("radarr: 500")}}
	exec := New(st, &fakeResolver{source: src})

	res, err := exec.Execute(ctx, []int64{cands[0].ID, cands[1].ID}, true, "admin", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "Fails: ") {
		t.Errorf("errors = %v", res.Errors)
	}

	// Failed candidate keeps APPROVED and stores the error for retry.
	failed, _ := st.GetCandidate(ctx, cands[0].ID)
	if failed.ReviewStatus != models.ReviewApproved || failed.DeletionError == "" {
		t.Errorf("failed candidate = %+v", failed)
	}

	ok, _ := st.GetCandidate(ctx, cands[1].ID)
	if ok.ReviewStatus != models.ReviewDeleted {
		t.Errorf("second candidate should still be deleted: %+v", ok)
	}

	log, _ := st.ListDeletionLog(ctx, 10)
	if len(log) != 1 || log[0].Title != "Succeeds" {
		t.Errorf("only the successful delete is audited: %+v", log)
	}
}

func TestExecuteMissingExternalID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	cands := seedApproved(t, st, []models.CandidateInit{movieInit("101", "Unlinked", 0)})

	src := &fakeSource{name: "radarr"}
	exec := New(st, &fakeResolver{source: src})

	res, err := exec.Execute(ctx, []int64{cands[0].ID}, true, "admin", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || len(src.calls) != 0 {
		t.Fatalf("unlinked candidate must fail without an upstream call: %+v", res)
	}
	if !strings.Contains(res.Errors[0], "no Radarr id") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestExecuteEmptySelection(t *testing.T) {
	st := newTestStore(t)
	exec := New(st, &fakeResolver{source: &fakeSource{name: "radarr"}})

	res, err := exec.Execute(context.Background(), nil, true, "admin", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 0 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteProgress(t *testing.T) {
	st := newTestStore(t)
	cands := seedApproved(t, st, []models.CandidateInit{
		movieInit("101", "A", 1),
		movieInit("102", "B", 2),
		movieInit("103", "C", 3),
		movieInit("104", "D", 4),
	})

	ids := make([]int64, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}

	exec := New(st, &fakeResolver{source: &fakeSource{name: "radarr"}})

	var reports []int
	if _, err := exec.Execute(context.Background(), ids, false, "admin", func(pct int) {
		reports = append(reports, pct)
	}); err != nil {
		t.Fatal(err)
	}

	want := []int{25, 50, 75, 100}
	if len(reports) != len(want) {
		t.Fatalf("reports = %v, want %v", reports, want)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Fatalf("reports = %v, want %v", reports, want)
		}
	}
}
