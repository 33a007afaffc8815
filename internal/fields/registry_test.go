package fields

import (
	"strings"
	"testing"

	"plexmaint/internal/models"
)

func TestLookup(t *testing.T) {
	f := Lookup("playCount")
	if f == nil {
		t.Fatal("playCount should exist")
	}
	if f.Type != TypeNumber {
		t.Errorf("playCount type = %q, want number", f.Type)
	}
	if Lookup("noSuchField") != nil {
		t.Error("unknown key should return nil")
	}
}

func TestRegistryConsistency(t *testing.T) {
	seen := map[string]bool{}
	for _, mt := range []models.MediaType{models.MediaTypeMovie, models.MediaTypeTV} {
		for _, f := range ForMediaType(mt) {
			seen[f.Key] = true
			if f.Label == "" {
				t.Errorf("field %q has no label", f.Key)
			}
			if len(f.AllowedOperators) == 0 {
				t.Errorf("field %q allows no operators", f.Key)
			}
			if f.Type == TypeEnum && len(f.EnumValues) == 0 {
				t.Errorf("enum field %q has no values", f.Key)
			}
			for _, op := range f.AllowedOperators {
				if FormatOperator(op) == "" {
					t.Errorf("operator %q of field %q has no label", op, f.Key)
				}
			}
		}
	}
	if len(seen) != len(registry) {
		t.Errorf("every field must apply to at least one media type: %d of %d seen", len(seen), len(registry))
	}
}

func TestMediaTypeScoping(t *testing.T) {
	for _, f := range ForMediaType(models.MediaTypeMovie) {
		if strings.HasPrefix(f.Key, "sonarr.") {
			t.Errorf("sonarr field %q offered for movies", f.Key)
		}
	}
	for _, f := range ForMediaType(models.MediaTypeTV) {
		if strings.HasPrefix(f.Key, "radarr.") {
			t.Errorf("radarr field %q offered for tv", f.Key)
		}
	}
}

func TestByDataSource(t *testing.T) {
	grouped := ByDataSource(models.MediaTypeMovie)
	if len(grouped[SourceRadarr]) == 0 {
		t.Error("movies should have radarr-sourced fields")
	}
	if len(grouped[SourceSonarr]) != 0 {
		t.Error("movies must not have sonarr-sourced fields")
	}
	if len(grouped[SourcePlex]) == 0 {
		t.Error("plex-sourced fields missing")
	}
}

func TestAllowsOperator(t *testing.T) {
	f := Lookup("title")
	if !f.AllowsOperator(OpContains) {
		t.Error("title should allow contains")
	}
	if f.AllowsOperator(OpOlderThan) {
		t.Error("title must not allow olderThan")
	}
}

func TestFormatOperator(t *testing.T) {
	if got := FormatOperator(OpOlderThan); got != "is older than" {
		t.Errorf("FormatOperator(olderThan) = %q", got)
	}
	if got := FormatOperator("weirdOp"); got != "weirdOp" {
		t.Errorf("unknown operator should pass through, got %q", got)
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if len(a) != 8 {
		t.Errorf("id length = %d, want 8", len(a))
	}
	if a == b {
		t.Error("ids should not collide")
	}
}
