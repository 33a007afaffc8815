package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ActionType is what happens to approved candidates.
type ActionType string

const (
	ActionDelete ActionType = "delete"
	ActionFlag   ActionType = "flag"
)

func (a ActionType) Valid() bool {
	return a == ActionDelete || a == ActionFlag
}

// ScanStatus is the lifecycle state of a scan. A scan is created RUNNING
// and transitions exactly once to COMPLETED or FAILED.
type ScanStatus string

const (
	ScanRunning   ScanStatus = "RUNNING"
	ScanCompleted ScanStatus = "COMPLETED"
	ScanFailed    ScanStatus = "FAILED"
)

// ReviewStatus is the operator-facing state of a candidate.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
	ReviewDeleted  ReviewStatus = "DELETED"
)

func (rs ReviewStatus) Valid() bool {
	switch rs {
	case ReviewPending, ReviewApproved, ReviewRejected, ReviewDeleted:
		return true
	}
	return false
}

// MaintenanceRule is an administrator-defined predicate tree plus metadata.
type MaintenanceRule struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Enabled    bool            `json:"enabled"`
	MediaType  MediaType       `json:"media_type"`
	Criteria   json.RawMessage `json:"criteria"`
	Schedule   string          `json:"schedule,omitempty"`
	ActionType ActionType      `json:"action_type"`
	LastRunAt  *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time      `json:"next_run_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MaintenanceRuleInput is used for creating and updating rules.
type MaintenanceRuleInput struct {
	Name       string          `json:"name"`
	Enabled    bool            `json:"enabled"`
	MediaType  MediaType       `json:"media_type"`
	Criteria   json.RawMessage `json:"criteria"`
	Schedule   string          `json:"schedule,omitempty"`
	ActionType ActionType      `json:"action_type"`
}

// Validate checks the structural fields. Criteria content and cron syntax
// are validated by the rules package and the scheduler respectively.
func (in *MaintenanceRuleInput) Validate() error {
	if in.Name == "" {
		return errors.New("name is required")
	}
	if len(in.Name) > 255 {
		return errors.New("name must be 255 characters or less")
	}
	if !in.MediaType.Valid() {
		return errors.New("invalid media type")
	}
	if len(in.Criteria) == 0 {
		return errors.New("criteria is required")
	}
	if in.ActionType == "" {
		in.ActionType = ActionDelete
	}
	if !in.ActionType.Valid() {
		return errors.New("invalid action type")
	}
	return nil
}

// MaintenanceScan records one orchestrator invocation against one rule.
type MaintenanceScan struct {
	ID           int64      `json:"id"`
	RuleID       int64      `json:"rule_id"`
	Status       ScanStatus `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ItemsScanned int        `json:"items_scanned"`
	ItemsFlagged int        `json:"items_flagged"`
	Error        string     `json:"error,omitempty"`
}

// MaintenanceCandidate is an item flagged by a scan, awaiting review.
type MaintenanceCandidate struct {
	ID            int64        `json:"id"`
	ScanID        int64        `json:"scan_id"`
	MediaType     MediaType    `json:"media_type"`
	PlexRatingKey string       `json:"plex_rating_key"`
	RadarrID      *int64       `json:"radarr_id,omitempty"`
	SonarrID      *int64       `json:"sonarr_id,omitempty"`
	TMDBID        string       `json:"tmdb_id,omitempty"`
	TVDBID        string       `json:"tvdb_id,omitempty"`
	Title         string       `json:"title"`
	Year          *int         `json:"year,omitempty"`
	Poster        string       `json:"poster,omitempty"`
	FilePath      string       `json:"file_path,omitempty"`
	FileSize      *int64       `json:"file_size,omitempty"`
	PlayCount     int          `json:"play_count"`
	LastWatchedAt *time.Time   `json:"last_watched_at,omitempty"`
	AddedAt       *time.Time   `json:"added_at,omitempty"`
	MatchedRules  []string     `json:"matched_rules"`
	ReviewStatus  ReviewStatus `json:"review_status"`
	DeletionError string       `json:"deletion_error,omitempty"`
	DeletedAt     *time.Time   `json:"deleted_at,omitempty"`
}

// CandidateInit is the insert shape for candidates produced by a scan.
type CandidateInit struct {
	MediaType     MediaType
	PlexRatingKey string
	RadarrID      *int64
	SonarrID      *int64
	TMDBID        string
	TVDBID        string
	Title         string
	Year          *int
	Poster        string
	FilePath      string
	FileSize      *int64
	PlayCount     int
	LastWatchedAt *time.Time
	AddedAt       *time.Time
	MatchedRules  []string
}

// DeletionLogEntry is one audit row per attempted deletion. Audit rows
// outlive candidates.
type DeletionLogEntry struct {
	ID           int64      `json:"id"`
	CandidateID  int64      `json:"candidate_id"`
	MediaType    MediaType  `json:"media_type"`
	Title        string     `json:"title"`
	Year         *int       `json:"year,omitempty"`
	FileSize     *int64     `json:"file_size,omitempty"`
	DeletedBy    string     `json:"deleted_by"`
	DeletedFrom  string     `json:"deleted_from"`
	FilesDeleted bool       `json:"files_deleted"`
	RuleNames    []string   `json:"rule_names"`
	CreatedAt    time.Time  `json:"created_at"`
}
