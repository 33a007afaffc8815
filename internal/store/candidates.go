package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"plexmaint/internal/models"
)

const candidateColumns = `id, scan_id, media_type, plex_rating_key, radarr_id, sonarr_id, tmdb_id, tvdb_id,
	title, year, poster, file_path, file_size, play_count, last_watched_at, added_at,
	matched_rules, review_status, deletion_error, deleted_at`

func scanCandidate(scanner interface{ Scan(...any) error }) (models.MaintenanceCandidate, error) {
	var c models.MaintenanceCandidate
	var tmdbID, tvdbID, poster, filePath, matched, deletionErr sql.NullString
	err := scanner.Scan(&c.ID, &c.ScanID, &c.MediaType, &c.PlexRatingKey,
		&c.RadarrID, &c.SonarrID, &tmdbID, &tvdbID,
		&c.Title, &c.Year, &poster, &filePath, &c.FileSize, &c.PlayCount,
		&c.LastWatchedAt, &c.AddedAt, &matched, &c.ReviewStatus, &deletionErr, &c.DeletedAt)
	if err != nil {
		return c, err
	}
	c.TMDBID = tmdbID.String
	c.TVDBID = tvdbID.String
	c.Poster = poster.String
	c.FilePath = filePath.String
	c.MatchedRules = unmarshalStrings(matched.String)
	c.DeletionError = deletionErr.String
	return c, nil
}

// BatchInsertCandidates inserts all candidates of one scan in a single
// transaction so a failed scan leaves no partial batch behind.
func (s *Store) BatchInsertCandidates(ctx context.Context, scanID int64, inits []models.CandidateInit) error {
	if len(inits) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO maintenance_candidates
			(scan_id, media_type, plex_rating_key, radarr_id, sonarr_id, tmdb_id, tvdb_id,
			 title, year, poster, file_path, file_size, play_count, last_watched_at, added_at,
			 matched_rules, review_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range inits {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := stmt.ExecContext(ctx, scanID, c.MediaType, c.PlexRatingKey,
			c.RadarrID, c.SonarrID, nullString(c.TMDBID), nullString(c.TVDBID),
			c.Title, c.Year, nullString(c.Poster), nullString(c.FilePath), c.FileSize,
			c.PlayCount, c.LastWatchedAt, c.AddedAt,
			marshalStrings(c.MatchedRules), models.ReviewPending)
		if err != nil {
			return fmt.Errorf("insert candidate: %w", err)
		}
	}

	return tx.Commit()
}

// GetCandidate returns a candidate by ID.
func (s *Store) GetCandidate(ctx context.Context, id int64) (*models.MaintenanceCandidate, error) {
	c, err := scanCandidate(s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM maintenance_candidates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return &c, nil
}

// ListCandidatesForScan returns a scan's candidates in insertion order.
func (s *Store) ListCandidatesForScan(ctx context.Context, scanID int64) ([]models.MaintenanceCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM maintenance_candidates WHERE scan_id = ? ORDER BY id`, scanID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// ListCandidatesByStatus returns candidates in a review state, newest first.
func (s *Store) ListCandidatesByStatus(ctx context.Context, status models.ReviewStatus, limit int) ([]models.MaintenanceCandidate, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM maintenance_candidates WHERE review_status = ? ORDER BY id DESC LIMIT ?`,
		status, limit)
	if err != nil {
		return nil, fmt.Errorf("list candidates by status: %w", err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

func collectCandidates(rows *sql.Rows) ([]models.MaintenanceCandidate, error) {
	var out []models.MaintenanceCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindApprovedCandidates returns the APPROVED subset of the given ids,
// in id order. Candidates in any other state are not returned.
func (s *Store) FindApprovedCandidates(ctx context.Context, ids []int64) ([]models.MaintenanceCandidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, models.ReviewApproved)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM maintenance_candidates
		WHERE id IN (`+placeholders+`) AND review_status = ? ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("find approved candidates: %w", err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// SetReviewStatus moves candidates between PENDING/APPROVED/REJECTED.
// Rejected and deleted candidates are terminal and are not touched.
func (s *Store) SetReviewStatus(ctx context.Context, ids []int64, status models.ReviewStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if status != models.ReviewPending && status != models.ReviewApproved && status != models.ReviewRejected {
		return 0, fmt.Errorf("invalid review transition to %q", status)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{status}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, models.ReviewRejected, models.ReviewDeleted)

	result, err := s.db.ExecContext(ctx,
		`UPDATE maintenance_candidates SET review_status = ?
		WHERE id IN (`+placeholders+`) AND review_status NOT IN (?, ?)`, args...)
	if err != nil {
		return 0, fmt.Errorf("set review status: %w", err)
	}
	return result.RowsAffected()
}

// MarkCandidateDeleted transitions an APPROVED candidate to DELETED and
// clears any previous deletion error.
func (s *Store) MarkCandidateDeleted(ctx context.Context, id int64, ts time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_candidates
		SET review_status = ?, deleted_at = ?, deletion_error = NULL
		WHERE id = ? AND review_status = ?`,
		models.ReviewDeleted, ts.UTC(), id, models.ReviewApproved)
	if err != nil {
		return fmt.Errorf("mark candidate deleted: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("candidate %d is not approved: %w", id, models.ErrNotFound)
	}
	return nil
}

// RecordDeletionError stores the failure on the candidate; the candidate
// stays APPROVED so the deletion can be retried.
func (s *Store) RecordDeletionError(ctx context.Context, id int64, msg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE maintenance_candidates SET deletion_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("record deletion error: %w", err)
	}
	return nil
}
