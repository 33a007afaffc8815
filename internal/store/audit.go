package store

import (
	"context"
	"fmt"
	"time"

	"plexmaint/internal/models"
)

// InsertDeletionLog writes one audit row for an attempted deletion.
func (s *Store) InsertDeletionLog(ctx context.Context, e *models.DeletionLogEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_deletion_log
			(candidate_id, media_type, title, year, file_size, deleted_by, deleted_from, files_deleted, rule_names, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CandidateID, e.MediaType, e.Title, e.Year, e.FileSize,
		e.DeletedBy, e.DeletedFrom, boolToInt(e.FilesDeleted),
		marshalStrings(e.RuleNames), created)
	if err != nil {
		return fmt.Errorf("insert deletion log: %w", err)
	}
	return nil
}

// ListDeletionLog returns the newest audit rows.
func (s *Store) ListDeletionLog(ctx context.Context, limit int) ([]models.DeletionLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, candidate_id, media_type, title, year, file_size, deleted_by, deleted_from, files_deleted, rule_names, created_at
		FROM maintenance_deletion_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deletion log: %w", err)
	}
	defer rows.Close()

	var entries []models.DeletionLogEntry
	for rows.Next() {
		var e models.DeletionLogEntry
		var filesDeleted int
		var ruleNames string
		err := rows.Scan(&e.ID, &e.CandidateID, &e.MediaType, &e.Title, &e.Year,
			&e.FileSize, &e.DeletedBy, &e.DeletedFrom, &filesDeleted, &ruleNames, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan deletion log: %w", err)
		}
		e.FilesDeleted = intToBool(filesDeleted)
		e.RuleNames = unmarshalStrings(ruleNames)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
