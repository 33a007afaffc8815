package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plexmaint/internal/models"
)

const scanColumns = `id, rule_id, status, started_at, completed_at, items_scanned, items_flagged, error`

func scanScanRow(scanner interface{ Scan(...any) error }) (models.MaintenanceScan, error) {
	var sc models.MaintenanceScan
	var errMsg sql.NullString
	err := scanner.Scan(&sc.ID, &sc.RuleID, &sc.Status, &sc.StartedAt,
		&sc.CompletedAt, &sc.ItemsScanned, &sc.ItemsFlagged, &errMsg)
	if err != nil {
		return sc, err
	}
	sc.Error = errMsg.String
	return sc, nil
}

// CreateScan inserts a RUNNING scan row and returns its id.
func (s *Store) CreateScan(ctx context.Context, ruleID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_scans (rule_id, status, started_at)
		VALUES (?, ?, ?)`,
		ruleID, models.ScanRunning, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("create scan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create scan: %w", err)
	}
	return id, nil
}

// FinishScan transitions a RUNNING scan to its terminal state. The WHERE
// clause keeps the transition single-shot.
func (s *Store) FinishScan(ctx context.Context, scanID int64, status models.ScanStatus, scanned, flagged int, errMsg string) error {
	if status != models.ScanCompleted && status != models.ScanFailed {
		return fmt.Errorf("finish scan: %q is not a terminal status", status)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_scans
		SET status = ?, completed_at = ?, items_scanned = ?, items_flagged = ?, error = ?
		WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), scanned, flagged, nullString(errMsg), scanID, models.ScanRunning)
	if err != nil {
		return fmt.Errorf("finish scan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("scan %d is not running: %w", scanID, models.ErrNotFound)
	}
	return nil
}

// GetScan returns a scan by ID.
func (s *Store) GetScan(ctx context.Context, id int64) (*models.MaintenanceScan, error) {
	sc, err := scanScanRow(s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM maintenance_scans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return &sc, nil
}

// HasRunningScan reports whether a scan for the rule is currently RUNNING.
func (s *Store) HasRunningScan(ctx context.Context, ruleID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM maintenance_scans WHERE rule_id = ? AND status = ?`,
		ruleID, models.ScanRunning).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count running scans: %w", err)
	}
	return count > 0, nil
}

// ListScansForRule returns the most recent scans of a rule.
func (s *Store) ListScansForRule(ctx context.Context, ruleID int64, limit int) ([]models.MaintenanceScan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM maintenance_scans WHERE rule_id = ? ORDER BY started_at DESC LIMIT ?`,
		ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var scans []models.MaintenanceScan
	for rows.Next() {
		sc, err := scanScanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}
