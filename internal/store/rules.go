package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"plexmaint/internal/models"
)

const ruleColumns = `id, name, enabled, media_type, criteria, schedule, action_type, last_run_at, next_run_at, created_at, updated_at`

func scanRule(scanner interface{ Scan(...any) error }) (models.MaintenanceRule, error) {
	var rule models.MaintenanceRule
	var criteria string
	var enabled int
	var schedule sql.NullString
	err := scanner.Scan(&rule.ID, &rule.Name, &enabled, &rule.MediaType, &criteria,
		&schedule, &rule.ActionType, &rule.LastRunAt, &rule.NextRunAt,
		&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return rule, err
	}
	rule.Criteria = json.RawMessage(criteria)
	rule.Enabled = intToBool(enabled)
	rule.Schedule = schedule.String
	return rule, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateMaintenanceRule creates a new maintenance rule.
func (s *Store) CreateMaintenanceRule(ctx context.Context, input *models.MaintenanceRuleInput) (*models.MaintenanceRule, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid maintenance rule: %w", err)
	}
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_rules (name, enabled, media_type, criteria, schedule, action_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		input.Name, boolToInt(input.Enabled), input.MediaType, string(input.Criteria),
		nullString(input.Schedule), input.ActionType, now, now)
	if err != nil {
		return nil, fmt.Errorf("create maintenance rule: %w", err)
	}

	id, _ := result.LastInsertId()
	return s.GetMaintenanceRule(ctx, id)
}

// GetMaintenanceRule returns a rule by ID.
func (s *Store) GetMaintenanceRule(ctx context.Context, id int64) (*models.MaintenanceRule, error) {
	rule, err := scanRule(s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM maintenance_rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get maintenance rule: %w", err)
	}
	return &rule, nil
}

// UpdateMaintenanceRule updates an existing rule.
func (s *Store) UpdateMaintenanceRule(ctx context.Context, id int64, input *models.MaintenanceRuleInput) (*models.MaintenanceRule, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid maintenance rule: %w", err)
	}
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_rules SET name = ?, enabled = ?, media_type = ?, criteria = ?, schedule = ?, action_type = ?, updated_at = ?
		WHERE id = ?`,
		input.Name, boolToInt(input.Enabled), input.MediaType, string(input.Criteria),
		nullString(input.Schedule), input.ActionType, now, id)
	if err != nil {
		return nil, fmt.Errorf("update maintenance rule: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("maintenance rule %d: %w", id, models.ErrNotFound)
	}

	return s.GetMaintenanceRule(ctx, id)
}

// DeleteMaintenanceRule deletes a rule; scans and candidates cascade.
func (s *Store) DeleteMaintenanceRule(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM maintenance_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete maintenance rule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListMaintenanceRules returns all rules, newest first.
func (s *Store) ListMaintenanceRules(ctx context.Context) ([]models.MaintenanceRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM maintenance_rules ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list maintenance rules: %w", err)
	}
	defer rows.Close()

	var rules []models.MaintenanceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ListScheduledEnabledRules returns enabled rules with a cron schedule.
// Used to rebuild scheduler state at worker startup.
func (s *Store) ListScheduledEnabledRules(ctx context.Context) ([]models.MaintenanceRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM maintenance_rules
		WHERE enabled = 1 AND schedule IS NOT NULL AND schedule != ''
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled rules: %w", err)
	}
	defer rows.Close()

	var rules []models.MaintenanceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// TouchRuleLastRun records the completion time of the rule's latest scan.
func (s *Store) TouchRuleLastRun(ctx context.Context, id int64, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE maintenance_rules SET last_run_at = ? WHERE id = ?`, ts.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch rule last run: %w", err)
	}
	return nil
}
