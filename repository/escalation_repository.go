package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"grievance/models"
)

// EscalationRepository handles the escalation ladder and the escalation history
type EscalationRepository struct {
	db dbtx
}

// NewEscalationRepository creates a new escalation repository
func NewEscalationRepository(db *sql.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

const configColumns = `id, level, time_limit_hours, assignee_role, recipients, active`

func scanConfig(row rowScanner) (*models.EscalationConfig, error) {
	var cfg models.EscalationConfig
	var hours sql.NullInt64
	var recipients sql.NullString
	if err := row.Scan(
		&cfg.ID,
		&cfg.Level,
		&hours,
		&cfg.AssigneeRole,
		&recipients,
		&cfg.Active,
	); err != nil {
		return nil, err
	}
	if hours.Valid {
		cfg.TimeLimitHours = &hours.Int64
	}
	cfg.Recipients = recipients.String
	return &cfg, nil
}

// FindConfigByLevel returns the config row for level, active or not.
// A missing level returns (nil, nil).
func (r *EscalationRepository) FindConfigByLevel(ctx context.Context, level int) (*models.EscalationConfig, error) {
	cfg, err := scanConfig(r.db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM escalation_config WHERE level = ?`, level))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation config for level %d: %w", level, err)
	}
	return cfg, nil
}

// FindActiveConfigsOrderedByLevel retrieves all active ladder rungs
func (r *EscalationRepository) FindActiveConfigsOrderedByLevel(ctx context.Context) ([]models.EscalationConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+configColumns+`
		FROM escalation_config
		WHERE active = true
		ORDER BY level ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation configs: %w", err)
	}
	defer rows.Close()

	var configs []models.EscalationConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation configs: %w", err)
	}
	return configs, nil
}

// UpsertConfig inserts the rung or replaces the existing row for its level
func (r *EscalationRepository) UpsertConfig(ctx context.Context, cfg *models.EscalationConfig) error {
	query := `
		INSERT INTO escalation_config (level, time_limit_hours, assignee_role, recipients, active)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			time_limit_hours = VALUES(time_limit_hours),
			assignee_role = VALUES(assignee_role),
			recipients = VALUES(recipients),
			active = VALUES(active)
	`
	result, err := r.db.ExecContext(ctx, query,
		cfg.Level,
		cfg.TimeLimitHours,
		cfg.AssigneeRole,
		cfg.Recipients,
		cfg.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save escalation config for level %d: %w", cfg.Level, err)
	}
	if id, err := result.LastInsertId(); err == nil && id > 0 {
		cfg.ID = id
	}
	return nil
}

// DeleteConfigByLevel removes the rung for level
func (r *EscalationRepository) DeleteConfigByLevel(ctx context.Context, level int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM escalation_config WHERE level = ?`, level)
	if err != nil {
		return fmt.Errorf("failed to delete escalation config for level %d: %w", level, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete escalation config for level %d: %w", level, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateHistory appends an escalation history record
func (r *EscalationRepository) CreateHistory(ctx context.Context, h *models.EscalationHistory) error {
	query := `
		INSERT INTO escalation_history (
			complaint_id, escalation_level, escalated_from, escalated_to,
			reason, escalated_at, recipients
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		h.ComplaintID,
		h.EscalationLevel,
		h.EscalatedFrom,
		h.EscalatedTo,
		h.Reason,
		h.EscalatedAt,
		sql.NullString{String: h.Recipients, Valid: h.Recipients != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get escalation history ID: %w", err)
	}
	h.ID = id
	return nil
}

// GetHistoryByComplaint returns a complaint's history, newest first
func (r *EscalationRepository) GetHistoryByComplaint(ctx context.Context, complaintID int64) ([]models.EscalationHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, complaint_id, escalation_level, escalated_from, escalated_to,
			reason, escalated_at, recipients
		FROM escalation_history
		WHERE complaint_id = ?
		ORDER BY escalated_at DESC, id DESC
	`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation history: %w", err)
	}
	defer rows.Close()

	history := []models.EscalationHistory{}
	for rows.Next() {
		var h models.EscalationHistory
		var from, to, reason, recipients sql.NullString
		if err := rows.Scan(
			&h.ID,
			&h.ComplaintID,
			&h.EscalationLevel,
			&from,
			&to,
			&reason,
			&h.EscalatedAt,
			&recipients,
		); err != nil {
			return nil, fmt.Errorf("failed to scan escalation history: %w", err)
		}
		h.EscalatedFrom, h.EscalatedTo, h.Reason = from.String, to.String, reason.String
		h.Recipients = recipients.String
		history = append(history, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation history: %w", err)
	}
	return history, nil
}

// LastEscalatedAt returns the newest history timestamp for a complaint, if any
func (r *EscalationRepository) LastEscalatedAt(ctx context.Context, complaintID int64) (sql.NullTime, error) {
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(escalated_at) FROM escalation_history WHERE complaint_id = ?`,
		complaintID,
	).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return sql.NullTime{}, fmt.Errorf("failed to get last escalation time: %w", err)
	}
	return last, nil
}
