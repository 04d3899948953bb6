package repository

import (
	"context"
	"database/sql"
	"fmt"

	"grievance/models"
)

// NotificationLogRepository handles the notification_log table
type NotificationLogRepository struct {
	db dbtx
}

// NewNotificationLogRepository creates a new notification log repository
func NewNotificationLogRepository(db *sql.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Create inserts a log record (status = pending until the send completes).
func (r *NotificationLogRepository) Create(ctx context.Context, log *models.NotificationLog) error {
	if log.Status == "" {
		log.Status = models.NotificationStatusPending
	}
	query := `
		INSERT INTO notification_log (
			complaint_id, kind, recipient, subject, body, status, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		log.ComplaintID,
		log.Kind,
		log.Recipient,
		log.Subject,
		log.Body,
		log.Status,
		log.ErrorMessage,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get notification log id: %w", err)
	}
	log.ID = id
	return nil
}

// UpdateStatus records the outcome of a send attempt. An empty errorMessage
// stores NULL.
func (r *NotificationLogRepository) UpdateStatus(ctx context.Context, id int64, status models.NotificationStatus, errorMessage string) error {
	errMsg := sql.NullString{String: errorMessage, Valid: errorMessage != ""}
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_log SET status = ?, error_message = ? WHERE id = ?`,
		status, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification log status: %w", err)
	}
	return nil
}
