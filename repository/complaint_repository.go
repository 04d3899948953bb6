package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"grievance/models"

	"github.com/google/uuid"
)

// ComplaintRepository handles database operations for complaints
type ComplaintRepository struct {
	db dbtx
}

// NewComplaintRepository creates a new complaint repository
func NewComplaintRepository(db *sql.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

const complaintColumns = `
	complaint_id, complaint_number, user_id, title, description, category,
	status, COALESCE(priority, 'MEDIUM'), assigned_to,
	COALESCE(escalation_level, 0), escalated_at, next_escalation_time,
	escalation_recipients, escalation_notes,
	resolved_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComplaint(row rowScanner) (*models.Complaint, error) {
	var c models.Complaint
	var priority sql.NullString
	err := row.Scan(
		&c.ComplaintID, &c.ComplaintNumber, &c.UserID,
		&c.Title, &c.Description, &c.Category,
		&c.Status, &priority, &c.AssignedTo,
		&c.EscalationLevel, &c.EscalatedAt, &c.NextEscalationTime,
		&c.EscalationRecipients, &c.EscalationNotes,
		&c.ResolvedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// Rows written before priority was required carry NULL; treat them as MEDIUM.
	c.Priority = models.Priority(strings.ToUpper(strings.TrimSpace(priority.String))).OrDefault()
	return &c, nil
}

func scanComplaints(rows *sql.Rows) ([]models.Complaint, error) {
	defer rows.Close()

	var complaints []models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating complaints: %w", err)
	}
	return complaints, nil
}

// GenerateComplaintNumber generates a unique public complaint number
// Format: COMP-YYYYMMDD-{UUID prefix}
func GenerateComplaintNumber(now time.Time) string {
	return fmt.Sprintf("COMP-%s-%s", now.UTC().Format("20060102"), uuid.New().String()[:8])
}

// Create inserts a complaint with its initial escalation schedule
func (r *ComplaintRepository) Create(ctx context.Context, c *models.Complaint) error {
	if c.ComplaintNumber == "" {
		c.ComplaintNumber = GenerateComplaintNumber(c.CreatedAt)
	}

	query := `
		INSERT INTO complaints (
			complaint_number, user_id, title, description, category,
			status, priority, assigned_to,
			escalation_level, next_escalation_time, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		c.ComplaintNumber,
		c.UserID,
		c.Title,
		c.Description,
		c.Category,
		c.Status,
		c.Priority,
		c.AssignedTo,
		c.EscalationLevel,
		c.NextEscalationTime,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get complaint ID: %w", err)
	}
	c.ComplaintID = id
	return nil
}

// GetByID retrieves a complaint by its ID
func (r *ComplaintRepository) GetByID(ctx context.Context, complaintID int64) (*models.Complaint, error) {
	return r.getOne(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE complaint_id = ?`, complaintID)
}

// LockByID retrieves a complaint and holds its row lock until the enclosing
// transaction ends. Only meaningful when the repository runs on a *sql.Tx.
func (r *ComplaintRepository) LockByID(ctx context.Context, complaintID int64) (*models.Complaint, error) {
	return r.getOne(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE complaint_id = ? FOR UPDATE`, complaintID)
}

func (r *ComplaintRepository) getOne(ctx context.Context, query string, complaintID int64) (*models.Complaint, error) {
	c, err := scanComplaint(r.db.QueryRowContext(ctx, query, complaintID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get complaint %d: %w", complaintID, err)
	}
	return c, nil
}

// FindDueForEscalation returns active complaints whose next escalation time
// has passed. With singleHop only never-escalated complaints are returned.
func (r *ComplaintRepository) FindDueForEscalation(ctx context.Context, now time.Time, singleHop bool) ([]models.Complaint, error) {
	placeholders := make([]string, len(models.ActiveStatuses))
	args := make([]interface{}, 0, len(models.ActiveStatuses)+1)
	for i, s := range models.ActiveStatuses {
		placeholders[i] = "?"
		args = append(args, string(s))
	}

	levelFilter := ""
	if singleHop {
		levelFilter = "AND (escalation_level IS NULL OR escalation_level = 0)"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM complaints
		WHERE status IN (%s)
			%s
			AND next_escalation_time IS NOT NULL
			AND next_escalation_time <= ?
		ORDER BY next_escalation_time ASC
	`, complaintColumns, strings.Join(placeholders, ", "), levelFilter)
	args = append(args, now.UTC())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints due for escalation: %w", err)
	}
	return scanComplaints(rows)
}

// UpdateEscalationState writes the escalation fields and the assignment
func (r *ComplaintRepository) UpdateEscalationState(ctx context.Context, c *models.Complaint) error {
	query := `
		UPDATE complaints SET
			assigned_to = ?,
			escalation_level = ?,
			escalated_at = ?,
			next_escalation_time = ?,
			escalation_recipients = ?,
			escalation_notes = ?,
			updated_at = ?
		WHERE complaint_id = ?
	`
	return r.execOne(ctx, "update escalation state", query,
		c.AssignedTo,
		c.EscalationLevel,
		c.EscalatedAt,
		c.NextEscalationTime,
		c.EscalationRecipients,
		c.EscalationNotes,
		c.UpdatedAt,
		c.ComplaintID,
	)
}

// UpdateStatus writes the lifecycle fields
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, c *models.Complaint) error {
	query := `
		UPDATE complaints SET
			status = ?,
			assigned_to = ?,
			resolved_at = ?,
			next_escalation_time = ?,
			updated_at = ?
		WHERE complaint_id = ?
	`
	return r.execOne(ctx, "update complaint status", query,
		c.Status,
		c.AssignedTo,
		c.ResolvedAt,
		c.NextEscalationTime,
		c.UpdatedAt,
		c.ComplaintID,
	)
}

func (r *ComplaintRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEscalated returns complaints above level 0, most recently escalated first
func (r *ComplaintRepository) ListEscalated(ctx context.Context) ([]models.Complaint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE escalation_level > 0
		ORDER BY escalated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalated complaints: %w", err)
	}
	return scanComplaints(rows)
}

// CountByPriority tallies all complaints and escalated complaints per priority.
// A complaint counts as escalated once escalated_at is set.
func (r *ComplaintRepository) CountByPriority(ctx context.Context) ([]models.PriorityCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			COALESCE(priority, 'MEDIUM'),
			COUNT(*),
			COALESCE(SUM(CASE WHEN escalated_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM complaints
		GROUP BY priority
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count complaints by priority: %w", err)
	}
	defer rows.Close()

	var counts []models.PriorityCount
	for rows.Next() {
		var pc models.PriorityCount
		if err := rows.Scan(&pc.Priority, &pc.Total, &pc.Escalated); err != nil {
			return nil, fmt.Errorf("failed to scan priority count: %w", err)
		}
		counts = append(counts, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating priority counts: %w", err)
	}
	return counts, nil
}
