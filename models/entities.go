package models

import (
	"database/sql"
	"time"
)

// ComplaintStatus represents the possible statuses of a complaint
type ComplaintStatus string

const (
	StatusNew         ComplaintStatus = "NEW"
	StatusOpen        ComplaintStatus = "OPEN"
	StatusUnderReview ComplaintStatus = "UNDER_REVIEW"
	StatusInProgress  ComplaintStatus = "IN_PROGRESS"
	StatusResolved    ComplaintStatus = "RESOLVED"
	StatusClosed      ComplaintStatus = "CLOSED"
	StatusRejected    ComplaintStatus = "REJECTED"
)

// ActiveStatuses are the statuses the escalation engine operates on.
var ActiveStatuses = []ComplaintStatus{StatusOpen, StatusInProgress, StatusNew, StatusUnderReview}

// IsActive reports whether the complaint can still be escalated.
func (s ComplaintStatus) IsActive() bool {
	switch s {
	case StatusNew, StatusOpen, StatusUnderReview, StatusInProgress:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusNew, StatusOpen, StatusUnderReview, StatusInProgress,
		StatusResolved, StatusClosed, StatusRejected:
		return true
	}
	return false
}

// Priority represents complaint priority levels
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// OrDefault returns MEDIUM for an empty or unknown priority.
func (p Priority) OrDefault() Priority {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	}
	return PriorityMedium
}

// DefaultTimeLimit is the time budget for a priority when the ladder rung
// carries no override: HIGH=12h, MEDIUM=24h, LOW=48h.
func (p Priority) DefaultTimeLimit() time.Duration {
	switch p.OrDefault() {
	case PriorityHigh:
		return 12 * time.Hour
	case PriorityLow:
		return 48 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Complaint represents a complaint entity
type Complaint struct {
	ComplaintID     int64           `db:"complaint_id" json:"complaint_id"`
	ComplaintNumber string          `db:"complaint_number" json:"complaint_number"`
	UserID          int64           `db:"user_id" json:"user_id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Category        sql.NullString  `db:"category" json:"category"`
	Status          ComplaintStatus `db:"status" json:"status"`
	Priority        Priority        `db:"priority" json:"priority"`
	AssignedTo      sql.NullString  `db:"assigned_to" json:"assigned_to"`
	EscalationState
	ResolvedAt sql.NullTime `db:"resolved_at" json:"resolved_at"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  sql.NullTime `db:"updated_at" json:"updated_at"`
}

// ScheduleKind tells whether further automatic escalation is pending.
type ScheduleKind int

const (
	// ScheduleNone: nothing scheduled (no level-1 rung at creation, terminal
	// rung reached, manual escalation, or the complaint left the active set).
	ScheduleNone ScheduleKind = iota
	// ScheduleDue: NextEscalationTime holds the next due time.
	ScheduleDue
)

// EscalationState holds the escalation fields layered over the complaint status.
// Level 0 means not yet escalated.
type EscalationState struct {
	EscalationLevel      int            `db:"escalation_level" json:"escalation_level"`
	EscalatedAt          sql.NullTime   `db:"escalated_at" json:"escalated_at"`
	NextEscalationTime   sql.NullTime   `db:"next_escalation_time" json:"next_escalation_time"`
	EscalationRecipients sql.NullString `db:"escalation_recipients" json:"escalation_recipients"`
	EscalationNotes      sql.NullString `db:"escalation_notes" json:"escalation_notes"`
}

// Schedule returns the schedule variant and, for ScheduleDue, the due time.
func (s EscalationState) Schedule() (ScheduleKind, time.Time) {
	if !s.NextEscalationTime.Valid {
		return ScheduleNone, time.Time{}
	}
	return ScheduleDue, s.NextEscalationTime.Time
}

// ScheduleAt sets the next due time.
func (s *EscalationState) ScheduleAt(t time.Time) {
	s.NextEscalationTime = sql.NullTime{Time: t.UTC(), Valid: true}
}

// Unschedule clears the next due time.
func (s *EscalationState) Unschedule() {
	s.NextEscalationTime = sql.NullTime{}
}

// IsDueForEscalation evaluates the scan predicate against c at now. With
// singleHop only never-escalated complaints qualify.
func IsDueForEscalation(c *Complaint, now time.Time, singleHop bool) bool {
	if !c.Status.IsActive() {
		return false
	}
	if singleHop && c.EscalationLevel != 0 {
		return false
	}
	kind, due := c.Schedule()
	return kind == ScheduleDue && !due.After(now)
}

// UserContact is the subset of a user needed to address notifications
type UserContact struct {
	UserID   int64          `db:"user_id" json:"user_id"`
	Username string         `db:"username" json:"username"`
	FullName sql.NullString `db:"full_name" json:"full_name"`
	Email    sql.NullString `db:"email" json:"email"`
}

// DisplayName prefers the full name, then the username.
func (u *UserContact) DisplayName() string {
	if u == nil {
		return "Unknown User"
	}
	if u.FullName.Valid && u.FullName.String != "" {
		return u.FullName.String
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown User"
}

// CreateComplaintRequest represents the request to create a complaint
type CreateComplaintRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    *string  `json:"category,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
}

// UpdateStatusRequest represents an admin status change
type UpdateStatusRequest struct {
	Status     ComplaintStatus `json:"status"`
	ResolvedBy string          `json:"resolved_by,omitempty"`
	AssignedTo string          `json:"assigned_to,omitempty"`
}

// ManualEscalationRequest represents an admin-forced escalation
type ManualEscalationRequest struct {
	TargetLevel int    `json:"target_level"`
	Reason      string `json:"reason"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ComplaintResponse is the JSON view of a complaint
type ComplaintResponse struct {
	ComplaintID          int64           `json:"complaint_id"`
	ComplaintNumber      string          `json:"complaint_number"`
	UserID               int64           `json:"user_id"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Category             *string         `json:"category,omitempty"`
	Status               ComplaintStatus `json:"status"`
	Priority             Priority        `json:"priority"`
	AssignedTo           *string         `json:"assigned_to,omitempty"`
	EscalationLevel      int             `json:"escalation_level"`
	EscalatedAt          *time.Time      `json:"escalated_at,omitempty"`
	NextEscalationTime   *time.Time      `json:"next_escalation_time,omitempty"`
	EscalationRecipients *string         `json:"escalation_recipients,omitempty"`
	EscalationNotes      *string         `json:"escalation_notes,omitempty"`
	ResolvedAt           *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            *time.Time      `json:"updated_at,omitempty"`
}

// NewComplaintResponse converts c for the API
func NewComplaintResponse(c *Complaint) ComplaintResponse {
	return ComplaintResponse{
		ComplaintID:          c.ComplaintID,
		ComplaintNumber:      c.ComplaintNumber,
		UserID:               c.UserID,
		Title:                c.Title,
		Description:          c.Description,
		Category:             stringPtr(c.Category),
		Status:               c.Status,
		Priority:             c.Priority.OrDefault(),
		AssignedTo:           stringPtr(c.AssignedTo),
		EscalationLevel:      c.EscalationLevel,
		EscalatedAt:          timePtr(c.EscalatedAt),
		NextEscalationTime:   timePtr(c.NextEscalationTime),
		EscalationRecipients: stringPtr(c.EscalationRecipients),
		EscalationNotes:      stringPtr(c.EscalationNotes),
		ResolvedAt:           timePtr(c.ResolvedAt),
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            timePtr(c.UpdatedAt),
	}
}

// NewComplaintResponses converts a list for the API
func NewComplaintResponses(cs []Complaint) []ComplaintResponse {
	out := make([]ComplaintResponse, 0, len(cs))
	for i := range cs {
		out = append(out, NewComplaintResponse(&cs[i]))
	}
	return out
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
