package models

import (
	"database/sql"
	"time"
)

// NotificationKind identifies which of the dispatcher's message shapes was sent
type NotificationKind string

const (
	NotificationUserEscalation NotificationKind = "user_escalation"
	NotificationRoleEscalation NotificationKind = "role_escalation"
	NotificationResolution     NotificationKind = "resolution"
	NotificationCreated        NotificationKind = "complaint_created"
)

// NotificationStatus represents the delivery status of a notification attempt
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is one rendered email handed to a sender
type Notification struct {
	ComplaintID int64
	Kind        NotificationKind
	Recipient   string
	Subject     string
	Body        string
}

// NotificationLog records each delivery attempt (notification_log table)
type NotificationLog struct {
	ID           int64              `db:"id" json:"id"`
	ComplaintID  int64              `db:"complaint_id" json:"complaint_id"`
	Kind         NotificationKind   `db:"kind" json:"kind"`
	Recipient    string             `db:"recipient" json:"recipient"`
	Subject      string             `db:"subject" json:"subject"`
	Body         string             `db:"body" json:"body"`
	Status       NotificationStatus `db:"status" json:"status"`
	ErrorMessage sql.NullString     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}

// UserEscalationNotice tells the complaint's creator it was escalated
type UserEscalationNotice struct {
	Email       string
	ComplaintID int64
	Title       string
	Level       int
	Priority    Priority
}

// RoleEscalationNotice tells a ladder recipient a complaint reached their rung.
// TopLevel selects the top-of-ladder template.
type RoleEscalationNotice struct {
	Email         string
	ComplaintID   int64
	Title         string
	SubmitterName string
	Level         int
	Priority      Priority
	AssigneeRole  string
	TopLevel      bool
}

// CreationNotice confirms a new complaint to its creator
type CreationNotice struct {
	Email           string
	ComplaintID     int64
	ComplaintNumber string
	Title           string
	Category        string
	Priority        Priority
	CreatedAt       time.Time
}

// ResolutionNotice tells the creator the complaint was resolved
type ResolutionNotice struct {
	Email       string
	ComplaintID int64
	Title       string
	ResolvedBy  string
}
