package models

import (
	"strings"
	"time"
)

// EscalationConfig is one rung of the escalation ladder (escalation_config table)
type EscalationConfig struct {
	ID             int64  `db:"id" json:"id"`
	Level          int    `db:"level" json:"level"`
	TimeLimitHours *int64 `db:"time_limit_hours" json:"time_limit_hours"` // nil = priority default
	AssigneeRole   string `db:"assignee_role" json:"assignee_role"`
	Recipients     string `db:"recipients" json:"recipients"` // comma-separated emails
	Active         bool   `db:"active" json:"active"`
}

// TimeLimit returns the rung's override or the priority default.
func (c *EscalationConfig) TimeLimit(p Priority) time.Duration {
	if c != nil && c.TimeLimitHours != nil && *c.TimeLimitHours > 0 {
		return time.Duration(*c.TimeLimitHours) * time.Hour
	}
	return p.DefaultTimeLimit()
}

// RecipientList splits Recipients, dropping blanks.
func (c *EscalationConfig) RecipientList() []string {
	return SplitRecipients(c.Recipients)
}

// SplitRecipients splits a comma-separated email list.
func SplitRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Role labels recorded in escalation history
const (
	HistoryFromInitial = "USER/INITIAL"
	HistoryFromAdmin   = "ADMIN"
	HistoryFromManual  = "Manual Trigger"
)

// EscalationHistory is an append-only audit record of one escalation transition
type EscalationHistory struct {
	ID              int64     `db:"id" json:"id"`
	ComplaintID     int64     `db:"complaint_id" json:"complaint_id"`
	EscalationLevel int       `db:"escalation_level" json:"escalation_level"`
	EscalatedFrom   string    `db:"escalated_from" json:"escalated_from"`
	EscalatedTo     string    `db:"escalated_to" json:"escalated_to"`
	Reason          string    `db:"reason" json:"reason"`
	EscalatedAt     time.Time `db:"escalated_at" json:"escalated_at"`
	Recipients      string    `db:"recipients" json:"recipients"`
}

// EscalationMode distinguishes engine-driven from admin-driven transitions
type EscalationMode string

const (
	EscalationAuto   EscalationMode = "auto"
	EscalationManual EscalationMode = "manual"
)

// EscalationResult represents the outcome for one complaint in a scan pass
type EscalationResult struct {
	ComplaintID int64     `json:"complaint_id"`
	Escalated   bool      `json:"escalated"`
	FromLevel   int       `json:"from_level"`
	ToLevel     int       `json:"to_level"`
	Reason      string    `json:"reason"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// PassReport summarizes one scan pass
type PassReport struct {
	PassID    string             `json:"pass_id"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration_ns"`
	Due       int                `json:"due"`
	Escalated int                `json:"escalated"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Results   []EscalationResult `json:"results"`
}

// PriorityCount is a per-priority tally of complaints
type PriorityCount struct {
	Priority  Priority `db:"priority"`
	Total     int64    `db:"total"`
	Escalated int64    `db:"escalated"`
}

// EscalationStats is the admin dashboard summary
type EscalationStats struct {
	TotalComplaints         int64              `json:"totalComplaints"`
	TotalEscalated          int64              `json:"totalEscalated"`
	PriorityCounts          map[Priority]int64 `json:"priorityCounts"`
	EscalatedPriorityCounts map[Priority]int64 `json:"escalatedPriorityCounts"`
	EscalationRate          string             `json:"escalationRate"`
}
