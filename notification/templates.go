package notification

import (
	"fmt"
	"time"

	"grievance/models"
)

const signature = `
Best regards,
IT Grievance System
----------------------------
This is an automated notification. Please do not reply to this email.`

// UserEscalationEmail renders the notice sent to a complaint's creator
func UserEscalationEmail(n models.UserEscalationNotice) (subject, body string) {
	priority := n.Priority.OrDefault()
	subject = fmt.Sprintf("Your %s priority complaint #%d has been escalated", priority, n.ComplaintID)
	body = fmt.Sprintf(`Dear User,

Your %s priority complaint has been escalated to level %d for attention.

Complaint ID: #%d
Title: %s
Priority: %s
Escalation reason: not resolved within %s

You will receive another update when your complaint is resolved.
%s`,
		priority, n.Level, n.ComplaintID, n.Title, priority, formatHours(priority.DefaultTimeLimit()), signature)
	return subject, body
}

// RoleEscalationEmail renders the notice sent to a ladder recipient. The
// top-of-ladder template is more urgent.
func RoleEscalationEmail(n models.RoleEscalationNotice) (subject, body string) {
	priority := n.Priority.OrDefault()
	submitter := n.SubmitterName
	if submitter == "" {
		submitter = "Unknown User"
	}

	if n.TopLevel {
		subject = fmt.Sprintf("%s PRIORITY: complaint #%d escalated to %s", priority, n.ComplaintID, roleOrLevel(n))
		body = fmt.Sprintf(`URGENT: %s priority complaint escalated to the top of the escalation ladder.

Complaint ID: #%d
Title: %s
Submitted by: %s
Priority: %s
Escalation level: %d (%s)
Time limit elapsed: %s

Action required:
1. Review the complaint immediately
2. Assign it to the appropriate personnel
3. Resolve it and update the complaint status

The user has been notified about this escalation.
%s`,
			priority, n.ComplaintID, n.Title, submitter, priority, n.Level, roleOrLevel(n),
			formatHours(priority.DefaultTimeLimit()), signature)
		return subject, body
	}

	subject = fmt.Sprintf("Complaint #%d escalated to level %d", n.ComplaintID, n.Level)
	body = fmt.Sprintf(`Complaint escalation notification

Complaint ID: #%d
Title: %s
User: %s
Priority: %s
Escalation level: %d
Assigned to: %s

This complaint was escalated because it was not resolved within its time limit.
Please review it and update its status.
%s`,
		n.ComplaintID, n.Title, submitter, priority, n.Level, roleOrLevel(n), signature)
	return subject, body
}

// CreationEmail renders the confirmation sent when a complaint is filed
func CreationEmail(n models.CreationNotice) (subject, body string) {
	category := n.Category
	if category == "" {
		category = "General"
	}
	subject = fmt.Sprintf("Complaint #%d created successfully", n.ComplaintID)
	body = fmt.Sprintf(`Dear User,

Your complaint has been successfully created.

Complaint ID: #%d
Reference: %s
Title: %s
Category: %s
Priority: %s
Created on: %s

Our support team will review it shortly.
%s`,
		n.ComplaintID, n.ComplaintNumber, n.Title, category, n.Priority.OrDefault(),
		n.CreatedAt.UTC().Format(time.RFC1123), signature)
	return subject, body
}

// ResolutionEmail renders the notice sent to the creator on resolution
func ResolutionEmail(n models.ResolutionNotice, resolvedAt time.Time) (subject, body string) {
	subject = fmt.Sprintf("Your complaint #%d has been resolved", n.ComplaintID)
	body = fmt.Sprintf(`Dear User,

Your complaint has been resolved.

Complaint ID: #%d
Title: %s
Resolved by: %s
Resolved on: %s

If you have any further issues, please submit a new complaint.
%s`,
		n.ComplaintID, n.Title, n.ResolvedBy, resolvedAt.UTC().Format(time.RFC1123), signature)
	return subject, body
}

func roleOrLevel(n models.RoleEscalationNotice) string {
	if n.AssigneeRole != "" {
		return n.AssigneeRole
	}
	return fmt.Sprintf("LEVEL_%d", n.Level)
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%d hours", int(d.Hours()))
}
