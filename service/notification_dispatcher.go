package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grievance/metrics"
	"grievance/models"
	"grievance/notification"

	"go.uber.org/zap"
)

// Notifier delivers escalation and resolution notices. Implementations
// never report errors back; delivery failures are handled internally.
type Notifier interface {
	DispatchUserEscalation(ctx context.Context, n models.UserEscalationNotice)
	DispatchRoleEscalation(ctx context.Context, n models.RoleEscalationNotice)
	DispatchResolution(ctx context.Context, n models.ResolutionNotice)
	DispatchCreation(ctx context.Context, n models.CreationNotice)
}

// NotificationLogStore records delivery attempts
type NotificationLogStore interface {
	Create(ctx context.Context, log *models.NotificationLog) error
	UpdateStatus(ctx context.Context, id int64, status models.NotificationStatus, errorMessage string) error
}

// NotificationDispatcher renders notices and sends them by email. Every
// attempt is logged and, when a log store is set, recorded as pending and
// then sent or failed.
type NotificationDispatcher struct {
	sender  notification.Sender
	logs    NotificationLogStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewNotificationDispatcher creates a dispatcher. logs and m may be nil.
func NewNotificationDispatcher(sender notification.Sender, logs NotificationLogStore, logger *zap.Logger, m *metrics.Metrics) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationDispatcher{
		sender:  sender,
		logs:    logs,
		logger:  logger.Named("notify"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// DispatchUserEscalation tells the creator their complaint was escalated
func (d *NotificationDispatcher) DispatchUserEscalation(ctx context.Context, n models.UserEscalationNotice) {
	subject, body := notification.UserEscalationEmail(n)
	d.deliver(ctx, models.Notification{
		ComplaintID: n.ComplaintID,
		Kind:        models.NotificationUserEscalation,
		Recipient:   n.Email,
		Subject:     subject,
		Body:        body,
	})
}

// DispatchRoleEscalation tells a ladder recipient a complaint reached their level
func (d *NotificationDispatcher) DispatchRoleEscalation(ctx context.Context, n models.RoleEscalationNotice) {
	subject, body := notification.RoleEscalationEmail(n)
	d.deliver(ctx, models.Notification{
		ComplaintID: n.ComplaintID,
		Kind:        models.NotificationRoleEscalation,
		Recipient:   n.Email,
		Subject:     subject,
		Body:        body,
	})
}

// DispatchResolution tells the creator their complaint was resolved
func (d *NotificationDispatcher) DispatchResolution(ctx context.Context, n models.ResolutionNotice) {
	subject, body := notification.ResolutionEmail(n, d.now())
	d.deliver(ctx, models.Notification{
		ComplaintID: n.ComplaintID,
		Kind:        models.NotificationResolution,
		Recipient:   n.Email,
		Subject:     subject,
		Body:        body,
	})
}

// DispatchCreation confirms a new complaint to its creator
func (d *NotificationDispatcher) DispatchCreation(ctx context.Context, n models.CreationNotice) {
	subject, body := notification.CreationEmail(n)
	d.deliver(ctx, models.Notification{
		ComplaintID: n.ComplaintID,
		Kind:        models.NotificationCreated,
		Recipient:   n.Email,
		Subject:     subject,
		Body:        body,
	})
}

func (d *NotificationDispatcher) deliver(ctx context.Context, n models.Notification) {
	kind := string(n.Kind)
	logger := d.logger.With(
		zap.Int64("complaint_id", n.ComplaintID),
		zap.String("kind", kind),
		zap.String("recipient", n.Recipient))
	defer func() {
		if p := recover(); p != nil {
			d.metrics.IncNotification(kind, "failed")
			logger.Error("notification delivery panicked", zap.Any("panic", p))
		}
	}()

	n.Recipient = strings.TrimSpace(n.Recipient)
	if n.Recipient == "" {
		d.metrics.IncNotification(kind, "skipped")
		logger.Debug("no recipient; notification skipped")
		return
	}

	entry := &models.NotificationLog{
		ComplaintID: n.ComplaintID,
		Kind:        n.Kind,
		Recipient:   n.Recipient,
		Subject:     n.Subject,
		Body:        n.Body,
		Status:      models.NotificationStatusPending,
		CreatedAt:   d.now(),
	}
	if d.logs != nil {
		if err := d.logs.Create(ctx, entry); err != nil {
			logger.Warn("failed to record notification attempt", zap.Error(err))
			entry.ID = 0
		}
	}

	if err := d.send(ctx, &n); err != nil {
		d.metrics.IncNotification(kind, "failed")
		logger.Warn("notification delivery failed", zap.Error(err))
		d.record(ctx, logger, entry.ID, models.NotificationStatusFailed, err.Error())
		return
	}
	d.metrics.IncNotification(kind, "sent")
	logger.Info("notification sent")
	d.record(ctx, logger, entry.ID, models.NotificationStatusSent, "")
}

func (d *NotificationDispatcher) send(ctx context.Context, n *models.Notification) error {
	if d.sender == nil {
		return fmt.Errorf("no sender configured")
	}
	return d.sender.Send(ctx, n)
}

func (d *NotificationDispatcher) record(ctx context.Context, logger *zap.Logger, id int64, status models.NotificationStatus, msg string) {
	if d.logs == nil || id == 0 {
		return
	}
	if err := d.logs.UpdateStatus(ctx, id, status, msg); err != nil {
		logger.Warn("failed to update notification log", zap.Error(err))
	}
}
