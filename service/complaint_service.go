package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"grievance/models"
	"grievance/repository"

	"go.uber.org/zap"
)

// ComplaintStore is the persistence the complaint lifecycle needs
type ComplaintStore interface {
	InTx(ctx context.Context, fn func(repository.Tx) error) error
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error)
	GetUserContact(ctx context.Context, userID int64) (*models.UserContact, error)
}

// Scheduler computes the escalation schedule of a new complaint
type Scheduler interface {
	InitialSchedule(ctx context.Context, priority models.Priority, now time.Time) (models.EscalationState, error)
}

// ComplaintService handles the complaint lifecycle
type ComplaintService struct {
	store     ComplaintStore
	scheduler Scheduler
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
	bg        background
}

// ComplaintOption configures a ComplaintService
type ComplaintOption func(*ComplaintService)

// WithComplaintClock replaces time.Now, for tests
func WithComplaintClock(now func() time.Time) ComplaintOption {
	return func(s *ComplaintService) { s.now = now }
}

// NewComplaintService creates a new complaint service
func NewComplaintService(store ComplaintStore, scheduler Scheduler, notifier Notifier, logger *zap.Logger, opts ...ComplaintOption) *ComplaintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ComplaintService{
		store:     store,
		scheduler: scheduler,
		notifier:  notifier,
		logger:    logger.Named("complaints"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bg.logger = s.logger
	return s
}

// Wait blocks until in-flight creation and resolution notices have been dispatched.
func (s *ComplaintService) Wait() {
	s.bg.Wait()
}

// CreateComplaint creates an OPEN complaint at level 0 with its first
// escalation already scheduled.
func (s *ComplaintService) CreateComplaint(ctx context.Context, userID int64, req *models.CreateComplaintRequest) (*models.Complaint, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" || description == "" {
		return nil, invalidInput("title and description are required")
	}

	priority := models.PriorityMedium
	if req.Priority != "" {
		priority = models.Priority(strings.ToUpper(string(req.Priority)))
		if priority.OrDefault() != priority {
			return nil, invalidInput("unknown priority %q", req.Priority)
		}
	}

	now := s.now()
	state, err := s.scheduler.InitialSchedule(ctx, priority, now)
	if err != nil {
		return nil, err
	}

	complaint := &models.Complaint{
		UserID:          userID,
		Title:           title,
		Description:     description,
		Status:          models.StatusOpen,
		Priority:        priority,
		EscalationState: state,
		CreatedAt:       now,
	}
	if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
		complaint.Category = sql.NullString{String: strings.TrimSpace(*req.Category), Valid: true}
	}

	if err := s.store.CreateComplaint(ctx, complaint); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Int64("complaint_id", complaint.ComplaintID),
		zap.String("complaint_number", complaint.ComplaintNumber),
		zap.String("priority", string(priority)),
	}
	if kind, due := complaint.Schedule(); kind == models.ScheduleDue {
		fields = append(fields, zap.Time("next_escalation_time", due))
	}
	s.logger.Info("created complaint", fields...)
	s.notifyCreation(ctx, *complaint)
	return complaint, nil
}

// GetComplaint retrieves a complaint by ID
func (s *ComplaintService) GetComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error) {
	c, err := s.store.GetComplaint(ctx, complaintID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrComplaintNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// allowedTransitions lists the statuses reachable from each status.
// Every active status may move to any other active status.
var allowedTransitions = map[models.ComplaintStatus][]models.ComplaintStatus{
	models.StatusResolved: {models.StatusClosed},
	models.StatusClosed:   {},
	models.StatusRejected: {},
}

func isValidStatusTransition(from, to models.ComplaintStatus) bool {
	if from.IsActive() {
		return to.Valid()
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateStatus applies a status change under the complaint's row lock.
// Resolving clears the escalation schedule and notifies the creator once;
// resolving an already resolved complaint changes nothing.
func (s *ComplaintService) UpdateStatus(ctx context.Context, complaintID int64, req *models.UpdateStatusRequest) (*models.Complaint, error) {
	target := models.ComplaintStatus(strings.ToUpper(string(req.Status)))
	if !target.Valid() {
		return nil, invalidInput("unknown status %q", req.Status)
	}

	var updated models.Complaint
	resolved := false
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		c, err := tx.LockComplaint(ctx, complaintID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrComplaintNotFound
		}
		if err != nil {
			return err
		}

		assignee := strings.TrimSpace(req.AssignedTo)
		reassign := assignee != "" && (!c.AssignedTo.Valid || c.AssignedTo.String != assignee)
		if c.Status == target && !reassign {
			updated = *c
			return nil
		}
		if c.Status != target && !isValidStatusTransition(c.Status, target) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, target)
		}

		now := s.now()
		if reassign {
			c.AssignedTo = sql.NullString{String: assignee, Valid: true}
		}
		c.UpdatedAt = sql.NullTime{Time: now, Valid: true}
		if c.Status == target {
			updated = *c
			return tx.SaveStatus(ctx, c)
		}
		c.Status = target
		switch target {
		case models.StatusResolved:
			c.ResolvedAt = sql.NullTime{Time: now, Valid: true}
			c.Unschedule()
			resolved = true
		case models.StatusClosed, models.StatusRejected:
			c.Unschedule()
		}
		if err := tx.SaveStatus(ctx, c); err != nil {
			return err
		}
		updated = *c
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrComplaintNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update status of complaint %d: %w", complaintID, err)
	}

	if resolved {
		s.logger.Info("resolved complaint", zap.Int64("complaint_id", complaintID))
		s.notifyResolution(ctx, updated, resolvedBy(req.ResolvedBy, updated))
	}
	return &updated, nil
}

func resolvedBy(requested string, c models.Complaint) string {
	if r := strings.TrimSpace(requested); r != "" {
		return r
	}
	if c.AssignedTo.Valid && c.AssignedTo.String != "" {
		return c.AssignedTo.String
	}
	return "System"
}

func (s *ComplaintService) notifyCreation(ctx context.Context, c models.Complaint) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.bg.Go("creation-notify", func() {
		contact, err := s.store.GetUserContact(ctx, c.UserID)
		if err != nil {
			s.logger.Warn("failed to look up complaint creator",
				zap.Int64("complaint_id", c.ComplaintID), zap.Error(err))
			return
		}
		email := contactEmail(contact)
		if email == "" {
			s.logger.Debug("complaint creator has no email; skipping creation notice",
				zap.Int64("complaint_id", c.ComplaintID))
			return
		}
		s.notifier.DispatchCreation(ctx, models.CreationNotice{
			Email:           email,
			ComplaintID:     c.ComplaintID,
			ComplaintNumber: c.ComplaintNumber,
			Title:           c.Title,
			Category:        c.Category.String,
			Priority:        c.Priority,
			CreatedAt:       c.CreatedAt,
		})
	})
}

func (s *ComplaintService) notifyResolution(ctx context.Context, c models.Complaint, by string) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.bg.Go("resolution-notify", func() {
		contact, err := s.store.GetUserContact(ctx, c.UserID)
		if err != nil {
			s.logger.Warn("failed to look up complaint creator",
				zap.Int64("complaint_id", c.ComplaintID), zap.Error(err))
			return
		}
		email := contactEmail(contact)
		if email == "" {
			s.logger.Warn("complaint creator has no email; skipping resolution notice",
				zap.Int64("complaint_id", c.ComplaintID))
			return
		}
		s.notifier.DispatchResolution(ctx, models.ResolutionNotice{
			Email:       email,
			ComplaintID: c.ComplaintID,
			Title:       c.Title,
			ResolvedBy:  by,
		})
	})
}
