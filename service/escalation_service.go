package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"grievance/metrics"
	"grievance/models"
	"grievance/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EscalationStore is the persistence the escalation engine needs
type EscalationStore interface {
	InTx(ctx context.Context, fn func(repository.Tx) error) error
	FindDueForEscalation(ctx context.Context, now time.Time, singleHop bool) ([]models.Complaint, error)
	FindConfigByLevel(ctx context.Context, level int) (*models.EscalationConfig, error)
	FindActiveConfigsOrderedByLevel(ctx context.Context) ([]models.EscalationConfig, error)
	UpsertConfig(ctx context.Context, cfg *models.EscalationConfig) error
	DeleteConfigByLevel(ctx context.Context, level int) error
	GetHistory(ctx context.Context, complaintID int64) ([]models.EscalationHistory, error)
	GetComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error)
	ListEscalated(ctx context.Context) ([]models.Complaint, error)
	CountByPriority(ctx context.Context) ([]models.PriorityCount, error)
	GetUserContact(ctx context.Context, userID int64) (*models.UserContact, error)
}

// Option configures an EscalationService
type Option func(*EscalationService)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *EscalationService) { s.now = now }
}

// WithMultiHop lets the automatic path advance complaints past level 1
func WithMultiHop(enabled bool) Option {
	return func(s *EscalationService) { s.multiHop = enabled }
}

// WithMetrics records pass and escalation metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *EscalationService) { s.metrics = m }
}

// EscalationService is the escalation engine. It runs scan passes, manual
// escalations and the ladder admin operations.
type EscalationService struct {
	store    EscalationStore
	notifier Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	multiHop bool

	// passMu serializes scan passes regardless of who triggers them
	passMu sync.Mutex
	bg     background
}

// NewEscalationService creates a new escalation service
func NewEscalationService(store EscalationStore, notifier Notifier, logger *zap.Logger, opts ...Option) *EscalationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EscalationService{
		store:    store,
		notifier: notifier,
		logger:   logger.Named("escalation"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bg.logger = s.logger
	if s.multiHop {
		s.logger.Warn("multi-hop automatic escalation enabled; complaints may advance past level 1 without admin action")
	}
	return s
}

// Wait blocks until in-flight notifications have been dispatched.
func (s *EscalationService) Wait() {
	s.bg.Wait()
}

// ProcessEscalations runs one scan pass: every complaint due at pass start is
// escalated one rung. A failure on one complaint is recorded in the report
// and does not stop the pass.
func (s *EscalationService) ProcessEscalations(ctx context.Context) (report *models.PassReport, err error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	started := s.now()
	report = &models.PassReport{PassID: uuid.NewString(), StartedAt: started}
	logger := s.logger.With(zap.String("pass_id", report.PassID))
	defer func() {
		report.Duration = s.now().Sub(started)
		s.metrics.ObservePass(report.Duration, err)
	}()

	configs, err := s.store.FindActiveConfigsOrderedByLevel(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load escalation ladder: %w", err)
	}
	ladder := NewLadder(configs)

	due, err := s.store.FindDueForEscalation(ctx, started, !s.multiHop)
	if err != nil {
		return report, fmt.Errorf("failed to find complaints due for escalation: %w", err)
	}
	report.Due = len(due)
	if len(due) == 0 {
		logger.Debug("no complaints need escalation")
		return report, nil
	}
	logger.Info("processing due complaints", zap.Int("due", len(due)), zap.Int("ladder_top", ladder.Top()))

	// Items already started run to completion even if ctx is cancelled.
	itemCtx := context.WithoutCancel(ctx)
	for _, c := range due {
		if ctx.Err() != nil {
			logger.Warn("pass interrupted; remaining complaints stay due",
				zap.Int("remaining", report.Due-len(report.Results)))
			break
		}
		res, itemErr := s.escalateDue(itemCtx, c.ComplaintID, ladder)
		switch {
		case itemErr != nil:
			res.Error = itemErr.Error()
			report.Failed++
			s.metrics.IncFailure()
			logger.Error("failed to escalate complaint", zap.Int64("complaint_id", c.ComplaintID), zap.Error(itemErr))
		case res.Escalated:
			report.Escalated++
		default:
			report.Skipped++
		}
		report.Results = append(report.Results, res)
	}

	logger.Info("escalation pass finished",
		zap.Int("escalated", report.Escalated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// escalateDue advances one complaint a single rung inside its own transaction.
func (s *EscalationService) escalateDue(ctx context.Context, complaintID int64, ladder *Ladder) (res models.EscalationResult, err error) {
	res = models.EscalationResult{ComplaintID: complaintID, ProcessedAt: s.now()}
	defer func() {
		if p := recover(); p != nil {
			err = &PersistenceError{ComplaintID: complaintID, Op: "escalate", Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	var escalated models.Complaint
	var rung models.EscalationConfig
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		c, err := tx.LockComplaint(ctx, complaintID)
		if errors.Is(err, repository.ErrNotFound) {
			res.Reason = "complaint no longer exists"
			return nil
		}
		if err != nil {
			return err
		}

		now := s.now()
		res.ProcessedAt = now
		res.FromLevel, res.ToLevel = c.EscalationLevel, c.EscalationLevel

		// Re-check under the row lock: a resolution or manual escalation may
		// have landed since the scan query ran.
		if !models.IsDueForEscalation(c, now, !s.multiHop) {
			res.Reason = "no longer due"
			return nil
		}

		next := ladder.Next(c.EscalationLevel)
		if next == nil {
			c.Unschedule()
			c.UpdatedAt = sql.NullTime{Time: now, Valid: true}
			res.Reason = "terminal escalation level reached"
			return tx.SaveEscalationState(ctx, c)
		}

		at, err := nextHistoryTime(ctx, tx, complaintID, now)
		if err != nil {
			return err
		}
		priority := c.Priority.OrDefault()
		from := c.EscalationLevel
		applyRung(c, next, at)
		if ladder.IsTerminal(next.Level) {
			c.Unschedule()
		} else {
			c.ScheduleAt(at.Add(next.TimeLimit(priority)))
		}
		if err := tx.SaveEscalationState(ctx, c); err != nil {
			return err
		}

		reason := fmt.Sprintf("%s priority complaint not resolved within time limit", priority)
		if err := tx.AppendHistory(ctx, &models.EscalationHistory{
			ComplaintID:     complaintID,
			EscalationLevel: next.Level,
			EscalatedFrom:   roleForLevel(from),
			EscalatedTo:     next.AssigneeRole,
			Reason:          reason,
			EscalatedAt:     at,
			Recipients:      next.Recipients,
		}); err != nil {
			return err
		}

		res.Escalated = true
		res.ToLevel = next.Level
		res.Reason = reason
		escalated, rung = *c, *next
		return nil
	})
	if err != nil {
		return res, &PersistenceError{ComplaintID: complaintID, Op: "escalate", Err: err}
	}

	if res.Escalated {
		s.metrics.IncEscalated(string(models.EscalationAuto))
		s.logger.Info("escalated complaint",
			zap.Int64("complaint_id", complaintID),
			zap.Int("from_level", res.FromLevel),
			zap.Int("level", res.ToLevel),
			zap.String("assigned_to", rung.AssigneeRole))
		s.notifyEscalation(ctx, escalated, rung, rung.Level >= ladder.Top())
	}
	return res, nil
}

// ManuallyEscalate moves a complaint straight to targetLevel. The target must
// have an active config. Automatic escalation is switched off afterwards.
func (s *EscalationService) ManuallyEscalate(ctx context.Context, complaintID int64, targetLevel int, reason string) (*models.Complaint, error) {
	if targetLevel < 1 {
		return nil, invalidInput("target level must be at least 1, got %d", targetLevel)
	}
	reason = strings.TrimSpace(reason)

	var updated models.Complaint
	var rung models.EscalationConfig
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		c, err := tx.LockComplaint(ctx, complaintID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrComplaintNotFound
		}
		if err != nil {
			return err
		}

		cfg, err := tx.FindConfigByLevel(ctx, targetLevel)
		if err != nil {
			return err
		}
		if cfg == nil || !cfg.Active {
			return fmt.Errorf("%w %d", ErrConfigNotFound, targetLevel)
		}

		at, err := nextHistoryTime(ctx, tx, complaintID, s.now())
		if err != nil {
			return err
		}
		applyRung(c, cfg, at)
		c.EscalationNotes = sql.NullString{String: "Manual escalation: " + reason, Valid: true}
		c.Unschedule()
		if err := tx.SaveEscalationState(ctx, c); err != nil {
			return err
		}

		if err := tx.AppendHistory(ctx, &models.EscalationHistory{
			ComplaintID:     complaintID,
			EscalationLevel: targetLevel,
			EscalatedFrom:   models.HistoryFromManual,
			EscalatedTo:     cfg.AssigneeRole,
			Reason:          "Manual escalation: " + reason,
			EscalatedAt:     at,
			Recipients:      cfg.Recipients,
		}); err != nil {
			return err
		}

		updated, rung = *c, *cfg
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrComplaintNotFound) || errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to manually escalate complaint %d: %w", complaintID, err)
	}

	s.metrics.IncEscalated(string(models.EscalationManual))
	s.logger.Info("manually escalated complaint",
		zap.Int64("complaint_id", complaintID),
		zap.Int("level", targetLevel),
		zap.String("reason", reason))

	top := targetLevel
	if configs, err := s.store.FindActiveConfigsOrderedByLevel(ctx); err == nil {
		top = NewLadder(configs).Top()
	} else {
		s.logger.Warn("failed to load ladder for notification template", zap.Error(err))
	}
	s.notifyEscalation(ctx, updated, rung, targetLevel >= top)
	return &updated, nil
}

// InitialSchedule computes the escalation state of a new complaint. Without an
// active level-1 config nothing is scheduled.
func (s *EscalationService) InitialSchedule(ctx context.Context, priority models.Priority, now time.Time) (models.EscalationState, error) {
	state := models.EscalationState{}
	cfg, err := s.store.FindConfigByLevel(ctx, 1)
	if err != nil {
		return state, fmt.Errorf("failed to get level 1 escalation config: %w", err)
	}
	if cfg == nil || !cfg.Active {
		s.logger.Warn("no active level 1 escalation config; complaint will not escalate automatically")
		return state, nil
	}
	state.ScheduleAt(now.Add(cfg.TimeLimit(priority.OrDefault())))
	return state, nil
}

// GetHistory returns a complaint's escalation history, newest first.
func (s *EscalationService) GetHistory(ctx context.Context, complaintID int64) ([]models.EscalationHistory, error) {
	if _, err := s.store.GetComplaint(ctx, complaintID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrComplaintNotFound
		}
		return nil, err
	}
	return s.store.GetHistory(ctx, complaintID)
}

// ListEscalated returns complaints above level 0, most recently escalated first.
func (s *EscalationService) ListEscalated(ctx context.Context) ([]models.Complaint, error) {
	complaints, err := s.store.ListEscalated(ctx)
	if err != nil {
		return nil, err
	}
	if complaints == nil {
		complaints = []models.Complaint{}
	}
	return complaints, nil
}

// GetEscalationStats summarizes totals per priority and the escalation rate.
func (s *EscalationService) GetEscalationStats(ctx context.Context) (*models.EscalationStats, error) {
	counts, err := s.store.CountByPriority(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.EscalationStats{
		PriorityCounts:          map[models.Priority]int64{},
		EscalatedPriorityCounts: map[models.Priority]int64{},
	}
	for _, pc := range counts {
		p := pc.Priority.OrDefault()
		stats.TotalComplaints += pc.Total
		stats.TotalEscalated += pc.Escalated
		stats.PriorityCounts[p] += pc.Total
		if pc.Escalated > 0 {
			stats.EscalatedPriorityCounts[p] += pc.Escalated
		}
	}

	stats.EscalationRate = "0%"
	if stats.TotalComplaints > 0 {
		stats.EscalationRate = fmt.Sprintf("%.1f%%", float64(stats.TotalEscalated)*100.0/float64(stats.TotalComplaints))
	}
	return stats, nil
}

// ListConfigs returns the active ladder configs ordered by level.
func (s *EscalationService) ListConfigs(ctx context.Context) ([]models.EscalationConfig, error) {
	configs, err := s.store.FindActiveConfigsOrderedByLevel(ctx)
	if err != nil {
		return nil, err
	}
	if configs == nil {
		configs = []models.EscalationConfig{}
	}
	return configs, nil
}

// SaveConfig creates or replaces the config for cfg.Level.
func (s *EscalationService) SaveConfig(ctx context.Context, cfg *models.EscalationConfig) error {
	if cfg.Level < 1 {
		return invalidInput("level must be at least 1, got %d", cfg.Level)
	}
	if cfg.TimeLimitHours != nil && *cfg.TimeLimitHours <= 0 {
		return invalidInput("time_limit_hours must be positive")
	}
	cfg.AssigneeRole = strings.TrimSpace(cfg.AssigneeRole)
	cfg.Recipients = strings.Join(models.SplitRecipients(cfg.Recipients), ",")

	if err := s.store.UpsertConfig(ctx, cfg); err != nil {
		return err
	}
	s.logger.Info("saved escalation config",
		zap.Int("level", cfg.Level),
		zap.String("assignee_role", cfg.AssigneeRole),
		zap.Bool("active", cfg.Active))
	return nil
}

// DeleteConfig removes the config for level.
func (s *EscalationService) DeleteConfig(ctx context.Context, level int) error {
	if err := s.store.DeleteConfigByLevel(ctx, level); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w %d", ErrConfigNotFound, level)
		}
		return err
	}
	s.logger.Info("deleted escalation config", zap.Int("level", level))
	return nil
}

// notifyEscalation tells the creator and every rung recipient. It runs after
// commit and never blocks the caller.
func (s *EscalationService) notifyEscalation(ctx context.Context, c models.Complaint, rung models.EscalationConfig, topLevel bool) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.bg.Go("escalation-notify", func() {
		priority := c.Priority.OrDefault()

		contact, err := s.store.GetUserContact(ctx, c.UserID)
		if err != nil {
			s.logger.Warn("failed to look up complaint creator",
				zap.Int64("complaint_id", c.ComplaintID), zap.Error(err))
		}

		if email := contactEmail(contact); email != "" {
			s.notifier.DispatchUserEscalation(ctx, models.UserEscalationNotice{
				Email:       email,
				ComplaintID: c.ComplaintID,
				Title:       c.Title,
				Level:       rung.Level,
				Priority:    priority,
			})
		}

		for _, recipient := range rung.RecipientList() {
			s.notifier.DispatchRoleEscalation(ctx, models.RoleEscalationNotice{
				Email:         recipient,
				ComplaintID:   c.ComplaintID,
				Title:         c.Title,
				SubmitterName: contact.DisplayName(),
				Level:         rung.Level,
				Priority:      priority,
				AssigneeRole:  rung.AssigneeRole,
				TopLevel:      topLevel,
			})
		}
	})
}

// applyRung moves c onto cfg's level at time at.
func applyRung(c *models.Complaint, cfg *models.EscalationConfig, at time.Time) {
	c.EscalationLevel = cfg.Level
	c.EscalatedAt = sql.NullTime{Time: at, Valid: true}
	if cfg.Recipients != "" {
		c.EscalationRecipients = sql.NullString{String: cfg.Recipients, Valid: true}
	}
	if cfg.AssigneeRole != "" {
		c.AssignedTo = sql.NullString{String: cfg.AssigneeRole, Valid: true}
	}
	c.UpdatedAt = sql.NullTime{Time: at, Valid: true}
}

// nextHistoryTime returns now, or just after the complaint's latest history
// record when the clock has not moved past it.
func nextHistoryTime(ctx context.Context, tx repository.Tx, complaintID int64, now time.Time) (time.Time, error) {
	last, err := tx.LastEscalatedAt(ctx, complaintID)
	if err != nil {
		return time.Time{}, err
	}
	if last.Valid && !now.After(last.Time) {
		return last.Time.Add(time.Microsecond), nil
	}
	return now, nil
}

func contactEmail(u *models.UserContact) string {
	if u == nil || !u.Email.Valid {
		return ""
	}
	return strings.TrimSpace(u.Email.String)
}

// SeedLadder saves every config in order. It stops at the first invalid or
// failed config.
func (s *EscalationService) SeedLadder(ctx context.Context, configs []models.EscalationConfig) error {
	for i := range configs {
		if err := s.SaveConfig(ctx, &configs[i]); err != nil {
			return fmt.Errorf("failed to seed level %d: %w", configs[i].Level, err)
		}
	}
	return nil
}
