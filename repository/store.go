package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"grievance/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// dbtx is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx is the set of operations available to a complaint transition. All of them
// run on the same database transaction; LockComplaint takes the row lock that
// serializes escalation, manual escalation and resolution of one complaint.
type Tx interface {
	LockComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error)
	SaveEscalationState(ctx context.Context, c *models.Complaint) error
	SaveStatus(ctx context.Context, c *models.Complaint) error
	AppendHistory(ctx context.Context, h *models.EscalationHistory) error
	LastEscalatedAt(ctx context.Context, complaintID int64) (sql.NullTime, error)
	FindConfigByLevel(ctx context.Context, level int) (*models.EscalationConfig, error)
}

// Store groups the repositories behind one connection pool
type Store struct {
	db               *sql.DB
	Complaints       *ComplaintRepository
	Escalations      *EscalationRepository
	Users            *UserRepository
	NotificationLogs *NotificationLogRepository
}

// NewStore creates a store over db
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:               db,
		Complaints:       NewComplaintRepository(db),
		Escalations:      NewEscalationRepository(db),
		Users:            NewUserRepository(db),
		NotificationLogs: NewNotificationLogRepository(db),
	}
}

// InTx runs fn in a single transaction. fn's error rolls back; nil commits.
func (s *Store) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txStore{
		complaints:  &ComplaintRepository{db: tx},
		escalations: &EscalationRepository{db: tx},
	}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindDueForEscalation delegates to the complaint repository
func (s *Store) FindDueForEscalation(ctx context.Context, now time.Time, singleHop bool) ([]models.Complaint, error) {
	return s.Complaints.FindDueForEscalation(ctx, now, singleHop)
}

// FindConfigByLevel delegates to the escalation repository
func (s *Store) FindConfigByLevel(ctx context.Context, level int) (*models.EscalationConfig, error) {
	return s.Escalations.FindConfigByLevel(ctx, level)
}

// FindActiveConfigsOrderedByLevel delegates to the escalation repository
func (s *Store) FindActiveConfigsOrderedByLevel(ctx context.Context) ([]models.EscalationConfig, error) {
	return s.Escalations.FindActiveConfigsOrderedByLevel(ctx)
}

// UpsertConfig delegates to the escalation repository
func (s *Store) UpsertConfig(ctx context.Context, cfg *models.EscalationConfig) error {
	return s.Escalations.UpsertConfig(ctx, cfg)
}

// DeleteConfigByLevel delegates to the escalation repository
func (s *Store) DeleteConfigByLevel(ctx context.Context, level int) error {
	return s.Escalations.DeleteConfigByLevel(ctx, level)
}

// GetHistory delegates to the escalation repository
func (s *Store) GetHistory(ctx context.Context, complaintID int64) ([]models.EscalationHistory, error) {
	return s.Escalations.GetHistoryByComplaint(ctx, complaintID)
}

// CreateComplaint delegates to the complaint repository
func (s *Store) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	return s.Complaints.Create(ctx, c)
}

// GetComplaint delegates to the complaint repository
func (s *Store) GetComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error) {
	return s.Complaints.GetByID(ctx, complaintID)
}

// ListEscalated delegates to the complaint repository
func (s *Store) ListEscalated(ctx context.Context) ([]models.Complaint, error) {
	return s.Complaints.ListEscalated(ctx)
}

// CountByPriority delegates to the complaint repository
func (s *Store) CountByPriority(ctx context.Context) ([]models.PriorityCount, error) {
	return s.Complaints.CountByPriority(ctx)
}

// GetUserContact delegates to the user repository
func (s *Store) GetUserContact(ctx context.Context, userID int64) (*models.UserContact, error) {
	return s.Users.GetContact(ctx, userID)
}

type txStore struct {
	complaints  *ComplaintRepository
	escalations *EscalationRepository
}

func (t *txStore) LockComplaint(ctx context.Context, complaintID int64) (*models.Complaint, error) {
	return t.complaints.LockByID(ctx, complaintID)
}

func (t *txStore) SaveEscalationState(ctx context.Context, c *models.Complaint) error {
	return t.complaints.UpdateEscalationState(ctx, c)
}

func (t *txStore) SaveStatus(ctx context.Context, c *models.Complaint) error {
	return t.complaints.UpdateStatus(ctx, c)
}

func (t *txStore) AppendHistory(ctx context.Context, h *models.EscalationHistory) error {
	return t.escalations.CreateHistory(ctx, h)
}

func (t *txStore) LastEscalatedAt(ctx context.Context, complaintID int64) (sql.NullTime, error) {
	return t.escalations.LastEscalatedAt(ctx, complaintID)
}

func (t *txStore) FindConfigByLevel(ctx context.Context, level int) (*models.EscalationConfig, error) {
	return t.escalations.FindConfigByLevel(ctx, level)
}
