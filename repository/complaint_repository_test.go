package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"grievance/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var complaintRowColumns = []string{
	"complaint_id", "complaint_number", "user_id", "title", "description", "category",
	"status", "priority", "assigned_to",
	"escalation_level", "escalated_at", "next_escalation_time",
	"escalation_recipients", "escalation_notes",
	"resolved_at", "created_at", "updated_at",
}

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func complaintRows() *sqlmock.Rows {
	return sqlmock.NewRows(complaintRowColumns)
}

func addComplaintRow(rows *sqlmock.Rows, id int64, level int, next interface{}) *sqlmock.Rows {
	return rows.AddRow(
		id, "COMP-20240301-abcdef12", int64(7), "Laptop", "won't boot", nil,
		"OPEN", "HIGH", nil,
		level, nil, next,
		nil, nil,
		nil, testNow.Add(-24*time.Hour), nil,
	)
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestComplaintRepositoryCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewComplaintRepository(db)

	c := &models.Complaint{
		UserID:      7,
		Title:       "Laptop",
		Description: "won't boot",
		Status:      models.StatusOpen,
		Priority:    models.PriorityHigh,
		CreatedAt:   testNow,
	}
	c.ScheduleAt(testNow.Add(12 * time.Hour))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO complaints")).
		WithArgs(sqlmock.AnyArg(), int64(7), "Laptop", "won't boot", nil,
			"OPEN", "HIGH", nil, 0, testNow.Add(12*time.Hour), testNow).
		WillReturnResult(sqlmock.NewResult(41, 1))

	require.NoError(t, repo.Create(context.Background(), c))
	assert.Equal(t, int64(41), c.ComplaintID)
	assert.Regexp(t, `^COMP-20240301-`, c.ComplaintNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewComplaintRepository(db)
	next := testNow.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM complaints WHERE complaint_id = ?")).
		WithArgs(int64(3)).
		WillReturnRows(addComplaintRow(complaintRows(), 3, 0, next))

	c, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.ComplaintID)
	assert.Equal(t, models.StatusOpen, c.Status)
	assert.Equal(t, models.PriorityHigh, c.Priority)
	assert.False(t, c.Category.Valid)
	kind, due := c.Schedule()
	assert.Equal(t, models.ScheduleDue, kind)
	assert.True(t, due.Equal(next))

	mock.ExpectQuery(regexp.QuoteMeta("FROM complaints WHERE complaint_id = ?")).
		WithArgs(int64(4)).
		WillReturnRows(complaintRows())

	_, err = repo.GetByID(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryFindDueForEscalation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewComplaintRepository(db)

	mock.ExpectQuery(`(?s)status IN \(\?, \?, \?, \?\).*escalation_level = 0\).*next_escalation_time <= \?.*ORDER BY next_escalation_time ASC`).
		WithArgs("OPEN", "IN_PROGRESS", "NEW", "UNDER_REVIEW", testNow).
		WillReturnRows(addComplaintRow(addComplaintRow(complaintRows(), 1, 0, testNow.Add(-time.Hour)), 2, 0, testNow))

	due, err := repo.FindDueForEscalation(context.Background(), testNow, true)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int64(1), due[0].ComplaintID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryNullPriorityReadsAsMedium(t *testing.T) {
	db, mock := newMock(t)
	repo := NewComplaintRepository(db)

	rows := addComplaintRow(complaintRows(), 1, 0, testNow.Add(-time.Hour)).
		AddRow(
			int64(2), "COMP-20240301-0badf00d", int64(7), "Printer", "jammed", nil,
			"OPEN", nil, nil,
			0, nil, testNow,
			nil, nil,
			nil, testNow.Add(-24*time.Hour), nil,
		)
	mock.ExpectQuery(`(?s)COALESCE\(priority, 'MEDIUM'\).*FROM complaints`).
		WithArgs("OPEN", "IN_PROGRESS", "NEW", "UNDER_REVIEW", testNow).
		WillReturnRows(rows)

	due, err := repo.FindDueForEscalation(context.Background(), testNow, true)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, models.PriorityHigh, due[0].Priority)
	assert.Equal(t, int64(2), due[1].ComplaintID)
	assert.Equal(t, models.PriorityMedium, due[1].Priority)

	mock.ExpectQuery(regexp.QuoteMeta("FROM complaints WHERE complaint_id = ?")).
		WithArgs(int64(3)).
		WillReturnRows(complaintRows().AddRow(
			int64(3), "COMP-20240301-00c0ffee", int64(7), "VPN", "drops", nil,
			"IN_PROGRESS", "low", nil,
			0, nil, nil,
			nil, nil,
			nil, testNow, nil,
		))

	c, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, c.Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryUpdateEscalationState(t *testing.T) {
	db, mock := newMock(t)
	repo := NewComplaintRepository(db)

	c := &models.Complaint{ComplaintID: 5}
	c.EscalationLevel = 1
	c.AssignedTo = sql.NullString{String: "ADMIN", Valid: true}
	c.EscalatedAt = sql.NullTime{Time: testNow, Valid: true}
	c.UpdatedAt = sql.NullTime{Time: testNow, Valid: true}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE complaints SET")).
		WithArgs("ADMIN", 1, testNow, nil, nil, nil, testNow, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateEscalationState(context.Background(), c))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE complaints SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateEscalationState(context.Background(), c), ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE complaints SET")).
		WillReturnError(errors.New("lock wait timeout"))
	err := repo.UpdateEscalationState(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update escalation state")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryUpdateStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewComplaintRepository(db)

	c := &models.Complaint{ComplaintID: 5, Status: models.StatusResolved}
	c.AssignedTo = sql.NullString{String: "helpdesk-bob", Valid: true}
	c.ResolvedAt = sql.NullTime{Time: testNow, Valid: true}
	c.UpdatedAt = sql.NullTime{Time: testNow, Valid: true}

	mock.ExpectExec(regexp.QuoteMeta("resolved_at = ?")).
		WithArgs("RESOLVED", "helpdesk-bob", testNow, nil, testNow, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryCountByPriority(t *testing.T) {
	db, mock := newMock(t)
	repo := NewComplaintRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY priority")).
		WillReturnRows(sqlmock.NewRows([]string{"priority", "total", "escalated"}).
			AddRow("HIGH", int64(4), int64(1)).
			AddRow("LOW", int64(2), int64(0)))

	counts, err := repo.CountByPriority(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.PriorityHigh, counts[0].Priority)
	assert.Equal(t, int64(4), counts[0].Total)
	assert.Equal(t, int64(1), counts[0].Escalated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryListEscalated(t *testing.T) {
	db, mock := newMock(t)
	repo := NewComplaintRepository(db)

	mock.ExpectQuery(`(?s)WHERE escalation_level > 0\s+ORDER BY escalated_at DESC`).
		WillReturnRows(addComplaintRow(complaintRows(), 9, 2, nil))

	list, err := repo.ListEscalated(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].EscalationLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}
