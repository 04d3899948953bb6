package repository

import (
	"context"
	"regexp"
	"testing"

	"grievance/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configRowColumns = []string{"id", "level", "time_limit_hours", "assignee_role", "recipients", "active"}

func TestEscalationRepositoryFindConfigByLevel(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEscalationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM escalation_config WHERE level = ?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(configRowColumns).AddRow(int64(1), 1, int64(6), "ADMIN", "admin@it.local", true))

	cfg, err := repo.FindConfigByLevel(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.TimeLimitHours)
	assert.Equal(t, int64(6), *cfg.TimeLimitHours)
	assert.Equal(t, "ADMIN", cfg.AssigneeRole)
	assert.True(t, cfg.Active)

	mock.ExpectQuery(regexp.QuoteMeta("FROM escalation_config WHERE level = ?")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(configRowColumns))

	cfg, err = repo.FindConfigByLevel(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationRepositoryFindActiveConfigs(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEscalationRepository(db)

	mock.ExpectQuery(`(?s)WHERE active = true\s+ORDER BY level ASC`).
		WillReturnRows(sqlmock.NewRows(configRowColumns).
			AddRow(int64(1), 1, nil, "ADMIN", "admin@it.local", true).
			AddRow(int64(2), 2, nil, "SUPER_ADMIN", nil, true))

	configs, err := repo.FindActiveConfigsOrderedByLevel(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Nil(t, configs[0].TimeLimitHours)
	assert.Equal(t, "", configs[1].Recipients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationRepositoryUpsertConfig(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEscalationRepository(db)
	h := int64(8)

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WithArgs(3, int64(8), "CIO", "cio@it.local", true).
		WillReturnResult(sqlmock.NewResult(11, 1))

	cfg := &models.EscalationConfig{Level: 3, TimeLimitHours: &h, AssigneeRole: "CIO", Recipients: "cio@it.local", Active: true}
	require.NoError(t, repo.UpsertConfig(context.Background(), cfg))
	assert.Equal(t, int64(11), cfg.ID)

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WithArgs(4, nil, "", "", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpsertConfig(context.Background(), &models.EscalationConfig{Level: 4}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationRepositoryDeleteConfig(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEscalationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM escalation_config WHERE level = ?")).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeleteConfigByLevel(context.Background(), 2))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM escalation_config WHERE level = ?")).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.DeleteConfigByLevel(context.Background(), 9), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationRepositoryHistory(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEscalationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO escalation_history")).
		WithArgs(int64(5), 1, "USER/INITIAL", "ADMIN", "HIGH priority complaint not resolved within time limit", testNow, nil).
		WillReturnResult(sqlmock.NewResult(70, 1))

	h := &models.EscalationHistory{
		ComplaintID:     5,
		EscalationLevel: 1,
		EscalatedFrom:   models.HistoryFromInitial,
		EscalatedTo:     "ADMIN",
		Reason:          "HIGH priority complaint not resolved within time limit",
		EscalatedAt:     testNow,
	}
	require.NoError(t, repo.CreateHistory(context.Background(), h))
	assert.Equal(t, int64(70), h.ID)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY escalated_at DESC, id DESC")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "complaint_id", "escalation_level", "escalated_from", "escalated_to", "reason", "escalated_at", "recipients"}).
			AddRow(int64(71), int64(5), 2, "Manual Trigger", "SUPER_ADMIN", "Manual escalation: VIP", testNow.Add(1), "super@it.local").
			AddRow(int64(70), int64(5), 1, "USER/INITIAL", "ADMIN", nil, testNow, nil))

	history, err := repo.GetHistoryByComplaint(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].EscalationLevel)
	assert.Equal(t, "super@it.local", history[0].Recipients)
	assert.Equal(t, "", history[1].Reason)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY escalated_at DESC, id DESC")).
		WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	history, err = repo.GetHistoryByComplaint(context.Background(), 6)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationRepositoryLastEscalatedAt(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEscalationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(escalated_at) FROM escalation_history")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(testNow))
	last, err := repo.LastEscalatedAt(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, last.Valid)
	assert.True(t, last.Time.Equal(testNow))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(escalated_at) FROM escalation_history")).
		WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	last, err = repo.LastEscalatedAt(context.Background(), 6)
	require.NoError(t, err)
	assert.False(t, last.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
