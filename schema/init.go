// Package schema: safe database initialization. Creates only missing tables, never drops or overwrites.
package schema

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

type table struct {
	name string
	ddl  string
}

// tables in creation order; later tables reference earlier ones.
var tables = []table{
	{name: "users", ddl: `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    username VARCHAR(100) NOT NULL UNIQUE,
    full_name VARCHAR(255) NULL,
    email VARCHAR(255) NULL,
    created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{name: "complaints", ddl: `
CREATE TABLE IF NOT EXISTS complaints (
    complaint_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    complaint_number VARCHAR(32) NOT NULL UNIQUE,
    user_id BIGINT NOT NULL,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL,
    category VARCHAR(100) NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'OPEN',
    priority VARCHAR(10) NULL,
    assigned_to VARCHAR(100) NULL,
    escalation_level INT NULL DEFAULT 0,
    escalated_at DATETIME(6) NULL,
    next_escalation_time DATETIME(6) NULL,
    escalation_recipients TEXT NULL,
    escalation_notes TEXT NULL,
    resolved_at DATETIME(6) NULL,
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NULL,
    INDEX idx_user_id (user_id),
    INDEX idx_due (status, escalation_level, next_escalation_time),
    INDEX idx_escalated_at (escalated_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{name: "escalation_config", ddl: `
CREATE TABLE IF NOT EXISTS escalation_config (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    level INT NOT NULL UNIQUE,
    time_limit_hours INT NULL,
    assignee_role VARCHAR(100) NOT NULL DEFAULT '',
    recipients TEXT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{name: "escalation_history", ddl: `
CREATE TABLE IF NOT EXISTS escalation_history (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    complaint_id BIGINT NOT NULL,
    escalation_level INT NOT NULL,
    escalated_from VARCHAR(100) NULL,
    escalated_to VARCHAR(100) NULL,
    reason TEXT NULL,
    escalated_at DATETIME(6) NOT NULL,
    recipients TEXT NULL,
    INDEX idx_complaint_time (complaint_id, escalated_at),
    CONSTRAINT fk_history_complaint FOREIGN KEY (complaint_id) REFERENCES complaints (complaint_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{name: "notification_log", ddl: `
CREATE TABLE IF NOT EXISTS notification_log (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    complaint_id BIGINT NOT NULL,
    kind VARCHAR(32) NOT NULL,
    recipient VARCHAR(255) NOT NULL,
    subject VARCHAR(255) NOT NULL,
    body TEXT NOT NULL,
    status VARCHAR(16) NOT NULL,
    error_message TEXT NULL,
    created_at DATETIME(6) NOT NULL,
    INDEX idx_complaint_id (complaint_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
}

// TableNames lists the tables InitializeDatabase manages, in creation order
func TableNames() []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.name
	}
	return names
}

// InitializeDatabase ensures every table exists. Existing tables are left untouched.
func InitializeDatabase(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("schema")

	for _, t := range tables {
		exists, err := tableExists(ctx, db, t.name)
		if err != nil {
			return fmt.Errorf("failed to check if table %s exists: %w", t.name, err)
		}
		if exists {
			logger.Debug("table exists", zap.String("table", t.name))
			continue
		}
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
		logger.Info("created table", zap.String("table", t.name))
	}
	return nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`,
		name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
