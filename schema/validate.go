package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// RequiredColumn defines a required column for a table.
type RequiredColumn struct {
	Table  string
	Column string
}

// DefaultRequiredColumns are the columns the escalation engine reads and writes.
// Tables created by an older deployment may lack them.
var DefaultRequiredColumns = []RequiredColumn{
	{Table: "complaints", Column: "escalation_level"},
	{Table: "complaints", Column: "escalated_at"},
	{Table: "complaints", Column: "next_escalation_time"},
	{Table: "complaints", Column: "escalation_recipients"},
	{Table: "complaints", Column: "escalation_notes"},
	{Table: "escalation_config", Column: "active"},
	{Table: "escalation_history", Column: "recipients"},
}

// ValidateRequiredColumns checks that all required columns exist and lists
// every missing one in the returned error.
func ValidateRequiredColumns(ctx context.Context, db *sql.DB, required []RequiredColumn) error {
	if len(required) == 0 {
		required = DefaultRequiredColumns
	}
	var missing []string
	for _, rc := range required {
		exists, err := columnExists(ctx, db, rc.Table, rc.Column)
		if err != nil {
			return fmt.Errorf("failed to check column %s.%s: %w", rc.Table, rc.Column, err)
		}
		if !exists {
			missing = append(missing, rc.Table+"."+rc.Column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns (run migrations to fix): %s", strings.Join(missing, ", "))
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
