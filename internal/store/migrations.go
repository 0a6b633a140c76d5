package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Job ids restart at 1 with every scheduler, so result rows are keyed by the
// run that produced them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS results (
		run_id        TEXT NOT NULL,
		job_id        INTEGER NOT NULL,
		session       TEXT NOT NULL,
		status        TEXT NOT NULL,
		sub_jobs      INTEGER NOT NULL,
		perf_counters TEXT NOT NULL DEFAULT '[]',
		completed_at  TEXT NOT NULL,
		PRIMARY KEY (run_id, job_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_results_session ON results(session)`,
	`CREATE INDEX IF NOT EXISTS idx_results_status ON results(status)`,
	`CREATE INDEX IF NOT EXISTS idx_results_completed_at ON results(completed_at)`,
}

// column is a column added after the first release. SQLite has no
// ADD COLUMN IF NOT EXISTS, so each one is checked against table_info.
type column struct {
	table string
	name  string
	def   string
	index string
}

var columns = []column{
	{
		table: "results",
		name:  "user_ref",
		def:   "TEXT NOT NULL DEFAULT ''",
		index: `CREATE INDEX IF NOT EXISTS idx_results_user_ref ON results(user_ref)`,
	},
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	for _, c := range columns {
		if err := c.apply(ctx, db); err != nil {
			return fmt.Errorf("add %s.%s: %w", c.table, c.name, err)
		}
	}
	return nil
}

func (c column) apply(ctx context.Context, db *sql.DB) error {
	ok, err := hasColumn(ctx, db, c.table, c.name)
	if err != nil {
		return err
	}
	if !ok {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.def)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if c.index == "" {
		return nil
	}
	_, err = db.ExecContext(ctx, c.index)
	return err
}

func hasColumn(ctx context.Context, db *sql.DB, table, name string) (bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return false, err
		}
		if strings.EqualFold(col, name) {
			return true, nil
		}
	}
	return false, rows.Err()
}
