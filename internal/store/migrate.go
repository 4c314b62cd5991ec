package store

import (
	"database/sql"
	"fmt"
)

// migration is one schema upgrade step.
//
// apply must be idempotent: it checks existing state before mutating, so a
// step that was partially applied by an interrupted upgrade can be re-run.
// No step ever drops a table, index, or column that holds records.
type migration struct {
	version int
	name    string
	apply   func(tx *sql.Tx) error
}

// migrations lists every schema step in application order.
// Append only: released versions must never be edited or reordered.
var migrations = []migration{
	{1, "create price_sheets", execAll(`
		CREATE TABLE IF NOT EXISTS price_sheets (
			date       TEXT PRIMARY KEY,
			prices     TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)},
	{2, "create sales with date index", execAll(`
		CREATE TABLE IF NOT EXISTS sales (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			ref              TEXT NOT NULL,
			date             TEXT NOT NULL,
			timestamp        TEXT NOT NULL,
			customer_name    TEXT NOT NULL,
			item             TEXT NOT NULL,
			rate             TEXT NOT NULL,
			kilos            TEXT NOT NULL,
			total            TEXT NOT NULL,
			transaction_type TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_by_date ON sales(date)`)},
	{3, "index sales by type", execAll(
		`CREATE INDEX IF NOT EXISTS idx_sales_by_type ON sales(transaction_type)`)},
	{4, "create pending_syncs", execAll(`
		CREATE TABLE IF NOT EXISTS pending_syncs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			payload_kind TEXT NOT NULL CHECK (payload_kind IN ('prices', 'sale')),
			payload      TEXT NOT NULL,
			enqueued_at  TEXT NOT NULL
		)`)},
	{5, "track pending sync attempts", addColumns("pending_syncs", []columnDef{
		{"attempts", "INTEGER NOT NULL DEFAULT 0"},
		{"last_error", "TEXT NOT NULL DEFAULT ''"},
	})},
	{6, "unique sale refs", execAll(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_ref ON sales(ref)`)},
}

// currentSchemaVersion is the version a freshly opened database ends at.
var currentSchemaVersion = migrations[len(migrations)-1].version

// runMigrations applies every step newer than PRAGMA user_version.
// Each step and its version bump commit together, so an interrupted upgrade
// resumes at the first unapplied step.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
		version = m.version
	}

	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d (%s): begin: %w", m.version, m.name, err)
	}
	defer tx.Rollback()

	if err := m.apply(tx); err != nil {
		return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
	}

	// user_version is transactional in SQLite
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migrate to v%d (%s): set user_version: %w", m.version, m.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v%d (%s): commit: %w", m.version, m.name, err)
	}
	return nil
}

// execAll returns a step that executes each statement in order.
// Statements must use IF NOT EXISTS so re-running them is a no-op.
func execAll(stmts ...string) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

type columnDef struct {
	name string
	decl string
}

// addColumns returns a step that adds each column missing from table.
// SQLite has no ADD COLUMN IF NOT EXISTS, so existence is checked first.
func addColumns(table string, cols []columnDef) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, col := range cols {
			exists, err := hasColumn(tx, table, col.name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.decl)
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

func hasColumn(tx *sql.Tx, table, column string) (bool, error) {
	var count int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("inspect %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}
