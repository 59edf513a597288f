package database

import (
	"database/sql"
	"fmt"
	stdlog "log"

	"github.com/username/nestegg/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS saved_mappings (
	fingerprint TEXT PRIMARY KEY,
	institution_key TEXT,
	mapping_json TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS import_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	institution_key TEXT,
	file_name TEXT NOT NULL,
	account_id TEXT NOT NULL,
	rows_total INTEGER NOT NULL DEFAULT 0,
	rows_submitted INTEGER NOT NULL DEFAULT 0,
	rows_failed INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_import_history_created_at ON import_history(created_at);
`

// InitDB opens the database at databasePath, applies migrations and stores
// the handle in DB. It exits the process on failure.
func InitDB(databasePath string) {
	db, err := Open(databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}
	DB = db

	logger.L.Info("Checking database migrations", "databasePath", databasePath)
	if err := Migrate(DB); err != nil {
		logger.L.Error("failed to migrate database", "error", err)
		stdlog.Fatalf("failed to migrate database: %v", err)
	}
	logger.L.Info("Database tables ensured/created.")
}

// Open opens a sqlite database. An in-memory database is limited to a single
// connection because every new connection would see an empty database.
func Open(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if databasePath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates the tables and adds columns that older databases lack.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return ensureColumns(db, "import_history", map[string]string{
		"rows_failed": "INTEGER NOT NULL DEFAULT 0",
	})
}

// ensureColumns adds any of the given columns that table does not have yet.
func ensureColumns(db *sql.DB, table string, columns map[string]string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("error querying table schema for %s: %w", table, err)
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, notnull, pk int
		var name, dataType string
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("error scanning column info for %s: %w", table, err)
		}
		columnExists[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over column info for %s: %w", table, err)
	}
	rows.Close()

	for name, definition := range columns {
		if columnExists[name] {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, definition)); err != nil {
			return fmt.Errorf("error adding %s column to %s: %w", name, table, err)
		}
		logger.L.Info("Added column", "table", table, "column", name)
	}
	return nil
}
