package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// PRAGMAs and in-memory databases are per connection.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. It is safe to run on every start.
func (db *DB) RunMigrations() error {
	migration := `
-- Saved wizard progress, one row per tenant and wizard
CREATE TABLE IF NOT EXISTS wizard_progress (
    tenant_id TEXT NOT NULL,
    wizard_id TEXT NOT NULL,
    current_step INTEGER NOT NULL CHECK(current_step >= 1),
    status TEXT NOT NULL CHECK(status IN ('active', 'superseded')),
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, wizard_id)
);

-- Step drafts, stored as JSON
CREATE TABLE IF NOT EXISTS progress_drafts (
    tenant_id TEXT NOT NULL,
    wizard_id TEXT NOT NULL,
    step_key TEXT NOT NULL,
    draft TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, wizard_id, step_key),
    FOREIGN KEY (tenant_id, wizard_id) REFERENCES wizard_progress(tenant_id, wizard_id) ON DELETE CASCADE
);

-- Suggestion allowance per tenant and period
CREATE TABLE IF NOT EXISTS suggestion_quotas (
    tenant_id TEXT PRIMARY KEY,
    used INTEGER NOT NULL DEFAULT 0 CHECK(used >= 0),
    resets_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_quota_resets ON suggestion_quotas(resets_at);

-- Accepted submissions
CREATE TABLE IF NOT EXISTS submissions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    wizard_id TEXT NOT NULL,
    payload TEXT NOT NULL,
    submitted_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tenant_submissions ON submissions(tenant_id, wizard_id);

-- Activity log
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tenant_id TEXT NOT NULL,
    wizard_id TEXT NOT NULL,
    step_key TEXT,
    submission_id TEXT,
    activity_type TEXT NOT NULL,
    summary TEXT NOT NULL,
    details TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tenant_activity ON activity_log(tenant_id);
CREATE INDEX IF NOT EXISTS idx_wizard_activity ON activity_log(tenant_id, wizard_id);
CREATE INDEX IF NOT EXISTS idx_created_at ON activity_log(created_at);

-- API keys for authentication
CREATE TABLE IF NOT EXISTS api_keys (
    key_hash TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_used TIMESTAMP,
    description TEXT
);
CREATE INDEX IF NOT EXISTS idx_tenant_keys ON api_keys(tenant_id);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
