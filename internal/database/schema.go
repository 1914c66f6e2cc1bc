package database

import (
	"context"
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                        VARCHAR(191) NOT NULL PRIMARY KEY,
		credits                   INT NOT NULL DEFAULT 0,
		credits_last_refreshed_at DATETIME(6) NULL,
		created_at                DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS projects (
		id                    CHAR(36) NOT NULL PRIMARY KEY,
		user_id               VARCHAR(191) NOT NULL,
		name                  VARCHAR(255) NOT NULL,
		initial_prompt        TEXT NOT NULL,
		current_code          LONGTEXT NULL,
		current_version_index CHAR(36) NULL,
		is_published          TINYINT(1) NOT NULL DEFAULT 0,
		created_at            DATETIME(6) NOT NULL,
		updated_at            DATETIME(6) NOT NULL,
		INDEX idx_projects_user (user_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS messages (
		id         CHAR(36) NOT NULL PRIMARY KEY,
		project_id CHAR(36) NOT NULL,
		role       VARCHAR(16) NOT NULL,
		content    LONGTEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_messages_project (project_id, created_at),
		CONSTRAINT fk_messages_project FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
		CONSTRAINT chk_messages_role CHECK (role IN ('user', 'assistant'))
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS versions (
		id         CHAR(36) NOT NULL PRIMARY KEY,
		project_id CHAR(36) NOT NULL,
		code       LONGTEXT NOT NULL,
		model      VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		INDEX idx_versions_project (project_id, created_at),
		CONSTRAINT fk_versions_project FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                        TEXT NOT NULL PRIMARY KEY,
		credits                   INTEGER NOT NULL DEFAULT 0,
		credits_last_refreshed_at DATETIME NULL,
		created_at                DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id                    TEXT NOT NULL PRIMARY KEY,
		user_id               TEXT NOT NULL,
		name                  TEXT NOT NULL,
		initial_prompt        TEXT NOT NULL,
		current_code          TEXT NULL,
		current_version_index TEXT NULL,
		is_published          INTEGER NOT NULL DEFAULT 0,
		created_at            DATETIME NOT NULL,
		updated_at            DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id         TEXT NOT NULL PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content    TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS versions (
		id         TEXT NOT NULL PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		code       TEXT NOT NULL,
		model      TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_project ON messages(project_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_versions_project ON versions(project_id, created_at)`,
}

// Migrate creates any missing tables.  It never alters existing ones; column
// additions ship as separate migrations, which is why callers tolerate
// IsMissingColumn on optional features.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts := mysqlSchema
	if d == SQLite {
		stmts = sqliteSchema
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("running schema migration: %w", err)
		}
	}
	return nil
}
