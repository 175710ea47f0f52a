package repository

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type migration struct {
	version     int
	description string
	ddl         string
}

// sqliteTypes заменяет типы PostgreSQL на аналоги, которые понимает драйвер SQLite
var sqliteTypes = strings.NewReplacer(
	"TIMESTAMPTZ", "DATETIME",
	"BIGINT", "INTEGER",
	"DOUBLE PRECISION", "REAL",
)

var migrations = []migration{
	{
		version:     1,
		description: "sprint and backlog tables",
		ddl: `
CREATE TABLE IF NOT EXISTS id_sequences (
	kind  TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	project_key TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sprints (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	name       TEXT NOT NULL,
	goal       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	start_date DATE,
	end_date   DATE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS stories (
	id                  TEXT PRIMARY KEY,
	project_id          TEXT NOT NULL REFERENCES projects(id),
	sprint_id           TEXT,
	parent_id           TEXT,
	lineage_kind        TEXT,
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	acceptance_criteria TEXT NOT NULL DEFAULT '[]',
	status              TEXT NOT NULL,
	priority            TEXT NOT NULL DEFAULT '',
	story_points        INTEGER NOT NULL DEFAULT 0,
	assignee_id         TEXT NOT NULL DEFAULT '',
	reporter_id         TEXT NOT NULL DEFAULT '',
	epic_id             TEXT NOT NULL DEFAULT '',
	release_id          TEXT NOT NULL DEFAULT '',
	labels              TEXT NOT NULL DEFAULT '[]',
	order_index         INTEGER NOT NULL DEFAULT 0,
	estimated_hours     DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_hours        DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id                     TEXT PRIMARY KEY,
	story_id               TEXT NOT NULL REFERENCES stories(id),
	title                  TEXT NOT NULL,
	description            TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL,
	priority               TEXT NOT NULL DEFAULT '',
	assignee_id            TEXT NOT NULL DEFAULT '',
	reporter_id            TEXT NOT NULL DEFAULT '',
	estimated_hours        DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_hours           DOUBLE PRECISION NOT NULL DEFAULT 0,
	order_index            INTEGER NOT NULL DEFAULT 0,
	task_number            INTEGER NOT NULL,
	due_date               DATE,
	labels                 TEXT NOT NULL DEFAULT '[]',
	is_pulled_from_backlog BOOLEAN NOT NULL DEFAULT FALSE,
	created_at             TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS subtasks (
	id              TEXT PRIMARY KEY,
	task_id         TEXT NOT NULL REFERENCES tasks(id),
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	is_completed    BOOLEAN NOT NULL DEFAULT FALSE,
	assignee_id     TEXT NOT NULL DEFAULT '',
	estimated_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_hours    DOUBLE PRECISION NOT NULL DEFAULT 0,
	order_index     INTEGER NOT NULL DEFAULT 0,
	due_date        DATE,
	bug_type        TEXT NOT NULL DEFAULT '',
	severity        TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	labels          TEXT NOT NULL DEFAULT '[]',
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS backlog_stories (
	id                     TEXT PRIMARY KEY,
	project_id             TEXT NOT NULL,
	original_story_id      TEXT,
	original_sprint_id     TEXT,
	created_from_sprint_id TEXT,
	title                  TEXT NOT NULL,
	description            TEXT NOT NULL DEFAULT '',
	acceptance_criteria    TEXT NOT NULL DEFAULT '[]',
	status                 TEXT NOT NULL,
	priority               TEXT NOT NULL DEFAULT '',
	story_points           INTEGER NOT NULL DEFAULT 0,
	assignee_id            TEXT NOT NULL DEFAULT '',
	reporter_id            TEXT NOT NULL DEFAULT '',
	epic_id                TEXT NOT NULL DEFAULT '',
	release_id             TEXT NOT NULL DEFAULT '',
	labels                 TEXT NOT NULL DEFAULT '[]',
	order_index            INTEGER NOT NULL DEFAULT 0,
	estimated_hours        DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_hours           DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at             TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS backlog_tasks (
	id                     TEXT PRIMARY KEY,
	backlog_story_id       TEXT NOT NULL REFERENCES backlog_stories(id),
	original_task_id       TEXT,
	created_from_sprint_id TEXT,
	title                  TEXT NOT NULL,
	description            TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL,
	priority               TEXT NOT NULL DEFAULT '',
	assignee_id            TEXT NOT NULL DEFAULT '',
	reporter_id            TEXT NOT NULL DEFAULT '',
	estimated_hours        DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_hours           DOUBLE PRECISION NOT NULL DEFAULT 0,
	order_index            INTEGER NOT NULL DEFAULT 0,
	task_number            INTEGER NOT NULL DEFAULT 0,
	due_date               DATE,
	labels                 TEXT NOT NULL DEFAULT '[]',
	is_overdue             BOOLEAN NOT NULL DEFAULT FALSE,
	created_at             TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS backlog_subtasks (
	id                     TEXT PRIMARY KEY,
	backlog_task_id        TEXT NOT NULL REFERENCES backlog_tasks(id),
	original_subtask_id    TEXT,
	created_from_sprint_id TEXT,
	title                  TEXT NOT NULL,
	description            TEXT NOT NULL DEFAULT '',
	is_completed           BOOLEAN NOT NULL DEFAULT FALSE,
	assignee_id            TEXT NOT NULL DEFAULT '',
	estimated_hours        DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_hours           DOUBLE PRECISION NOT NULL DEFAULT 0,
	order_index            INTEGER NOT NULL DEFAULT 0,
	due_date               DATE,
	bug_type               TEXT NOT NULL DEFAULT '',
	severity               TEXT NOT NULL DEFAULT '',
	category               TEXT NOT NULL DEFAULT '',
	labels                 TEXT NOT NULL DEFAULT '[]',
	created_at             TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sprints_project ON sprints(project_id);
CREATE INDEX IF NOT EXISTS idx_stories_sprint ON stories(sprint_id);
CREATE INDEX IF NOT EXISTS idx_stories_parent ON stories(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_story ON tasks(story_id);
CREATE INDEX IF NOT EXISTS idx_subtasks_task ON subtasks(task_id);
CREATE INDEX IF NOT EXISTS idx_backlog_stories_project ON backlog_stories(project_id);
CREATE INDEX IF NOT EXISTS idx_backlog_stories_sprint ON backlog_stories(created_from_sprint_id);
CREATE INDEX IF NOT EXISTS idx_backlog_stories_original ON backlog_stories(original_story_id);
CREATE INDEX IF NOT EXISTS idx_backlog_tasks_story ON backlog_tasks(backlog_story_id);
CREATE INDEX IF NOT EXISTS idx_backlog_subtasks_task ON backlog_subtasks(backlog_task_id);
`,
	},
}

// Migrate применяет недостающие миграции схемы
func (r *Repository) Migrate(ctx context.Context) error {
	createVersionTable := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMP NOT NULL
		)
	`
	if _, err := r.db.Exec(ctx, createVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		ddl := m.ddl
		if r.dialect == dialectSQLite {
			ddl = sqliteTypes.Replace(ddl)
		}

		err := r.WithTx(ctx, func(tx Store) error {
			txRepo := tx.(*Repository)
			if _, err := txRepo.db.Exec(ctx, ddl); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
			}
			_, err := txRepo.db.Exec(ctx,
				`INSERT INTO schema_version (version, description, applied_at) VALUES ($1, $2, $3)`,
				m.version, m.description, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
