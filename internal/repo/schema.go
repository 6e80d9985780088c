package repo

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id          BIGSERIAL PRIMARY KEY,
		provider_id TEXT NOT NULL UNIQUE,
		direction   TEXT NOT NULL,
		sender      TEXT NOT NULL,
		recipient   TEXT NOT NULL,
		body        TEXT NOT NULL,
		status      TEXT NOT NULL,
		account_id  TEXT NOT NULL DEFAULT '',
		user_id     BIGINT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_recipient_direction ON messages (recipient, direction)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id         BIGSERIAL PRIMARY KEY,
		prompt     TEXT NOT NULL UNIQUE,
		options    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sent_questions (
		id          BIGSERIAL PRIMARY KEY,
		phone       TEXT NOT NULL,
		question_id BIGINT NOT NULL REFERENCES questions (id),
		user_id     BIGINT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_questions_phone_latest ON sent_questions (phone, created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS responses (
		id                  BIGSERIAL PRIMARY KEY,
		question_id         BIGINT NOT NULL REFERENCES questions (id),
		sent_question_id    BIGINT NULL UNIQUE REFERENCES sent_questions (id),
		inbound_provider_id TEXT NULL UNIQUE,
		phone               TEXT NOT NULL,
		answer              TEXT NOT NULL,
		plain_answer        TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_responses_phone ON responses (phone)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id TEXT NOT NULL UNIQUE,
		direction   TEXT NOT NULL,
		sender      TEXT NOT NULL,
		recipient   TEXT NOT NULL,
		body        TEXT NOT NULL,
		status      TEXT NOT NULL,
		account_id  TEXT NOT NULL DEFAULT '',
		user_id     INTEGER NULL,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_recipient_direction ON messages (recipient, direction)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt     TEXT NOT NULL UNIQUE,
		options    TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sent_questions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		phone       TEXT NOT NULL,
		question_id INTEGER NOT NULL REFERENCES questions (id),
		user_id     INTEGER NULL,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_questions_phone_latest ON sent_questions (phone, created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS responses (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id         INTEGER NOT NULL REFERENCES questions (id),
		sent_question_id    INTEGER NULL UNIQUE REFERENCES sent_questions (id),
		inbound_provider_id TEXT NULL UNIQUE,
		phone               TEXT NOT NULL,
		answer              TEXT NOT NULL,
		plain_answer        TEXT NOT NULL,
		created_at          TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_responses_phone ON responses (phone)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if s.dialect == SQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if _, err := s.sqlDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
