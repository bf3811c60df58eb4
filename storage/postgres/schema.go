package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	CONSTRAINT accounts_username_key UNIQUE (username)
);

CREATE TABLE IF NOT EXISTS security_questions (
	seq        BIGINT GENERATED ALWAYS AS IDENTITY,
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	active     BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT security_questions_text_key UNIQUE (text)
);

CREATE TABLE IF NOT EXISTS answer_bindings (
	account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	question_id TEXT NOT NULL REFERENCES security_questions(id),
	answer_hash TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (account_id, question_id)
);
`

// EnsureSchema creates the tables used by the repository if they do not
// already exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
