// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The answer_bindings table uses a composite primary key
// (account_id, question_id) that mirrors the key space used by the BBolt
// and in-memory backends. Binding replacement runs inside a single
// transaction so a failure partway leaves the prior set untouched.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcarver/latchkey/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const uniqueViolation = "23505"

func constraintError(err error, constraint string, mapped error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint {
		return mapped
	}
	return err
}

func (s *Store) CreateAccount(ctx context.Context, account *storage.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, username, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		account.ID, account.Username, account.PasswordHash, account.CreatedAt)
	if err != nil {
		return constraintError(err, "accounts_username_key", storage.ErrUsernameTaken)
	}
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id string) (*storage.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM accounts WHERE id = $1`, id))
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (*storage.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM accounts WHERE username = $1`, username))
}

func (s *Store) scanAccount(row pgx.Row) (*storage.Account, error) {
	var account storage.Account
	err := row.Scan(&account.ID, &account.Username, &account.PasswordHash, &account.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) UpdateAccountPassword(ctx context.Context, id string, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) PutQuestion(ctx context.Context, question *storage.Question) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO security_questions (id, text, active, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id)
		 DO UPDATE SET text = $2, active = $3`,
		question.ID, question.Text, question.Active, question.CreatedAt)
	if err != nil {
		return constraintError(err, "security_questions_text_key", storage.ErrQuestionTextTaken)
	}
	return nil
}

func (s *Store) QuestionByID(ctx context.Context, id string) (*storage.Question, error) {
	return s.scanQuestion(s.pool.QueryRow(ctx,
		`SELECT id, text, active, created_at FROM security_questions WHERE id = $1`, id))
}

func (s *Store) QuestionByText(ctx context.Context, text string) (*storage.Question, error) {
	return s.scanQuestion(s.pool.QueryRow(ctx,
		`SELECT id, text, active, created_at FROM security_questions WHERE text = $1`, text))
}

func (s *Store) scanQuestion(row pgx.Row) (*storage.Question, error) {
	var question storage.Question
	err := row.Scan(&question.ID, &question.Text, &question.Active, &question.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (s *Store) ListQuestions(ctx context.Context, activeOnly bool, limit int) ([]storage.Question, error) {
	query := `SELECT id, text, active, created_at FROM security_questions`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY seq`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Question
	for rows.Next() {
		var question storage.Question
		if err := rows.Scan(&question.ID, &question.Text, &question.Active, &question.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, question)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceBindings(ctx context.Context, accountID string, bindings []storage.AnswerBinding) error {
	if err := storage.ValidateBindingBatch(bindings); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM answer_bindings WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	for _, b := range bindings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO answer_bindings (account_id, question_id, answer_hash, created_at)
			 VALUES ($1, $2, $3, $4)`,
			accountID, b.QuestionID, b.AnswerHash, b.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) BindingsByAccount(ctx context.Context, accountID string) ([]storage.AnswerBinding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT b.account_id, b.question_id, b.answer_hash, b.created_at
		 FROM answer_bindings b
		 JOIN security_questions q ON q.id = b.question_id
		 WHERE b.account_id = $1
		 ORDER BY q.seq`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.AnswerBinding{}
	for rows.Next() {
		var b storage.AnswerBinding
		if err := rows.Scan(&b.AccountID, &b.QuestionID, &b.AnswerHash, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) HasBindings(ctx context.Context, accountID string) (bool, error) {
	var has bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM answer_bindings WHERE account_id = $1)`, accountID).Scan(&has)
	return has, err
}
