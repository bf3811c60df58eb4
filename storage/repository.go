// Package storage provides the storage abstraction layer for accounts,
// security questions, and per-account answer bindings.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUsernameTaken is returned when creating an account with a
	// username that already exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrQuestionTextTaken is returned when inserting a question whose
	// text duplicates an existing question.
	ErrQuestionTextTaken = errors.New("question text already exists")
	// ErrDuplicateBinding is returned when a binding batch references the
	// same question more than once. The batch is rejected as a whole.
	ErrDuplicateBinding = errors.New("duplicate question in binding batch")
)

// Account is a stored user credential record. The password hash is an
// opaque PHC-format string owned by the account package.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Question is a security question available for answer setup. Questions are
// never deleted; retiring one clears Active so that historical bindings keep
// resolving.
type Question struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// AnswerBinding ties an account to a security question through a hashed
// answer. At most one binding exists per (account, question) pair.
type AnswerBinding struct {
	AccountID  string    `json:"account_id"`
	QuestionID string    `json:"question_id"`
	AnswerHash string    `json:"answer_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository defines the persistence interface shared by the in-memory,
// BBolt, and PostgreSQL backends.
//
// All methods are safe for concurrent use. ReplaceBindings for the same
// account is serialized by the backend so two replacements never interleave;
// the last writer wins.
type Repository interface {
	// CreateAccount inserts a new account. Returns ErrUsernameTaken when
	// the username is already registered.
	CreateAccount(ctx context.Context, account *Account) error
	// AccountByID returns the account with the given ID, or ErrNotFound.
	AccountByID(ctx context.Context, id string) (*Account, error)
	// AccountByUsername returns the account with the given exact
	// username, or ErrNotFound.
	AccountByUsername(ctx context.Context, username string) (*Account, error)
	// UpdateAccountPassword replaces the stored password hash.
	// Returns ErrNotFound when the account does not exist.
	UpdateAccountPassword(ctx context.Context, id string, passwordHash string) error

	// PutQuestion inserts a question, or updates text/active for an
	// existing ID while preserving its insertion order.
	PutQuestion(ctx context.Context, question *Question) error
	// QuestionByID returns the question regardless of its active flag:
	// bindings may reference questions retired after setup.
	QuestionByID(ctx context.Context, id string) (*Question, error)
	// QuestionByText returns the question with exactly the given text,
	// or ErrNotFound. Used for idempotent seeding.
	QuestionByText(ctx context.Context, text string) (*Question, error)
	// ListQuestions returns questions in stable insertion order. When
	// activeOnly is set, retired questions are skipped. A limit <= 0
	// means no limit.
	ListQuestions(ctx context.Context, activeOnly bool, limit int) ([]Question, error)

	// ReplaceBindings atomically deletes every binding for the account
	// and inserts the given batch. A failure leaves the prior set
	// intact; the account is never left with a partially replaced set.
	ReplaceBindings(ctx context.Context, accountID string, bindings []AnswerBinding) error
	// BindingsByAccount returns all bindings for the account in question
	// insertion order. An account with no bindings yields an empty slice.
	BindingsByAccount(ctx context.Context, accountID string) ([]AnswerBinding, error)
	// HasBindings reports whether at least one binding exists for the
	// account.
	HasBindings(ctx context.Context, accountID string) (bool, error)
}

// ValidateBindingBatch rejects binding batches that repeat a question.
// Shared by all backends so ReplaceBindings fails the same way everywhere.
func ValidateBindingBatch(bindings []AnswerBinding) error {
	seen := make(map[string]struct{}, len(bindings))
	for _, b := range bindings {
		if _, ok := seen[b.QuestionID]; ok {
			return ErrDuplicateBinding
		}
		seen[b.QuestionID] = struct{}{}
	}
	return nil
}
