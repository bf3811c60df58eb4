// Package memory provides a thread-safe in-memory implementation of
// storage.Repository. Suitable for testing, demos, and single-process use.
package memory

import (
	"context"
	"sync"

	"github.com/jcarver/latchkey/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
type Repository struct {
	mu            sync.RWMutex
	accounts      map[string]*storage.Account
	usernameIndex map[string]string // username -> account ID
	questions     map[string]*storage.Question
	questionOrder []string // question IDs in insertion order
	textIndex     map[string]string
	bindings      map[string]map[string]*storage.AnswerBinding // accountID -> questionID -> binding
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{
		accounts:      make(map[string]*storage.Account),
		usernameIndex: make(map[string]string),
		questions:     make(map[string]*storage.Question),
		textIndex:     make(map[string]string),
		bindings:      make(map[string]map[string]*storage.AnswerBinding),
	}
}

func cloneAccount(a *storage.Account) *storage.Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func cloneQuestion(q *storage.Question) *storage.Question {
	if q == nil {
		return nil
	}
	cp := *q
	return &cp
}

func (r *Repository) CreateAccount(_ context.Context, account *storage.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.usernameIndex[account.Username]; ok {
		return storage.ErrUsernameTaken
	}
	r.accounts[account.ID] = cloneAccount(account)
	r.usernameIndex[account.Username] = account.ID
	return nil
}

func (r *Repository) AccountByID(_ context.Context, id string) (*storage.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (r *Repository) AccountByUsername(_ context.Context, username string) (*storage.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.usernameIndex[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneAccount(r.accounts[id]), nil
}

func (r *Repository) UpdateAccountPassword(_ context.Context, id string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (r *Repository) PutQuestion(_ context.Context, question *storage.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID, ok := r.textIndex[question.Text]; ok && existingID != question.ID {
		return storage.ErrQuestionTextTaken
	}
	if existing, ok := r.questions[question.ID]; ok {
		delete(r.textIndex, existing.Text)
	} else {
		r.questionOrder = append(r.questionOrder, question.ID)
	}
	r.questions[question.ID] = cloneQuestion(question)
	r.textIndex[question.Text] = question.ID
	return nil
}

func (r *Repository) QuestionByID(_ context.Context, id string) (*storage.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneQuestion(q), nil
}

func (r *Repository) QuestionByText(_ context.Context, text string) (*storage.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.textIndex[text]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneQuestion(r.questions[id]), nil
}

func (r *Repository) ListQuestions(_ context.Context, activeOnly bool, limit int) ([]storage.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []storage.Question
	for _, id := range r.questionOrder {
		q := r.questions[id]
		if activeOnly && !q.Active {
			continue
		}
		out = append(out, *cloneQuestion(q))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *Repository) ReplaceBindings(_ context.Context, accountID string, bindings []storage.AnswerBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Validate before touching the existing set so a rejected batch
	// leaves the prior bindings intact.
	if err := storage.ValidateBindingBatch(bindings); err != nil {
		return err
	}
	set := make(map[string]*storage.AnswerBinding, len(bindings))
	for i := range bindings {
		b := bindings[i]
		set[b.QuestionID] = &b
	}
	if len(set) == 0 {
		delete(r.bindings, accountID)
		return nil
	}
	r.bindings[accountID] = set
	return nil
}

func (r *Repository) BindingsByAccount(_ context.Context, accountID string) ([]storage.AnswerBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.bindings[accountID]
	out := make([]storage.AnswerBinding, 0, len(set))
	for _, id := range r.questionOrder {
		if b, ok := set[id]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *Repository) HasBindings(_ context.Context, accountID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings[accountID]) > 0, nil
}
