package recovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jcarver/latchkey/storage"
)

// AnswerStore manages an account's set of (question, answer-hash) bindings.
type AnswerStore struct {
	repo   storage.Repository
	hasher *AnswerHasher
}

// NewAnswerStore creates an AnswerStore hashing answers with the given hasher.
func NewAnswerStore(repo storage.Repository, hasher *AnswerHasher) *AnswerStore {
	return &AnswerStore{repo: repo, hasher: hasher}
}

// BindingsFor returns every binding for the account.
func (s *AnswerStore) BindingsFor(ctx context.Context, accountID string) ([]storage.AnswerBinding, error) {
	return s.repo.BindingsByAccount(ctx, accountID)
}

// HasSetup reports whether the account has at least one binding.
func (s *AnswerStore) HasSetup(ctx context.Context, accountID string) (bool, error) {
	return s.repo.HasBindings(ctx, accountID)
}

// ReplaceAll atomically replaces the account's bindings with hashed versions
// of the submitted answers. The submission must contain between one and
// SetupQuestionCount entries, every answer must be non-blank, and every
// question must be an active catalog question. A failure anywhere leaves the
// prior bindings intact.
func (s *AnswerStore) ReplaceAll(ctx context.Context, accountID string, answers map[string]string) error {
	if len(answers) == 0 {
		return fmt.Errorf("%w: no answers submitted", ErrValidation)
	}
	if len(answers) > SetupQuestionCount {
		return fmt.Errorf("%w: at most %d answers allowed", ErrValidation, SetupQuestionCount)
	}

	now := time.Now().UTC()
	bindings := make([]storage.AnswerBinding, 0, len(answers))
	for questionID, raw := range answers {
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("%w: blank answer", ErrValidation)
		}
		question, err := s.repo.QuestionByID(ctx, questionID)
		if err != nil {
			return fmt.Errorf("%w: unknown question", ErrValidation)
		}
		if !question.Active {
			return fmt.Errorf("%w: question is not available", ErrValidation)
		}
		hash, err := s.hasher.Hash(raw)
		if err != nil {
			return err
		}
		bindings = append(bindings, storage.AnswerBinding{
			AccountID:  accountID,
			QuestionID: questionID,
			AnswerHash: hash,
			CreatedAt:  now,
		})
	}
	return s.repo.ReplaceBindings(ctx, accountID, bindings)
}

// VerifyAll reports whether the submission answers every bound question
// correctly. A binding with no submitted answer, or with a wrong answer,
// fails the whole check: this is an AND over all bindings, never a
// threshold. Extra submitted keys are ignored. An account with no bindings
// verifies false.
//
// Every binding is checked even after a mismatch so the work done does not
// depend on which answer was wrong.
func (s *AnswerStore) VerifyAll(ctx context.Context, accountID string, submitted map[string]string) (bool, error) {
	bindings, err := s.repo.BindingsByAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	if len(bindings) == 0 {
		return false, nil
	}

	ok := true
	for _, binding := range bindings {
		raw, present := submitted[binding.QuestionID]
		if !present || !s.hasher.Verify(raw, binding.AnswerHash) {
			ok = false
		}
	}
	return ok, nil
}
