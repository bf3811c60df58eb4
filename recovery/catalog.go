package recovery

import (
	"context"
	"errors"

	"github.com/jcarver/latchkey/storage"
)

// SetupQuestionCount is how many questions are offered during answer setup.
const SetupQuestionCount = 3

// Catalog exposes the pool of security questions available for setup and
// verification.
type Catalog struct {
	repo storage.Repository
}

// NewCatalog creates a Catalog over the given repository.
func NewCatalog(repo storage.Repository) *Catalog {
	return &Catalog{repo: repo}
}

// ListActive returns up to limit active questions in stable insertion order.
// When fewer than limit exist, all of them are returned; setup tolerates a
// short catalog.
func (c *Catalog) ListActive(ctx context.Context, limit int) ([]storage.Question, error) {
	return c.repo.ListQuestions(ctx, true, limit)
}

// QuestionByID resolves a question regardless of its active flag: an account
// may hold bindings against a question retired after setup, and those must
// keep resolving for verification. Returns ErrNotFound on a miss.
func (c *Catalog) QuestionByID(ctx context.Context, id string) (*storage.Question, error) {
	q, err := c.repo.QuestionByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}
