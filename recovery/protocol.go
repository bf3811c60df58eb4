// Package recovery implements knowledge-based account recovery: a user who
// forgot their password proves ownership by answering all of their
// pre-registered security questions, earning a short-lived session that
// authorizes exactly one password reset.
package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/jcarver/latchkey/storage"
)

// DefaultSessionTTL bounds how long a verified recovery session stays
// usable before the flow must restart.
const DefaultSessionTTL = 15 * time.Minute

// CredentialStore is the external collaborator that owns password storage.
// account.Service satisfies it.
type CredentialStore interface {
	SetPassword(ctx context.Context, accountID, newPassword string) error
}

// ChallengeQuestion is one entry of the challenge presented to a recovery
// requester.
type ChallengeQuestion struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
}

// Protocol drives the recovery state machine:
//
//	START -> IDENTIFIED -> CHALLENGED -> VERIFIED -> RESET_COMPLETE
//
// No state persists between transitions except VERIFIED, which is
// materialized as a Session in the injected SessionStore. Each transition
// re-validates its own preconditions instead of trusting that the caller
// invoked the previous one, so skipped or replayed steps surface as
// ErrNotFound or ErrSessionExpired rather than corrupting state.
type Protocol struct {
	repo     storage.Repository
	answers  *AnswerStore
	catalog  *Catalog
	creds    CredentialStore
	sessions SessionStore
	ttl      time.Duration
}

// ProtocolOption configures a Protocol.
type ProtocolOption func(*Protocol)

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(store SessionStore) ProtocolOption {
	return func(p *Protocol) {
		p.sessions = store
	}
}

// WithSessionTTL overrides the recovery-session lifetime.
func WithSessionTTL(ttl time.Duration) ProtocolOption {
	return func(p *Protocol) {
		p.ttl = ttl
	}
}

// NewProtocol creates a Protocol over the given repository, credential
// store, and answer store.
func NewProtocol(repo storage.Repository, creds CredentialStore, answers *AnswerStore, opts ...ProtocolOption) *Protocol {
	p := &Protocol{
		repo:    repo,
		answers: answers,
		catalog: NewCatalog(repo),
		creds:   creds,
		ttl:     DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sessions == nil {
		p.sessions = NewMemorySessionStore()
	}
	return p
}

// SessionTTL returns the configured recovery-session lifetime.
func (p *Protocol) SessionTTL() time.Duration {
	return p.ttl
}

// Identify resolves a username to an account and checks the recovery path is
// open for it. Returns ErrNotFound for an unknown username and
// ErrNoRecoveryConfigured when the account has no security answers bound.
// The two cases are deliberately distinct errors.
func (p *Protocol) Identify(ctx context.Context, username string) (*storage.Account, error) {
	acct, err := p.repo.AccountByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	configured, err := p.answers.HasSetup(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	if !configured {
		return nil, ErrNoRecoveryConfigured
	}
	return acct, nil
}

// Challenge emits every question the account has bound, in setup order. The
// requester must answer all of them: no random subset, no threshold.
func (p *Protocol) Challenge(ctx context.Context, accountID string) ([]ChallengeQuestion, error) {
	if _, err := p.repo.AccountByID(ctx, accountID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	bindings, err := p.answers.BindingsFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, ErrNoRecoveryConfigured
	}

	challenge := make([]ChallengeQuestion, 0, len(bindings))
	for _, binding := range bindings {
		question, err := p.catalog.QuestionByID(ctx, binding.QuestionID)
		if err != nil {
			return nil, err
		}
		challenge = append(challenge, ChallengeQuestion{
			QuestionID: question.ID,
			Text:       question.Text,
		})
	}
	return challenge, nil
}

// VerifyAnswers checks the submission against every binding for the account.
// On full success it creates exactly one Session under token; on any failure
// no session is written and the caller stays on the challenge. The failure
// error never indicates which answer was wrong.
func (p *Protocol) VerifyAnswers(ctx context.Context, token, accountID string, submitted map[string]string) error {
	if token == "" {
		return ErrValidation
	}
	if len(submitted) == 0 {
		return ErrValidation
	}
	if _, err := p.repo.AccountByID(ctx, accountID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	configured, err := p.answers.HasSetup(ctx, accountID)
	if err != nil {
		return err
	}
	if !configured {
		return ErrNoRecoveryConfigured
	}

	ok, err := p.answers.VerifyAll(ctx, accountID, submitted)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVerificationFailed
	}

	now := time.Now().UTC()
	p.sessions.Put(token, Session{
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.ttl),
	})
	return nil
}

// CompleteReset consumes the recovery session under token and sets the
// subject account's password. The session is destroyed before the password
// write is attempted, so a failure partway still burns the session: a
// token authorizes one attempt, not one success. A second call with the
// same token fails with ErrSessionExpired.
func (p *Protocol) CompleteReset(ctx context.Context, token, newPassword string) error {
	session, ok := p.sessions.Get(token)
	if !ok {
		return ErrSessionExpired
	}
	p.sessions.Delete(token)

	return p.creds.SetPassword(ctx, session.AccountID, newPassword)
}

// Abandon drops any in-flight recovery session under token. Safe to call
// when none exists.
func (p *Protocol) Abandon(token string) {
	p.sessions.Delete(token)
}
