// Package api exposes the authentication and account-recovery flows as a
// JSON REST API.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jcarver/latchkey/account"
	"github.com/jcarver/latchkey/internal/util"
	"github.com/jcarver/latchkey/recovery"
	"github.com/jcarver/latchkey/storage"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	accounts *account.Service
	catalog  *recovery.Catalog
	answers  *recovery.AnswerStore
	protocol *recovery.Protocol
	sessions SessionStore
	audit    *auditLogger
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*options)

type options struct {
	logger           *slog.Logger
	sessions         SessionStore
	recoverySessions recovery.SessionStore
	recoveryTTL      time.Duration
	kdfParams        *util.Argon2idParams
}

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSessionStore replaces the default in-memory login session store.
func WithSessionStore(store SessionStore) Option {
	return func(o *options) {
		o.sessions = store
	}
}

// WithRecoverySessionStore replaces the default in-memory recovery session
// store.
func WithRecoverySessionStore(store recovery.SessionStore) Option {
	return func(o *options) {
		o.recoverySessions = store
	}
}

// WithRecoverySessionTTL overrides the recovery-session lifetime.
func WithRecoverySessionTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.recoveryTTL = ttl
	}
}

// WithKDFParams overrides the argon2id parameters used for both password
// and answer hashing. Tests use cheap parameters.
func WithKDFParams(params util.Argon2idParams) Option {
	return func(o *options) {
		o.kdfParams = &params
	}
}

// New creates a new API instance over the given repository.
func New(repo storage.Repository, opts ...Option) *API {
	o := &options{recoveryTTL: recovery.DefaultSessionTTL}
	for _, opt := range opts {
		opt(o)
	}

	kdfParams := util.DefaultArgon2idParams()
	if o.kdfParams != nil {
		kdfParams = *o.kdfParams
	}

	accounts := account.NewService(repo, account.WithKDFParams(kdfParams))
	answers := recovery.NewAnswerStore(repo, recovery.NewAnswerHasher(kdfParams))

	protocolOpts := []recovery.ProtocolOption{recovery.WithSessionTTL(o.recoveryTTL)}
	if o.recoverySessions != nil {
		protocolOpts = append(protocolOpts, recovery.WithSessionStore(o.recoverySessions))
	}

	a := &API{
		accounts: accounts,
		catalog:  recovery.NewCatalog(repo),
		answers:  answers,
		protocol: recovery.NewProtocol(repo, accounts, answers, protocolOpts...),
		sessions: o.sessions,
	}
	if a.sessions == nil {
		a.sessions = NewMemorySessionStore(0)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.audit = newAuditLogger(logger)
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/register", a.Register)
	r.Post("/auth/login", a.Login)
	r.Post("/auth/logout", a.Logout)

	r.Get("/questions", a.ListQuestions)
	r.With(a.AuthMiddleware).Get("/auth/security-questions", a.SecurityQuestionStatus)
	r.With(a.AuthMiddleware).Put("/auth/security-questions", a.SetupSecurityQuestions)

	r.Post("/recovery/begin", a.BeginRecovery)
	r.Get("/recovery/{accountID}/questions", a.RecoveryChallenge)
	r.Post("/recovery/{accountID}/answers", a.SubmitRecoveryAnswers)
	r.Post("/recovery/reset", a.CompleteRecoveryReset)

	return r
}
