package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const sessionDuration = 24 * time.Hour

// Register handles POST /auth/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RegisterRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	acct, err := a.accounts.Create(r.Context(), req.Username, req.Password)
	if err != nil {
		mapError(w, err)
		return
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(sessionDuration)
	a.sessions.Put(token, AuthSession{
		AccountID:      acct.ID,
		Username:       acct.Username,
		ExpiresAt:      expiresAt,
		LastAccessedAt: time.Now(),
	})
	writeSessionCookie(w, r, token, expiresAt)

	a.audit.logEvent(AuditRegister, r, acct.ID)
	writeJSON(w, http.StatusCreated, RegisterResponse{
		AccountID: acct.ID,
		Username:  acct.Username,
	})
}

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	acct, err := a.accounts.VerifyPassword(r.Context(), req.Username, req.Password)
	if err != nil {
		a.audit.logFailure(AuditLoginFailure, r, "invalid credentials")
		mapError(w, err)
		return
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(sessionDuration)
	a.sessions.Put(token, AuthSession{
		AccountID:      acct.ID,
		Username:       acct.Username,
		ExpiresAt:      expiresAt,
		LastAccessedAt: time.Now(),
	})
	writeSessionCookie(w, r, token, expiresAt)

	a.audit.logEvent(AuditLoginSuccess, r, acct.ID)
	writeJSON(w, http.StatusOK, struct{}{})
}

// Logout handles POST /auth/logout.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	var accountID string
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if session, ok := a.sessions.Get(cookie.Value); ok {
			accountID = session.AccountID
		}
		a.sessions.Delete(cookie.Value)
	}
	clearSessionCookie(w, r)
	a.audit.logEvent(AuditLogout, r, accountID)
	writeJSON(w, http.StatusOK, struct{}{})
}
