package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jcarver/latchkey/recovery"
)

// BeginRecovery handles POST /recovery/begin. An unknown username and an
// account with no answers bound produce distinct messages.
func (a *API) BeginRecovery(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[BeginRecoveryRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	acct, err := a.protocol.Identify(r.Context(), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, recovery.ErrNotFound):
			a.audit.logFailure(AuditRecoveryFailed, r, "unknown username")
			writeError(w, http.StatusNotFound, "username not found")
		case errors.Is(err, recovery.ErrNoRecoveryConfigured):
			a.audit.logFailure(AuditRecoveryFailed, r, "no security questions configured")
			writeError(w, http.StatusNotFound, "this user has not set up security questions")
		default:
			mapError(w, err)
		}
		return
	}

	a.audit.logEvent(AuditRecoveryStarted, r, acct.ID)
	writeJSON(w, http.StatusOK, BeginRecoveryResponse{AccountID: acct.ID})
}

// RecoveryChallenge handles GET /recovery/{accountID}/questions. The
// challenge lists every question the account has bound, in setup order.
func (a *API) RecoveryChallenge(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	challenge, err := a.protocol.Challenge(r.Context(), accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := RecoveryChallengeResponse{Questions: make([]QuestionSummary, 0, len(challenge))}
	for _, q := range challenge {
		resp.Questions = append(resp.Questions, QuestionSummary{
			QuestionID: q.QuestionID,
			Text:       q.Text,
		})
	}
	a.audit.logEvent(AuditRecoveryChallenged, r, accountID)
	writeJSON(w, http.StatusOK, resp)
}

// SubmitRecoveryAnswers handles POST /recovery/{accountID}/answers. All
// bound questions must be answered correctly; on failure the response never
// indicates which answer was wrong.
func (a *API) SubmitRecoveryAnswers(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	req, ok := decodeJSON[SubmitAnswersRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	answers, ok := answersToMap(w, req.Answers)
	if !ok {
		return
	}

	token := uuid.NewString()
	if err := a.protocol.VerifyAnswers(r.Context(), token, accountID, answers); err != nil {
		if errors.Is(err, recovery.ErrVerificationFailed) {
			a.audit.logFailure(AuditRecoveryFailed, r, "incorrect answers",
				slog.String("account_id", accountID))
		}
		mapError(w, err)
		return
	}

	expiresAt := time.Now().Add(a.protocol.SessionTTL())
	writeRecoveryCookie(w, r, token, expiresAt)

	a.audit.logEvent(AuditRecoveryVerified, r, accountID)
	writeJSON(w, http.StatusOK, struct{}{})
}

// CompleteRecoveryReset handles POST /recovery/reset. The recovery session
// is single-use: it is consumed before the password write, so a failed
// write still requires re-verification.
func (a *API) CompleteRecoveryReset(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(recoveryCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "session expired, restart password recovery")
		return
	}

	req, ok := decodeJSON[CompleteResetRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	if err := a.protocol.CompleteReset(r.Context(), cookie.Value, req.NewPassword); err != nil {
		clearRecoveryCookie(w, r)
		if errors.Is(err, recovery.ErrSessionExpired) {
			a.audit.logFailure(AuditPasswordResetExpired, r, "missing or expired recovery session")
			writeError(w, http.StatusUnauthorized, "session expired, restart password recovery")
			return
		}
		mapError(w, err)
		return
	}

	clearRecoveryCookie(w, r)
	a.audit.log(AuditPasswordReset, r)
	writeJSON(w, http.StatusOK, struct{}{})
}
