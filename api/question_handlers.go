package api

import (
	"net/http"

	"github.com/jcarver/latchkey/recovery"
)

// ListQuestions handles GET /questions. It returns the questions presented
// during answer setup: the first active ones in catalog order, up to the
// setup count. A shorter catalog returns what exists.
func (a *API) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := a.catalog.ListActive(r.Context(), recovery.SetupQuestionCount)
	if err != nil {
		writeInternalError(w, "failed to list questions", err)
		return
	}

	resp := ListQuestionsResponse{Questions: make([]QuestionSummary, 0, len(questions))}
	for _, q := range questions {
		resp.Questions = append(resp.Questions, QuestionSummary{
			QuestionID: q.ID,
			Text:       q.Text,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// SecurityQuestionStatus handles GET /auth/security-questions. It reports
// whether the authenticated account has answers bound, and to which
// questions. Answer hashes are never returned.
func (a *API) SecurityQuestionStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bindings, err := a.answers.BindingsFor(r.Context(), session.AccountID)
	if err != nil {
		writeInternalError(w, "failed to load security questions", err)
		return
	}

	resp := SecurityQuestionStatusResponse{Configured: len(bindings) > 0}
	for _, binding := range bindings {
		question, err := a.catalog.QuestionByID(r.Context(), binding.QuestionID)
		if err != nil {
			writeInternalError(w, "failed to load security questions", err)
			return
		}
		resp.Questions = append(resp.Questions, QuestionSummary{
			QuestionID: question.ID,
			Text:       question.Text,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetupSecurityQuestions handles PUT /auth/security-questions. It replaces
// the authenticated account's answer set wholesale; there is no partial
// update of individual answers.
func (a *API) SetupSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	req, ok := decodeJSON[SetupSecurityQuestionsRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	answers, ok := answersToMap(w, req.Answers)
	if !ok {
		return
	}

	if err := a.answers.ReplaceAll(r.Context(), session.AccountID, answers); err != nil {
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditQuestionsConfigured, r, session.AccountID)
	writeJSON(w, http.StatusOK, struct{}{})
}

// answersToMap converts the submission list to a map, rejecting duplicate
// question IDs. On failure it writes the error response and returns ok=false.
func answersToMap(w http.ResponseWriter, submissions []AnswerSubmission) (map[string]string, bool) {
	answers := make(map[string]string, len(submissions))
	for _, sub := range submissions {
		if _, dup := answers[sub.QuestionID]; dup {
			writeError(w, http.StatusBadRequest, "duplicate question in submission")
			return nil, false
		}
		answers[sub.QuestionID] = sub.Answer
	}
	return answers, true
}
