package api

// ErrorResponse is the JSON body for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is returned from POST /auth/register.
type RegisterResponse struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// QuestionSummary describes a single security question in the catalog.
type QuestionSummary struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
}

// ListQuestionsResponse is returned from GET /questions.
type ListQuestionsResponse struct {
	Questions []QuestionSummary `json:"questions"`
}

// SecurityQuestionStatusResponse is returned from GET /auth/security-questions.
type SecurityQuestionStatusResponse struct {
	Configured bool              `json:"configured"`
	Questions  []QuestionSummary `json:"questions,omitempty"`
}

// AnswerSubmission pairs a question with its (plaintext) answer.
type AnswerSubmission struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// SetupSecurityQuestionsRequest is the JSON body for PUT /auth/security-questions.
type SetupSecurityQuestionsRequest struct {
	Answers []AnswerSubmission `json:"answers"`
}

// BeginRecoveryRequest is the JSON body for POST /recovery/begin.
type BeginRecoveryRequest struct {
	Username string `json:"username"`
}

// BeginRecoveryResponse is returned from POST /recovery/begin.
type BeginRecoveryResponse struct {
	AccountID string `json:"account_id"`
}

// RecoveryChallengeResponse is returned from GET /recovery/{accountID}/questions.
type RecoveryChallengeResponse struct {
	Questions []QuestionSummary `json:"questions"`
}

// SubmitAnswersRequest is the JSON body for POST /recovery/{accountID}/answers.
type SubmitAnswersRequest struct {
	Answers []AnswerSubmission `json:"answers"`
}

// CompleteResetRequest is the JSON body for POST /recovery/reset.
type CompleteResetRequest struct {
	NewPassword string `json:"new_password"`
}
