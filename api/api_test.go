package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcarver/latchkey/api"
	"github.com/jcarver/latchkey/internal/util"
	"github.com/jcarver/latchkey/storage"
	"github.com/jcarver/latchkey/storage/memory"
)

// testKDF keeps argon2id cheap so the suite stays fast.
var testKDF = util.Argon2idParams{Time: 1, MemoryKiB: 16, Parallelism: 1, KeyLen: 32}

var seedTexts = []string{
	"What was the name of your first pet?",
	"What city were you born in?",
	"What was the make of your first car?",
}

func setupServer(t *testing.T, opts ...api.Option) (*httptest.Server, []storage.Question) {
	t.Helper()
	repo := memory.NewRepository()

	questions := make([]storage.Question, 0, len(seedTexts))
	for _, text := range seedTexts {
		q := storage.Question{
			ID:        uuid.NewString(),
			Text:      text,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, repo.PutQuestion(context.Background(), &q))
		questions = append(questions, q)
	}

	opts = append([]api.Option{api.WithKDFParams(testKDF)}, opts...)
	a := api.New(repo, opts...)
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, questions
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func register(t *testing.T, client *http.Client, baseURL, username, password string) api.RegisterResponse {
	t.Helper()
	resp := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"username": username,
		"password": password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var reg api.RegisterResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
	require.NotEmpty(t, reg.AccountID)
	return reg
}

func setupAnswers(t *testing.T, client *http.Client, baseURL string, answers []api.AnswerSubmission) {
	t.Helper()
	resp := doJSON(t, client, http.MethodPut, baseURL+"/api/v1/auth/security-questions",
		api.SetupSecurityQuestionsRequest{Answers: answers})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var e api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e.Error
}

func TestAuthRegisterLoginLogout(t *testing.T) {
	srv, _ := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice", "original-password")

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/logout", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Authenticated routes reject after logout.
	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/security-questions", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "original-password",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/security-questions", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv, _ := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice", "original-password")

	resp := doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/v1/auth/register", map[string]string{
		"username": "alice",
		"password": "another-password",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginWrongPassword(t *testing.T) {
	srv, _ := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice", "original-password")

	resp := doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	// Same message for bad username and bad password.
	assert.Equal(t, "the username or password is incorrect", errorMessage(t, resp))
}

func TestListQuestions(t *testing.T) {
	srv, questions := setupServer(t)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/questions", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list api.ListQuestionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Questions, len(questions))
	for i, q := range questions {
		assert.Equal(t, q.ID, list.Questions[i].QuestionID)
		assert.Equal(t, q.Text, list.Questions[i].Text)
	}
}

func TestSecurityQuestionSetupAndStatus(t *testing.T) {
	srv, questions := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice", "original-password")

	// Before setup.
	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/security-questions", nil)
	var status api.SecurityQuestionStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.False(t, status.Configured)
	assert.Empty(t, status.Questions)

	setupAnswers(t, client, srv.URL, []api.AnswerSubmission{
		{QuestionID: questions[0].ID, Answer: "Rex"},
		{QuestionID: questions[1].ID, Answer: "Lisbon"},
	})

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/security-questions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.True(t, status.Configured)
	require.Len(t, status.Questions, 2)
	assert.Equal(t, questions[0].Text, status.Questions[0].Text)
	assert.Equal(t, questions[1].Text, status.Questions[1].Text)
}

func TestSecurityQuestionSetupValidation(t *testing.T) {
	srv, questions := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice", "original-password")

	put := func(answers []api.AnswerSubmission) *http.Response {
		resp := doJSON(t, client, http.MethodPut, srv.URL+"/api/v1/auth/security-questions",
			api.SetupSecurityQuestionsRequest{Answers: answers})
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("EmptySubmission", func(t *testing.T) {
		resp := put(nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("UnknownQuestion", func(t *testing.T) {
		resp := put([]api.AnswerSubmission{{QuestionID: uuid.NewString(), Answer: "x"}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("BlankAnswer", func(t *testing.T) {
		resp := put([]api.AnswerSubmission{{QuestionID: questions[0].ID, Answer: "   "}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("DuplicateQuestion", func(t *testing.T) {
		resp := put([]api.AnswerSubmission{
			{QuestionID: questions[0].ID, Answer: "a"},
			{QuestionID: questions[0].ID, Answer: "b"},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("FailureLeavesNothingBound", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/auth/security-questions", nil)
		defer resp.Body.Close()
		var status api.SecurityQuestionStatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.False(t, status.Configured)
	})
}

func TestRecoveryFlowEndToEnd(t *testing.T) {
	srv, questions := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice", "original-password")
	setupAnswers(t, client, srv.URL, []api.AnswerSubmission{
		{QuestionID: questions[0].ID, Answer: "Rex"},
		{QuestionID: questions[1].ID, Answer: "Lisbon"},
	})
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/auth/logout", nil)
	resp.Body.Close()

	// A fresh client with no login session walks the recovery flow.
	rec := newClient(t)

	resp = doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/begin", map[string]string{
		"username": "alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var begin api.BeginRecoveryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&begin))
	resp.Body.Close()
	require.NotEmpty(t, begin.AccountID)

	resp = doJSON(t, rec, http.MethodGet, srv.URL+"/api/v1/recovery/"+begin.AccountID+"/questions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var challenge api.RecoveryChallengeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&challenge))
	resp.Body.Close()
	require.Len(t, challenge.Questions, 2)
	assert.Equal(t, questions[0].Text, challenge.Questions[0].Text)
	assert.Equal(t, questions[1].Text, challenge.Questions[1].Text)

	// Case and surrounding whitespace do not matter.
	resp = doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/"+begin.AccountID+"/answers",
		api.SubmitAnswersRequest{Answers: []api.AnswerSubmission{
			{QuestionID: questions[0].ID, Answer: "  REX "},
			{QuestionID: questions[1].ID, Answer: "lisbon"},
		}})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/reset", map[string]string{
		"new_password": "brand-new-password",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The recovery session is single-use.
	resp = doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/reset", map[string]string{
		"new_password": "sneaky-second-reset",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Old password no longer works, the new one does.
	resp = doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "original-password",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "brand-new-password",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecoveryBeginErrors(t *testing.T) {
	srv, _ := setupServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "bob", "original-password")

	t.Run("UnknownUsername", func(t *testing.T) {
		resp := doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/v1/recovery/begin", map[string]string{
			"username": "nobody",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "username not found", errorMessage(t, resp))
	})

	t.Run("NoQuestionsConfigured", func(t *testing.T) {
		resp := doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/v1/recovery/begin", map[string]string{
			"username": "bob",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "this user has not set up security questions", errorMessage(t, resp))
	})
}

func TestRecoveryWrongAnswers(t *testing.T) {
	srv, questions := setupServer(t)
	client := newClient(t)

	reg := register(t, client, srv.URL, "alice", "original-password")
	setupAnswers(t, client, srv.URL, []api.AnswerSubmission{
		{QuestionID: questions[0].ID, Answer: "Rex"},
		{QuestionID: questions[1].ID, Answer: "Lisbon"},
	})

	rec := newClient(t)

	// One right answer is not enough; the message never names the bad one.
	resp := doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/"+reg.AccountID+"/answers",
		api.SubmitAnswersRequest{Answers: []api.AnswerSubmission{
			{QuestionID: questions[0].ID, Answer: "Rex"},
			{QuestionID: questions[1].ID, Answer: "Porto"},
		}})
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "one or more security answers are incorrect", errorMessage(t, resp))

	// No session was created, so reset is refused.
	resp2 := doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/reset", map[string]string{
		"new_password": "brand-new-password",
	})
	resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)

	// And the original password still works.
	resp3 := doJSON(t, newClient(t), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "original-password",
	})
	resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)
}

func TestRecoveryExpiredSession(t *testing.T) {
	srv, questions := setupServer(t, api.WithRecoverySessionTTL(-time.Second))
	client := newClient(t)

	reg := register(t, client, srv.URL, "alice", "original-password")
	setupAnswers(t, client, srv.URL, []api.AnswerSubmission{
		{QuestionID: questions[0].ID, Answer: "Rex"},
	})

	rec := newClient(t)
	resp := doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/"+reg.AccountID+"/answers",
		api.SubmitAnswersRequest{Answers: []api.AnswerSubmission{
			{QuestionID: questions[0].ID, Answer: "Rex"},
		}})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/reset", map[string]string{
		"new_password": "brand-new-password",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "session expired, restart password recovery", errorMessage(t, resp))
}

func TestRecoveryResetBurnsSessionOnFailure(t *testing.T) {
	srv, questions := setupServer(t)
	client := newClient(t)

	reg := register(t, client, srv.URL, "alice", "original-password")
	setupAnswers(t, client, srv.URL, []api.AnswerSubmission{
		{QuestionID: questions[0].ID, Answer: "Rex"},
	})

	rec := newClient(t)
	resp := doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/"+reg.AccountID+"/answers",
		api.SubmitAnswersRequest{Answers: []api.AnswerSubmission{
			{QuestionID: questions[0].ID, Answer: "Rex"},
		}})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Too-short password fails the reset but still consumes the session.
	resp = doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/reset", map[string]string{
		"new_password": "short",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, rec, http.MethodPost, srv.URL+"/api/v1/recovery/reset", map[string]string{
		"new_password": "long-enough-now",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)

	resp := doJSON(t, newClient(t), http.MethodGet, srv.URL+"/api/v1/health", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
