package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jcarver/latchkey/storage"
)

func TestMemoryAccounts(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	account := &storage.Account{
		ID:           "acct-1",
		Username:     "marge",
		PasswordHash: "$argon2id$...",
		CreatedAt:    time.Now().UTC(),
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		if err := repo.CreateAccount(ctx, account); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
		got, err := repo.AccountByID(ctx, "acct-1")
		if err != nil {
			t.Fatalf("AccountByID failed: %v", err)
		}
		if got.Username != "marge" {
			t.Errorf("got username %q, want marge", got.Username)
		}

		byName, err := repo.AccountByUsername(ctx, "marge")
		if err != nil {
			t.Fatalf("AccountByUsername failed: %v", err)
		}
		if byName.ID != "acct-1" {
			t.Errorf("got ID %q, want acct-1", byName.ID)
		}

		// Test isolation (cloning)
		got.Username = "mutated"
		again, _ := repo.AccountByID(ctx, "acct-1")
		if again.Username == "mutated" {
			t.Error("repository should return clones of accounts")
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		err := repo.CreateAccount(ctx, &storage.Account{ID: "acct-2", Username: "marge"})
		if !errors.Is(err, storage.ErrUsernameTaken) {
			t.Errorf("got %v, want ErrUsernameTaken", err)
		}
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		if err := repo.UpdateAccountPassword(ctx, "acct-1", "new-hash"); err != nil {
			t.Fatalf("UpdateAccountPassword failed: %v", err)
		}
		got, _ := repo.AccountByID(ctx, "acct-1")
		if got.PasswordHash != "new-hash" {
			t.Errorf("got hash %q, want new-hash", got.PasswordHash)
		}

		err := repo.UpdateAccountPassword(ctx, "nope", "x")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.AccountByID(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if _, err := repo.AccountByUsername(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestMemoryQuestions(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		q := &storage.Question{
			ID:        fmt.Sprintf("q%d", i),
			Text:      fmt.Sprintf("Question %d?", i),
			Active:    i != 3, // q3 retired
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.PutQuestion(ctx, q); err != nil {
			t.Fatalf("PutQuestion failed: %v", err)
		}
	}

	t.Run("ListInsertionOrder", func(t *testing.T) {
		all, err := repo.ListQuestions(ctx, false, 0)
		if err != nil {
			t.Fatalf("ListQuestions failed: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("got %d questions, want 5", len(all))
		}
		for i, q := range all {
			if want := fmt.Sprintf("q%d", i+1); q.ID != want {
				t.Errorf("position %d: got %q, want %q", i, q.ID, want)
			}
		}
	})

	t.Run("ActiveOnlyWithLimit", func(t *testing.T) {
		active, err := repo.ListQuestions(ctx, true, 3)
		if err != nil {
			t.Fatalf("ListQuestions failed: %v", err)
		}
		if len(active) != 3 {
			t.Fatalf("got %d questions, want 3", len(active))
		}
		// q3 is inactive so the first three active are q1, q2, q4.
		if active[2].ID != "q4" {
			t.Errorf("got %q at position 2, want q4", active[2].ID)
		}
	})

	t.Run("InactiveStillResolvesByID", func(t *testing.T) {
		q, err := repo.QuestionByID(ctx, "q3")
		if err != nil {
			t.Fatalf("QuestionByID failed for inactive question: %v", err)
		}
		if q.Active {
			t.Error("expected q3 to be inactive")
		}
	})

	t.Run("ByText", func(t *testing.T) {
		q, err := repo.QuestionByText(ctx, "Question 2?")
		if err != nil {
			t.Fatalf("QuestionByText failed: %v", err)
		}
		if q.ID != "q2" {
			t.Errorf("got %q, want q2", q.ID)
		}
		if _, err := repo.QuestionByText(ctx, "Unknown?"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdatePreservesOrder", func(t *testing.T) {
		if err := repo.PutQuestion(ctx, &storage.Question{ID: "q1", Text: "Question 1 (reworded)?", Active: true}); err != nil {
			t.Fatalf("PutQuestion update failed: %v", err)
		}
		all, _ := repo.ListQuestions(ctx, false, 0)
		if all[0].ID != "q1" || all[0].Text != "Question 1 (reworded)?" {
			t.Errorf("update moved or lost q1: %+v", all[0])
		}
	})

	t.Run("DuplicateText", func(t *testing.T) {
		err := repo.PutQuestion(ctx, &storage.Question{ID: "q9", Text: "Question 2?"})
		if !errors.Is(err, storage.ErrQuestionTextTaken) {
			t.Errorf("got %v, want ErrQuestionTextTaken", err)
		}
	})
}

func TestMemoryBindings(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		repo.PutQuestion(ctx, &storage.Question{ID: fmt.Sprintf("q%d", i), Text: fmt.Sprintf("Q%d?", i), Active: true})
	}

	batch := []storage.AnswerBinding{
		{AccountID: "acct-1", QuestionID: "q2", AnswerHash: "h2"},
		{AccountID: "acct-1", QuestionID: "q1", AnswerHash: "h1"},
	}

	t.Run("ReplaceAndGet", func(t *testing.T) {
		if has, _ := repo.HasBindings(ctx, "acct-1"); has {
			t.Error("expected no bindings before setup")
		}
		if err := repo.ReplaceBindings(ctx, "acct-1", batch); err != nil {
			t.Fatalf("ReplaceBindings failed: %v", err)
		}
		got, err := repo.BindingsByAccount(ctx, "acct-1")
		if err != nil {
			t.Fatalf("BindingsByAccount failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d bindings, want 2", len(got))
		}
		// Returned in question insertion order, not batch order.
		if got[0].QuestionID != "q1" || got[1].QuestionID != "q2" {
			t.Errorf("bindings out of order: %q, %q", got[0].QuestionID, got[1].QuestionID)
		}
		if has, _ := repo.HasBindings(ctx, "acct-1"); !has {
			t.Error("HasBindings should report true after setup")
		}
	})

	t.Run("RejectedBatchLeavesPriorSet", func(t *testing.T) {
		bad := []storage.AnswerBinding{
			{AccountID: "acct-1", QuestionID: "q3", AnswerHash: "h3"},
			{AccountID: "acct-1", QuestionID: "q3", AnswerHash: "h3b"},
		}
		err := repo.ReplaceBindings(ctx, "acct-1", bad)
		if !errors.Is(err, storage.ErrDuplicateBinding) {
			t.Fatalf("got %v, want ErrDuplicateBinding", err)
		}
		got, _ := repo.BindingsByAccount(ctx, "acct-1")
		if len(got) != 2 || got[0].AnswerHash != "h1" {
			t.Errorf("prior bindings were disturbed by rejected batch: %+v", got)
		}
	})

	t.Run("ReplaceWithNewSet", func(t *testing.T) {
		next := []storage.AnswerBinding{{AccountID: "acct-1", QuestionID: "q3", AnswerHash: "h3"}}
		if err := repo.ReplaceBindings(ctx, "acct-1", next); err != nil {
			t.Fatalf("ReplaceBindings failed: %v", err)
		}
		got, _ := repo.BindingsByAccount(ctx, "acct-1")
		if len(got) != 1 || got[0].QuestionID != "q3" {
			t.Errorf("replacement did not take effect: %+v", got)
		}
	})

	t.Run("EmptyBatchClears", func(t *testing.T) {
		if err := repo.ReplaceBindings(ctx, "acct-1", nil); err != nil {
			t.Fatalf("ReplaceBindings failed: %v", err)
		}
		if has, _ := repo.HasBindings(ctx, "acct-1"); has {
			t.Error("expected bindings cleared")
		}
	})
}
