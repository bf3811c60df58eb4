// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jcarver/latchkey/storage"
)

var (
	bucketAccounts      = []byte("accounts")
	bucketUsernames     = []byte("usernames")
	bucketQuestions     = []byte("questions")
	bucketQuestionOrder = []byte("question_order")
	bucketQuestionTexts = []byte("question_texts")
	bucketBindings      = []byte("bindings")
)

// Store implements storage.Repository backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketAccounts, bucketUsernames, bucketQuestions,
			bucketQuestionOrder, bucketQuestionTexts, bucketBindings,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("initializing buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateAccount(_ context.Context, account *storage.Account) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		usernames := tx.Bucket(bucketUsernames)
		if usernames.Get([]byte(account.Username)) != nil {
			return storage.ErrUsernameTaken
		}
		data, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("encoding account: %w", err)
		}
		if err := tx.Bucket(bucketAccounts).Put([]byte(account.ID), data); err != nil {
			return err
		}
		return usernames.Put([]byte(account.Username), []byte(account.ID))
	})
}

func (s *Store) AccountByID(_ context.Context, id string) (*storage.Account, error) {
	var account *storage.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		account, err = getAccount(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func getAccount(tx *bbolt.Tx, id string) (*storage.Account, error) {
	data := tx.Bucket(bucketAccounts).Get([]byte(id))
	if data == nil {
		return nil, storage.ErrNotFound
	}
	var account storage.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("decoding account: %w", err)
	}
	return &account, nil
}

func (s *Store) AccountByUsername(_ context.Context, username string) (*storage.Account, error) {
	var account *storage.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketUsernames).Get([]byte(username))
		if id == nil {
			return storage.ErrNotFound
		}
		var err error
		account, err = getAccount(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Store) UpdateAccountPassword(_ context.Context, id string, passwordHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		account, err := getAccount(tx, id)
		if err != nil {
			return err
		}
		account.PasswordHash = passwordHash
		data, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("encoding account: %w", err)
		}
		return tx.Bucket(bucketAccounts).Put([]byte(id), data)
	})
}

func (s *Store) PutQuestion(_ context.Context, question *storage.Question) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		questions := tx.Bucket(bucketQuestions)
		texts := tx.Bucket(bucketQuestionTexts)

		if owner := texts.Get([]byte(question.Text)); owner != nil && string(owner) != question.ID {
			return storage.ErrQuestionTextTaken
		}

		if existing := questions.Get([]byte(question.ID)); existing != nil {
			var old storage.Question
			if err := json.Unmarshal(existing, &old); err == nil && old.Text != question.Text {
				if err := texts.Delete([]byte(old.Text)); err != nil {
					return err
				}
			}
		} else {
			// New question: record its position in the insertion order.
			order := tx.Bucket(bucketQuestionOrder)
			seq, err := order.NextSequence()
			if err != nil {
				return err
			}
			if err := order.Put(seqKey(seq), []byte(question.ID)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(question)
		if err != nil {
			return fmt.Errorf("encoding question: %w", err)
		}
		if err := questions.Put([]byte(question.ID), data); err != nil {
			return err
		}
		return texts.Put([]byte(question.Text), []byte(question.ID))
	})
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func (s *Store) QuestionByID(_ context.Context, id string) (*storage.Question, error) {
	var question *storage.Question
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		question, err = getQuestion(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

func getQuestion(tx *bbolt.Tx, id string) (*storage.Question, error) {
	data := tx.Bucket(bucketQuestions).Get([]byte(id))
	if data == nil {
		return nil, storage.ErrNotFound
	}
	var question storage.Question
	if err := json.Unmarshal(data, &question); err != nil {
		return nil, fmt.Errorf("decoding question: %w", err)
	}
	return &question, nil
}

func (s *Store) QuestionByText(_ context.Context, text string) (*storage.Question, error) {
	var question *storage.Question
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketQuestionTexts).Get([]byte(text))
		if id == nil {
			return storage.ErrNotFound
		}
		var err error
		question, err = getQuestion(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

func (s *Store) ListQuestions(_ context.Context, activeOnly bool, limit int) ([]storage.Question, error) {
	var out []storage.Question
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketQuestionOrder).Cursor()
		for k, id := c.First(); k != nil; k, id = c.Next() {
			question, err := getQuestion(tx, string(id))
			if err != nil {
				return err
			}
			if activeOnly && !question.Active {
				continue
			}
			out = append(out, *question)
			if limit > 0 && len(out) == limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ReplaceBindings(_ context.Context, accountID string, bindings []storage.AnswerBinding) error {
	// A single Update transaction makes the delete + insert all-or-nothing:
	// any error rolls the whole replacement back.
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := storage.ValidateBindingBatch(bindings); err != nil {
			return err
		}
		root := tx.Bucket(bucketBindings)
		if root.Bucket([]byte(accountID)) != nil {
			if err := root.DeleteBucket([]byte(accountID)); err != nil {
				return err
			}
		}
		if len(bindings) == 0 {
			return nil
		}
		b, err := root.CreateBucket([]byte(accountID))
		if err != nil {
			return err
		}
		for _, binding := range bindings {
			data, err := json.Marshal(binding)
			if err != nil {
				return fmt.Errorf("encoding binding: %w", err)
			}
			if err := b.Put([]byte(binding.QuestionID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) BindingsByAccount(_ context.Context, accountID string) ([]storage.AnswerBinding, error) {
	out := []storage.AnswerBinding{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBindings).Bucket([]byte(accountID))
		if b == nil {
			return nil
		}
		// Walk the question insertion order so challenges render in the
		// same order users saw at setup.
		c := tx.Bucket(bucketQuestionOrder).Cursor()
		for k, id := c.First(); k != nil; k, id = c.Next() {
			data := b.Get(id)
			if data == nil {
				continue
			}
			var binding storage.AnswerBinding
			if err := json.Unmarshal(data, &binding); err != nil {
				return fmt.Errorf("decoding binding: %w", err)
			}
			out = append(out, binding)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) HasBindings(_ context.Context, accountID string) (bool, error) {
	var has bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBindings).Bucket([]byte(accountID))
		if b == nil {
			return nil
		}
		k, _ := b.Cursor().First()
		has = k != nil
		return nil
	})
	return has, err
}
