package api

import (
	"encoding/json"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const sessionCleanupInterval = 5 * time.Minute

var bucketSessions = []byte("auth_sessions")

// BoltSessionStore stores login sessions in a bbolt bucket so that they
// survive server restarts. Session records carry no secrets beyond the
// bearer token used as the key, which the client holds in a cookie.
type BoltSessionStore struct {
	db          *bbolt.DB
	idleTimeout time.Duration
	stopOnce    sync.Once
	stopCh      chan struct{}
}

var _ SessionStore = (*BoltSessionStore)(nil)

// NewBoltSessionStore creates a session store backed by the given database.
// idleTimeout of 0 disables idle timeout checking.
func NewBoltSessionStore(db *bbolt.DB, idleTimeout time.Duration) (*BoltSessionStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		return nil, err
	}
	s := &BoltSessionStore{
		db:          db,
		idleTimeout: idleTimeout,
		stopCh:      make(chan struct{}),
	}
	go s.cleanupLoop()
	return s, nil
}

// Close stops the background cleanup goroutine. It does not close the
// underlying database, which the store does not own.
func (s *BoltSessionStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *BoltSessionStore) Get(token string) (AuthSession, bool) {
	var raw []byte
	s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketSessions).Get([]byte(token)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return AuthSession{}, false
	}
	var session AuthSession
	if err := json.Unmarshal(raw, &session); err != nil {
		s.Delete(token)
		return AuthSession{}, false
	}
	if time.Now().After(session.ExpiresAt) {
		s.Delete(token)
		return AuthSession{}, false
	}
	if s.idleTimeout > 0 && time.Since(session.LastAccessedAt) > s.idleTimeout {
		s.Delete(token)
		return AuthSession{}, false
	}
	return session, true
}

func (s *BoltSessionStore) Put(token string, session AuthSession) {
	data, err := json.Marshal(session)
	if err != nil {
		return
	}
	s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(token), data)
	})
}

func (s *BoltSessionStore) Delete(token string) {
	s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(token))
	})
}

// cleanupLoop periodically removes expired sessions from storage.
func (s *BoltSessionStore) cleanupLoop() {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *BoltSessionStore) sweepExpired() {
	now := time.Now()
	s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		c := b.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var session AuthSession
			if err := json.Unmarshal(v, &session); err != nil {
				// Corrupt entry, remove it.
				stale = append(stale, append([]byte(nil), k...))
				continue
			}
			expired := now.After(session.ExpiresAt)
			idle := s.idleTimeout > 0 && now.Sub(session.LastAccessedAt) > s.idleTimeout
			if expired || idle {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
