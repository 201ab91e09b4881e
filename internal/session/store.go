package session

import (
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"adaptive-meal-planner/internal/engine"
)

// Store keeps live sessions in memory for the life of the process. Sessions
// idle for longer than the TTL, or pushed out by capacity, are closed.
type Store struct {
	gateway    engine.Gateway
	engineOpts []engine.Option
	sessions   *expirable.LRU[string, *Session]
}

// NewStore creates a store holding at most capacity sessions. A ttl of zero
// disables idle expiry.
func NewStore(capacity int, ttl time.Duration, gateway engine.Gateway, opts ...engine.Option) *Store {
	onEvict := func(id string, s *Session) {
		s.Close()
		log.Printf("session %s closed", id)
	}
	return &Store{
		gateway:    gateway,
		engineOpts: opts,
		sessions:   expirable.NewLRU[string, *Session](capacity, onEvict, ttl),
	}
}

// Create starts a new session under a random ID.
func (s *Store) Create() *Session {
	sess := New(uuid.NewString(), s.gateway, s.engineOpts...)
	s.sessions.Add(sess.ID, sess)
	return sess
}

// Open returns the session under id, starting one if none is live.
// Surfaces with their own user identity derive id from it.
func (s *Store) Open(id string) *Session {
	if sess, err := s.Get(id); err == nil {
		return sess
	}
	sess := New(id, s.gateway, s.engineOpts...)
	s.sessions.Add(id, sess)
	return sess
}

// Get returns a live session and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok || sess.Closed() {
		return nil, ErrSessionNotFound
	}
	s.sessions.Add(id, sess)
	sess.touch()
	return sess, nil
}

// Delete closes and forgets the session.
func (s *Store) Delete(id string) error {
	if !s.sessions.Remove(id) {
		return ErrSessionNotFound
	}
	return nil
}

func (s *Store) Len() int {
	return s.sessions.Len()
}

// ChatSessionID maps an external chat identity to a stable session ID.
func ChatSessionID(namespace string, chatID int64) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+strconv.FormatInt(chatID, 10))).String()
}
