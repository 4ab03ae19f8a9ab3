// internal/game/store.go
package game

import "sync"

// SessionStore maps lobby names to their running session. Its lock only covers the
// map. store.mu may be taken under a session lock, never the reverse.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*lobbySession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*lobbySession)}
}

func (s *SessionStore) Get(lobby string) (*lobbySession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[lobby]
	return sess, ok
}

// Install registers a new session unless the lobby already runs an unfinished game.
// A finished session still waiting for teardown is replaced.
func (s *SessionStore) Install(sess *lobbySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.lobby]; ok && !cur.finished.Load() {
		return ErrGameInProgress
	}
	s.sessions[sess.lobby] = sess
	return nil
}

// RemoveIf deletes the lobby entry only while it still points at sess.
func (s *SessionStore) RemoveIf(sess *lobbySession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.lobby]; ok && cur == sess {
		delete(s.sessions, sess.lobby)
		return true
	}
	return false
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) All() []*lobbySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*lobbySession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}
