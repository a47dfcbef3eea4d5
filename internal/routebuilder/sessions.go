package routebuilder

import "sync"

// session holds one user's conversation state and draft. The mutex
// serializes transitions so a second message queues instead of
// interleaving with an in-flight one.
type session struct {
	mu    sync.Mutex
	state State
	draft Draft
}

// sessions maps Telegram user IDs to active route builder sessions.
type sessions struct {
	mu sync.RWMutex
	m  map[int64]*session
}

func newSessions() *sessions {
	return &sessions{m: make(map[int64]*session)}
}

// start replaces any previous session with a fresh one in the given state.
func (s *sessions) start(userID int64, st State) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &session{state: st}
	s.m[userID] = sess
	return sess
}

// get returns the active session for a user, if any.
func (s *sessions) get(userID int64) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[userID]
	return sess, ok
}

// clear discards the session and its draft.
func (s *sessions) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}

// inProgress reports whether the user has an active session.
func (s *sessions) inProgress(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[userID]
	return ok
}
