package routebuilder

import (
	"context"
	"sync"
	"testing"
)

func TestSessionsLifecycle(t *testing.T) {
	s := newSessions()

	if s.inProgress(1) {
		t.Error("fresh store reports a session")
	}

	s.start(1, StateNamingRoute)
	if !s.inProgress(1) {
		t.Error("started session not visible")
	}
	sess, ok := s.get(1)
	if !ok || sess.state != StateNamingRoute {
		t.Fatalf("get = %v, %v", sess, ok)
	}

	// Restarting replaces the session and drops the old draft.
	sess.draft.RouteName = "old"
	fresh := s.start(1, StateNamingRoute)
	if fresh == sess {
		t.Error("restart reused the previous session")
	}
	if fresh.draft.RouteName != "" {
		t.Error("restart kept the previous draft")
	}

	s.clear(1)
	if s.inProgress(1) {
		t.Error("cleared session still visible")
	}
}

func TestConcurrentHandlesSerializePerSession(t *testing.T) {
	m := newTestMachine(nil, nil)
	const userID int64 = 42

	if _, err := m.Start(context.Background(), userID, true); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Concurrent events must queue, not interleave: one wins the naming
	// step, one the description, the rest are re-prompted in place.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Handle(context.Background(), userID, TextEvent{Content: "Имя маршрута"})
		}()
	}
	wg.Wait()

	st := m.StateOf(userID)
	if st != StateAwaitingPointAction {
		t.Errorf("state = %s, want %s", st, StateAwaitingPointAction)
	}
}
