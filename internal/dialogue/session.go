package dialogue

import (
	"sync"
	"time"
)

// Session owns one visitor's transcript and flags. All mutation happens
// under mu; delayed replies and pending answers are tied to the session's
// lifetime, so once Close returns nothing can touch the transcript again.
type Session struct {
	id string

	mu         sync.Mutex
	transcript []Turn
	state      State
	nextID     int
	revision   int64
	closed     bool
	changed    chan struct{}
	timers     map[*time.Timer]struct{}
	lastActive time.Time

	// wg tracks timers and generation goroutines still in flight.
	wg sync.WaitGroup
}

// Snapshot is a consistent copy of a session at one revision.
type Snapshot struct {
	SessionID string `json:"sessionId"`
	Revision  int64  `json:"revision"`
	Turns     []Turn `json:"turns"`
	State     State  `json:"state"`
}

func NewSession(id string) *Session {
	return NewSessionAfter(id, 0)
}

// NewSessionAfter starts a session whose revisions continue past revision,
// so cursors held from an earlier conversation stay valid.
func NewSessionAfter(id string, revision int64) *Session {
	return &Session{
		id:         id,
		revision:   revision,
		changed:    make(chan struct{}),
		timers:     make(map[*time.Timer]struct{}),
		lastActive: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// Snapshot returns every turn.
func (s *Session) Snapshot() Snapshot {
	return s.Since(0)
}

// Since returns the turns appended or changed after the given revision. A
// revision ahead of the session belongs to another conversation and yields
// every turn.
func (s *Session) Since(revision int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if revision > s.revision {
		revision = 0
	}
	turns := make([]Turn, 0, len(s.transcript))
	for _, t := range s.transcript {
		if t.Revision > revision {
			turns = append(turns, t)
		}
	}
	return Snapshot{SessionID: s.id, Revision: s.revision, Turns: turns, State: s.stateLocked()}
}

// Revision is the revision of the latest change.
func (s *Session) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// State returns a copy of the flags.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Len is the transcript length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// Changed returns a channel that is closed on the next mutation.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops pending timers. Generation already in flight finishes, but its
// result is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
	}
	s.timers = nil
	s.notifyLocked()
}

// Wait blocks until every scheduled reply and generation has finished or
// been cancelled.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) stateLocked() State {
	st := s.state
	if s.state.SelectedPackageID != nil {
		id := *s.state.SelectedPackageID
		st.SelectedPackageID = &id
	}
	return st
}

func (s *Session) touchLocked() {
	s.lastActive = time.Now()
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) appendLocked(t Turn) Turn {
	s.nextID++
	s.revision++
	t.ID = s.nextID
	t.Revision = s.revision
	s.transcript = append(s.transcript, t)
	s.notifyLocked()
	return t
}

// afterLocked runs fn with the session locked once d elapses, unless the
// session is closed by then.
func (s *Session) afterLocked(d time.Duration, fn func()) {
	if s.closed {
		return
	}
	s.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		defer s.wg.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.timers, t)
		if s.closed {
			return
		}
		fn()
	})
	s.timers[t] = struct{}{}
}

// deliverLocked appends an assistant turn after d.
func (s *Session) deliverLocked(d time.Duration, t Turn) {
	s.afterLocked(d, func() { s.appendLocked(t) })
}

// goLocked runs fn in the background without the lock held.
func (s *Session) goLocked(fn func()) {
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// resolve replaces the pending turn carrying correlationID, wherever it sits
// in the transcript. It reports false if the session closed or the turn was
// already resolved.
func (s *Session) resolve(correlationID, text string, options []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	found := false
	pending := false
	for i := range s.transcript {
		t := &s.transcript[i]
		if t.Presentation != PresentationPending {
			continue
		}
		if !found && t.CorrelationID == correlationID {
			s.revision++
			t.Text = text
			t.Presentation = PresentationPlain
			if len(options) > 0 {
				t.Presentation = PresentationOptions
				t.Options = cloneStrings(options)
			}
			t.Revision = s.revision
			found = true
			continue
		}
		pending = true
	}
	if !found {
		return false
	}
	s.state.AnswerPending = pending
	s.notifyLocked()
	return true
}
