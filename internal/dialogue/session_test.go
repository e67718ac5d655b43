package dialogue

import (
	"testing"
	"time"
)

func TestAppendAssignsIDsAndRevisions(t *testing.T) {
	s := NewSession("s1")
	s.mu.Lock()
	a := s.appendLocked(visitorTurn("one"))
	b := s.appendLocked(assistantText("two"))
	s.mu.Unlock()

	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids = %d, %d", a.ID, b.ID)
	}
	if a.Revision != 1 || b.Revision != 2 {
		t.Fatalf("revisions = %d, %d", a.Revision, b.Revision)
	}
	if got := s.Since(1); len(got.Turns) != 1 || got.Turns[0].Text != "two" || got.Revision != 2 {
		t.Fatalf("Since(1) = %+v", got)
	}
	if got := s.Since(2); len(got.Turns) != 0 {
		t.Fatalf("Since(2) returned %d turns", len(got.Turns))
	}
}

func TestSessionAfterContinuesRevisions(t *testing.T) {
	s := NewSessionAfter("s1", 5)
	if s.Revision() != 5 {
		t.Fatalf("revision = %d", s.Revision())
	}
	s.mu.Lock()
	turn := s.appendLocked(assistantText("hello again"))
	s.mu.Unlock()
	if turn.ID != 1 || turn.Revision != 6 {
		t.Fatalf("turn = %+v", turn)
	}
	if got := s.Since(5); len(got.Turns) != 1 {
		t.Fatalf("cursor from the previous conversation got %d turns", len(got.Turns))
	}
}

func TestSinceAheadOfSessionReturnsEverything(t *testing.T) {
	s := NewSession("s1")
	s.mu.Lock()
	s.appendLocked(assistantText("one"))
	s.appendLocked(visitorTurn("two"))
	s.mu.Unlock()
	got := s.Since(9)
	if len(got.Turns) != 2 || got.Revision != 2 {
		t.Fatalf("Since(9) = %+v", got)
	}
}

func TestChangedIsClosedOnMutation(t *testing.T) {
	s := NewSession("s1")
	ch := s.Changed()
	select {
	case <-ch:
		t.Fatal("changed before any mutation")
	default:
	}
	s.mu.Lock()
	s.appendLocked(visitorTurn("hi"))
	s.mu.Unlock()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("changed channel not closed")
	}
}

func TestResolveUnknownCorrelation(t *testing.T) {
	s := NewSession("s1")
	s.mu.Lock()
	s.appendLocked(Turn{Text: "thinking", Sender: SenderAssistant, Presentation: PresentationPending, CorrelationID: "a"})
	s.state.AnswerPending = true
	s.mu.Unlock()

	if s.resolve("b", "text", nil) {
		t.Fatal("resolved an unknown correlation id")
	}
	if !s.resolve("a", "done", []string{"More"}) {
		t.Fatal("failed to resolve pending turn")
	}
	if s.resolve("a", "again", nil) {
		t.Fatal("resolved the same turn twice")
	}
	turn := s.Snapshot().Turns[0]
	if turn.Text != "done" || turn.Presentation != PresentationOptions || len(turn.Options) != 1 {
		t.Fatalf("turn = %+v", turn)
	}
	if s.State().AnswerPending {
		t.Fatal("pending flag not cleared")
	}
}

func TestCloseCancelsTimersAndDropsResults(t *testing.T) {
	s := NewSession("s1")
	s.mu.Lock()
	s.deliverLocked(time.Hour, assistantText("late"))
	s.appendLocked(Turn{Sender: SenderAssistant, Presentation: PresentationPending, CorrelationID: "c"})
	s.mu.Unlock()

	s.Close()
	s.Close()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on a stopped timer")
	}

	if !s.Closed() {
		t.Fatal("session not closed")
	}
	if s.resolve("c", "late answer", nil) {
		t.Fatal("closed session accepted a resolution")
	}
	if s.Len() != 1 {
		t.Fatalf("transcript length = %d", s.Len())
	}
}

func TestSnapshotStateIsACopy(t *testing.T) {
	s := NewSession("s1")
	id := 3
	s.mu.Lock()
	s.state.SelectedPackageID = &id
	s.mu.Unlock()

	st := s.State()
	*st.SelectedPackageID = 9
	if got := *s.State().SelectedPackageID; got != 3 {
		t.Fatalf("state leaked: %d", got)
	}
}
