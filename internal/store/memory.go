package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/dialogue"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
)

var oauthStateTTL = 10 * time.Minute

type oauthState struct {
	sessionID string
	createdAt time.Time
}

type revisionFloor struct {
	revision int64
	at       time.Time
}

// MemoryStore keeps per-browser-session state: the open conversation, the
// signed-in user and any OAuth state in flight.
type MemoryStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	sessions map[string]*dialogue.Session
	// Last request that touched each conversation
	seenBySession map[string]time.Time
	// Revision reached by the last retired conversation; the next one
	// continues from there
	floorBySession map[string]revisionFloor
	// Signed-in user per session
	userBySession map[string]identity.User
	// OAuth state mapping per session (for CSRF protection)
	oauthStateBySession map[string]string
	// Reverse mapping: state -> session to resolve callbacks
	sessionByOAuthState map[string]oauthState
}

// NewMemoryStore evicts conversations idle for longer than ttl; zero keeps
// them until discarded.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:                 ttl,
		now:                 time.Now,
		sessions:            make(map[string]*dialogue.Session),
		seenBySession:       make(map[string]time.Time),
		floorBySession:      make(map[string]revisionFloor),
		userBySession:       make(map[string]identity.User),
		oauthStateBySession: make(map[string]string),
		sessionByOAuthState: make(map[string]oauthState),
	}
}

// Conversation returns the session's conversation, starting a new one if
// there is none yet.
func (m *MemoryStore) Conversation(sessionID string) *dialogue.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seenBySession[sessionID] = m.now()
	if s, ok := m.sessions[sessionID]; ok {
		if !s.Closed() {
			return s
		}
		m.retireLocked(sessionID, s)
	}
	s := dialogue.NewSessionAfter(sessionID, m.floorBySession[sessionID].revision)
	delete(m.floorBySession, sessionID)
	m.sessions[sessionID] = s
	return s
}

// retireLocked forgets the conversation but keeps its revision as the floor
// for the next one.
func (m *MemoryStore) retireLocked(sessionID string, s *dialogue.Session) {
	if r := s.Revision(); r > m.floorBySession[sessionID].revision {
		m.floorBySession[sessionID] = revisionFloor{revision: r, at: m.now()}
	}
	delete(m.sessions, sessionID)
	delete(m.seenBySession, sessionID)
}

// LookupConversation does not create.
func (m *MemoryStore) LookupConversation(sessionID string) (*dialogue.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.Closed() {
		return nil, false
	}
	return s, true
}

// DiscardConversation closes the conversation so pending replies are dropped.
func (m *MemoryStore) DiscardConversation(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		m.retireLocked(sessionID, s)
	}
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Rotate moves a browser session to a new id: the old conversation is
// closed, its user and OAuth state are dropped, and revisions under the new
// id continue past the old ones.
func (m *MemoryStore) Rotate(oldID, newID string) {
	m.mu.Lock()
	s, ok := m.sessions[oldID]
	if ok {
		m.retireLocked(oldID, s)
	}
	if f, found := m.floorBySession[oldID]; found {
		delete(m.floorBySession, oldID)
		f.at = m.now()
		m.floorBySession[newID] = f
	}
	delete(m.userBySession, oldID)
	if st, found := m.oauthStateBySession[oldID]; found {
		delete(m.sessionByOAuthState, st)
		delete(m.oauthStateBySession, oldID)
	}
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Sweep closes idle conversations and expired OAuth states. It returns the
// number of conversations evicted.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	var expired []*dialogue.Session

	m.mu.Lock()
	if m.ttl > 0 {
		for id, s := range m.sessions {
			last := s.LastActive()
			if seen := m.seenBySession[id]; seen.After(last) {
				last = seen
			}
			if now.Sub(last) > m.ttl {
				expired = append(expired, s)
				m.retireLocked(id, s)
			}
		}
		for id, f := range m.floorBySession {
			if _, live := m.sessions[id]; !live && now.Sub(f.at) > m.ttl {
				delete(m.floorBySession, id)
			}
		}
	}
	for state, st := range m.sessionByOAuthState {
		if now.Sub(st.createdAt) > oauthStateTTL {
			delete(m.sessionByOAuthState, state)
			if m.oauthStateBySession[st.sessionID] == state {
				delete(m.oauthStateBySession, st.sessionID)
			}
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes every remaining
// conversation.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("evicted idle conversations", "count", n)
			}
		}
	}
}

func (m *MemoryStore) closeAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*dialogue.Session)
	m.seenBySession = make(map[string]time.Time)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// User helpers

func (m *MemoryStore) SetUser(sessionID string, u identity.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userBySession[sessionID] = u
}

// User returns nil for anonymous sessions.
func (m *MemoryStore) User(sessionID string) *identity.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.userBySession[sessionID]
	if !ok {
		return nil
	}
	return &u
}

func (m *MemoryStore) ClearUser(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userBySession, sessionID)
}

// OAuth helpers

func (m *MemoryStore) SetOAuthState(sessionID, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.oauthStateBySession[sessionID]; ok {
		delete(m.sessionByOAuthState, old)
	}
	m.oauthStateBySession[sessionID] = state
	m.sessionByOAuthState[state] = oauthState{sessionID: sessionID, createdAt: m.now()}
}

func (m *MemoryStore) GetOAuthState(sessionID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.oauthStateBySession[sessionID]
}

func (m *MemoryStore) ClearOAuthState(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.oauthStateBySession[sessionID]; ok {
		delete(m.sessionByOAuthState, st)
		delete(m.oauthStateBySession, sessionID)
	}
}

// GetSessionByOAuthState returns "" for unknown or expired states.
func (m *MemoryStore) GetSessionByOAuthState(state string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessionByOAuthState[state]
	if !ok || m.now().Sub(st.createdAt) > oauthStateTTL {
		return ""
	}
	return st.sessionID
}

// MemoryCatalog is a process-local catalog, seeded at construction.
type MemoryCatalog struct {
	mu       sync.RWMutex
	packages map[int]catalog.Package
}

func NewMemoryCatalog(seed []catalog.Package) *MemoryCatalog {
	c := &MemoryCatalog{packages: make(map[int]catalog.Package, len(seed))}
	for _, p := range seed {
		c.packages[p.ID] = p.Clone()
	}
	return c
}

func (c *MemoryCatalog) List(ctx context.Context) ([]catalog.Package, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedPackages(c.packages), nil
}

func (c *MemoryCatalog) Get(ctx context.Context, id int) (catalog.Package, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.packages[id]
	if !ok {
		return catalog.Package{}, catalog.ErrNotFound
	}
	return p.Clone(), nil
}

func (c *MemoryCatalog) Create(ctx context.Context, p catalog.Package) (catalog.Package, error) {
	if err := p.Validate(); err != nil {
		return catalog.Package{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p.ID = catalog.NextID(sortedPackages(c.packages))
	c.packages[p.ID] = p.Clone()
	return p.Clone(), nil
}

func (c *MemoryCatalog) Update(ctx context.Context, id int, patch catalog.Patch) (catalog.Package, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.packages[id]
	if !ok {
		return catalog.Package{}, catalog.ErrNotFound
	}
	next := patch.Apply(cur)
	if err := next.Validate(); err != nil {
		return catalog.Package{}, err
	}
	c.packages[id] = next.Clone()
	return next.Clone(), nil
}

func (c *MemoryCatalog) Delete(ctx context.Context, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.packages[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(c.packages, id)
	return nil
}

func sortedPackages(m map[int]catalog.Package) []catalog.Package {
	out := make([]catalog.Package, 0, len(m))
	for _, p := range m {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
