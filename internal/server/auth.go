package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
	"github.com/mejiasimon/chatbotTravelAgency/internal/types"
)

// POST /api/auth/login {email, password}
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, err := s.directory.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			s.writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		slog.Error("authentication failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	sid := s.signIn(w, strings.TrimSpace(getSessionID(r)), u)
	writeJSON(w, http.StatusOK, types.AuthResponse{Authenticated: true, User: &u, SessionID: sid})
}

// POST /api/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sid := getSessionID(r); sid != "" {
		s.store.ClearUser(sid)
		s.store.ClearOAuthState(sid)
		s.store.DiscardConversation(sid)
	}
	ClearSessionCookie(w, s.cfg.CookieSecure)
	writeJSON(w, http.StatusOK, types.AuthResponse{})
}

// GET /api/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sid := getSessionID(r)
	if sid == "" {
		writeJSON(w, http.StatusOK, types.AuthResponse{})
		return
	}
	u := s.store.User(sid)
	writeJSON(w, http.StatusOK, types.AuthResponse{Authenticated: u != nil, User: u})
}

// GET /api/auth/oauth
// Initiates the OAuth flow and returns { url } to redirect the browser
func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		s.writeError(w, http.StatusBadRequest, "oauth sign-in not configured")
		return
	}
	sid := s.getOrCreateSessionID(r, w)
	state := randomState()
	s.store.SetOAuthState(sid, state)
	writeJSON(w, http.StatusOK, types.OAuthStartResponse{URL: s.oauthCfg.AuthCodeURL(state), SessionID: sid})
}

// GET /api/auth/callback?code=...&state=...
// Exchanges the code, reads the provider profile and signs the session in.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		s.writeError(w, http.StatusBadRequest, "oauth sign-in not configured")
		return
	}
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		s.writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}
	sid := s.store.GetSessionByOAuthState(state)
	if sid == "" || s.store.GetOAuthState(sid) != state {
		s.writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, s.httpClient)
	tok, err := s.oauthCfg.Exchange(ctx, code)
	if err != nil {
		slog.Warn("oauth token exchange failed", "session", sid, "error", err)
		s.writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	profile, err := s.fetchProfile(ctx, tok)
	if err != nil {
		slog.Warn("oauth userinfo failed", "session", sid, "error", err)
		s.writeError(w, http.StatusBadGateway, "failed to fetch user profile")
		return
	}

	// The new session cookie is shared by the popup and the main window
	s.signIn(w, sid, s.userFromProfile(profile))
	http.Redirect(w, r, fmt.Sprintf("%s?auth=success", s.cfg.FrontendURL), http.StatusFound)
}

// signIn moves the browser to a fresh session id carrying the user. The old
// id, its conversation and its OAuth state are dropped.
func (s *Server) signIn(w http.ResponseWriter, oldSID string, u identity.User) string {
	sid := newSessionID()
	if oldSID != "" {
		s.store.Rotate(oldSID, sid)
	}
	s.store.SetUser(sid, u)
	SetSessionCookie(w, sid, s.cfg.CookieSecure)
	w.Header().Set("X-Session-Id", sid)
	slog.Info("user signed in", "session", sid, "role", u.Role)
	return sid
}

type oauthProfile struct {
	Subject string `json:"sub"`
	ID      any    `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

func (s *Server) fetchProfile(ctx context.Context, tok *oauth2.Token) (oauthProfile, error) {
	var p oauthProfile
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.OAuthUserInfoURL, nil)
	if err != nil {
		return p, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.oauthCfg.Client(ctx, tok).Do(req)
	if err != nil {
		return p, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p, fmt.Errorf("userinfo returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return p, fmt.Errorf("decode userinfo: %w", err)
	}
	if strings.TrimSpace(p.Email) == "" {
		return p, errors.New("userinfo has no email")
	}
	return p, nil
}

func (s *Server) userFromProfile(p oauthProfile) identity.User {
	email := strings.TrimSpace(p.Email)
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	id := p.Subject
	if id == "" && p.ID != nil {
		id = fmt.Sprint(p.ID)
	}
	if id == "" {
		id = email
	}
	role := identity.RoleRegular
	for _, admin := range s.cfg.AdminEmails {
		if strings.EqualFold(admin, email) {
			role = identity.RoleAdmin
			break
		}
	}
	return identity.User{ID: id, Name: name, Email: email, Role: role}
}

func randomState() string {
	var b [24]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
