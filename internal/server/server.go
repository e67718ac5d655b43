package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/config"
	"github.com/mejiasimon/chatbotTravelAgency/internal/dialogue"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
	"github.com/mejiasimon/chatbotTravelAgency/internal/store"
	"github.com/mejiasimon/chatbotTravelAgency/internal/types"
)

const streamKeepAlive = 15 * time.Second

// Deps are the components the HTTP layer serves.
type Deps struct {
	Engine    *dialogue.Engine
	Catalog   catalog.Store
	Sessions  *store.MemoryStore
	Directory *identity.Directory
	// HTTPClient is used for the OAuth exchange and userinfo call.
	HTTPClient *http.Client
}

type Server struct {
	router     *chi.Mux
	store      *store.MemoryStore
	engine     *dialogue.Engine
	catalog    catalog.Store
	directory  *identity.Directory
	cfg        config.Config
	oauthCfg   *oauth2.Config
	httpClient *http.Client
}

func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Engine == nil || deps.Catalog == nil || deps.Sessions == nil || deps.Directory == nil {
		return nil, errors.New("server: engine, catalog, sessions and directory are required")
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true, // Enable credentials for cookies
		MaxAge:           300,
	}))

	// OAuth2 config (handlers check OAuthEnabled before use)
	var oCfg *oauth2.Config
	if cfg.OAuthEnabled() {
		oCfg = &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       cfg.OAuthScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuthAuthURL,
				TokenURL: cfg.OAuthTokenURL,
			},
		}
	}

	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	s := &Server{
		router:     r,
		store:      deps.Sessions,
		engine:     deps.Engine,
		catalog:    deps.Catalog,
		directory:  deps.Directory,
		cfg:        cfg,
		oauthCfg:   oCfg,
		httpClient: client,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	// Conversation
	s.router.Post("/api/chat/open", s.handleChatOpen)
	s.router.Post("/api/chat/messages", s.handleChatMessage)
	s.router.Post("/api/chat/options", s.handleChatOption)
	s.router.Post("/api/chat/packages/{id}", s.handleChatSelectPackage)
	s.router.Get("/api/chat/transcript", s.handleChatTranscript)
	s.router.Get("/api/chat/stream", s.handleChatStream)
	s.router.Delete("/api/chat", s.handleChatDiscard)
	// Sign-in
	s.router.Post("/api/auth/login", s.handleLogin)
	s.router.Post("/api/auth/logout", s.handleLogout)
	s.router.Get("/api/auth/me", s.handleMe)
	s.router.Get("/api/auth/oauth", s.handleOAuthStart)
	s.router.Get("/api/auth/callback", s.handleOAuthCallback)
	// Package catalog
	s.router.Get("/api/packages", s.handleListPackages)
	s.router.Get("/api/packages/{id}", s.handleGetPackage)
	s.router.Post("/api/packages", s.handleCreatePackage)
	s.router.Put("/api/packages/{id}", s.handleUpdatePackage)
	s.router.Delete("/api/packages/{id}", s.handleDeletePackage)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/chat/open
func (s *Server) handleChatOpen(w http.ResponseWriter, r *http.Request) {
	sid := s.getOrCreateSessionID(r, w)
	conv := s.store.Conversation(sid)
	s.engine.Open(conv, s.store.User(sid))
	writeJSON(w, http.StatusOK, types.NewChatResponse(conv.Snapshot()))
}

// POST /api/chat/messages {message}
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req types.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := s.getOrCreateSessionID(r, w)
	conv := s.store.Conversation(sid)
	before := conv.Snapshot().Revision
	s.engine.SubmitUtterance(r.Context(), conv, s.store.User(sid), req.Message)
	writeJSON(w, http.StatusOK, types.NewChatResponse(conv.Since(before)))
}

// POST /api/chat/options {option}
func (s *Server) handleChatOption(w http.ResponseWriter, r *http.Request) {
	var req types.OptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := s.getOrCreateSessionID(r, w)
	conv := s.store.Conversation(sid)
	before := conv.Snapshot().Revision
	out := s.engine.SubmitOption(r.Context(), conv, s.store.User(sid), req.Option)
	resp := types.NewChatResponse(conv.Since(before))
	resp.Navigate = out.Navigate
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/chat/packages/{id}
func (s *Server) handleChatSelectPackage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.packageID(w, r)
	if !ok {
		return
	}
	sid := s.getOrCreateSessionID(r, w)
	conv := s.store.Conversation(sid)
	before := conv.Snapshot().Revision
	s.engine.SelectPackage(r.Context(), conv, s.store.User(sid), id)
	writeJSON(w, http.StatusOK, types.NewChatResponse(conv.Since(before)))
}

// GET /api/chat/transcript?since=N
func (s *Server) handleChatTranscript(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid since revision")
		return
	}
	sid := s.getOrCreateSessionID(r, w)
	conv, ok := s.store.LookupConversation(sid)
	if !ok {
		writeJSON(w, http.StatusOK, types.NewChatResponse(dialogue.Snapshot{SessionID: sid}))
		return
	}
	writeJSON(w, http.StatusOK, types.NewChatResponse(conv.Since(since)))
}

// GET /api/chat/stream?since=N
// Server-sent events: one "turns" event per change, until the client leaves
// or the conversation is discarded.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	since, err := parseSince(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid since revision")
		return
	}
	sid := s.getOrCreateSessionID(r, w)
	conv := s.store.Conversation(sid)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		changed := conv.Changed()
		snap := conv.Since(since)
		if snap.Revision != since {
			if err := writeEvent(w, "turns", types.NewChatResponse(snap)); err != nil {
				slog.Debug("chat stream write failed", "session", sid, "error", err)
				return
			}
			flusher.Flush()
			since = snap.Revision
		}
		if conv.Closed() {
			_ = writeEvent(w, "closed", map[string]string{"sessionId": sid})
			flusher.Flush()
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-changed:
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// DELETE /api/chat
func (s *Server) handleChatDiscard(w http.ResponseWriter, r *http.Request) {
	if sid := getSessionID(r); sid != "" {
		s.store.DiscardConversation(sid)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}

func parseSince(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("since")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid since %q", v)
	}
	return n, nil
}

func (s *Server) packageID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid package id")
		return 0, false
	}
	return id, true
}

func newSessionID() string {
	return uuid.NewString()
}

// getSessionID retrieves the session ID from cookie or query parameter/header
func getSessionID(r *http.Request) string {
	if cookie, err := GetSessionCookie(r); err == nil && cookie != "" {
		return cookie
	}
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		return sid
	}
	return ""
}

// getOrCreateSessionID gets existing session ID or creates a new one, setting the cookie
func (s *Server) getOrCreateSessionID(r *http.Request, w http.ResponseWriter) string {
	sid := strings.TrimSpace(getSessionID(r))
	if sid == "" {
		sid = newSessionID()
		slog.Debug("creating new session", "session", sid, "path", r.URL.Path)
		SetSessionCookie(w, sid, s.cfg.CookieSecure)
	}
	w.Header().Set("X-Session-Id", sid)
	return sid
}
