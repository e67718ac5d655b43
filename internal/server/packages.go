package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
)

// GET /api/packages
// Admins see private info; everyone else gets the public projection.
func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	admin := s.isAdmin(r)
	out := make([]catalog.Package, 0, len(pkgs))
	for _, p := range pkgs {
		if !admin {
			p = p.Public()
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": out})
}

// GET /api/packages/{id}
func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.packageID(w, r)
	if !ok {
		return
	}
	p, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	if !s.isAdmin(r) {
		p = p.Public()
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/packages
func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var p catalog.Package
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := s.catalog.Create(r.Context(), p)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	slog.Info("package created", "package", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

// PUT /api/packages/{id}
// Partial update: omitted fields keep their value.
func (s *Server) handleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, ok := s.packageID(w, r)
	if !ok {
		return
	}
	var patch catalog.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := s.catalog.Update(r.Context(), id, patch)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /api/packages/{id}
func (s *Server) handleDeletePackage(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, ok := s.packageID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	slog.Info("package deleted", "package", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentUser(r *http.Request) *identity.User {
	sid := getSessionID(r)
	if sid == "" {
		return nil
	}
	return s.store.User(sid)
}

func (s *Server) isAdmin(r *http.Request) bool {
	return identity.RoleOf(s.currentUser(r)) == identity.RoleAdmin
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	switch identity.RoleOf(s.currentUser(r)) {
	case identity.RoleAdmin:
		return true
	case identity.RoleVisitor:
		s.writeError(w, http.StatusUnauthorized, "sign in required")
	default:
		s.writeError(w, http.StatusForbidden, "admin only")
	}
	return false
}

func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "package not found")
	case errors.Is(err, catalog.ErrInvalid):
		s.writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), catalog.ErrInvalid.Error()+": "))
	default:
		slog.Error("catalog operation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
