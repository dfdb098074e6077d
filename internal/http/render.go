package http

import (
	"errors"
	"log/slog"
	"net/http"

	"bilancio/internal/core"
)

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

// render executes a page template. Rendering problems degrade to a plain 500
// rather than a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
	}
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.render(w, r, http.StatusNotFound, "notfound.html", nil)
}

func (s *Server) renderServerError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Unhandled handler error", "error", err, "url", r.URL.Path)
	if s.templates == nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusInternalServerError, "error.html", nil)
}
