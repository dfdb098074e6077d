// Package http wires the tracker's server-rendered browser flows: session
// gated transaction CRUD plus the sign-up/sign-in/sign-out pages.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"bilancio/internal/auth"
	"bilancio/internal/services"
	"bilancio/internal/storage"
	appweb "bilancio/web"
)

type Server struct {
	http.Server
	templates *template.Template
	repo      *storage.SQLiteRepository
	txService *services.TransactionService
	sessions  *auth.SessionManager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, repo *storage.SQLiteRepository, txService *services.TransactionService, sessions *auth.SessionManager) *Server {
	r := chi.NewRouter()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: r,
		},
		repo:      repo,
		txService: txService,
		sessions:  sessions,
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Ambient middleware for every route, in order: request id, panic
	// recovery, request logging, security headers.
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(securityHeaders)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Tiny cache for static assets
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, req)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	// Public pages
	r.Group(func(r chi.Router) {
		r.Get("/signup/", s.handleSignUpForm)
		r.Post("/signup/", s.handleSignUp)
		r.Get("/signin/", s.handleSignInForm)
		r.Post("/signin/", s.handleSignIn)
	})

	// Everything below requires a live session and must never be served
	// from a browser or proxy cache.
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Use(noCache)

		r.Get("/", s.handleIndex)
		r.Get("/signout/", s.handleSignOut)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/all/", s.handleTransactionList)
			r.Get("/add/", s.handleTransactionCreateForm)
			r.Post("/add/", s.handleTransactionCreate)
			r.Get("/{id}/", s.handleTransactionDetail)
			r.Get("/{id}/delete/", s.handleTransactionDelete)
			r.Get("/{id}/update/", s.handleTransactionUpdateForm)
			r.Post("/{id}/update/", s.handleTransactionUpdate)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.renderNotFound(w, req)
	})

	return s
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("templates not loaded"))
		return
	}
	if _, err := s.repo.AccountByID(r.Context(), 0); err != nil && !isNotFound(err) {
		slog.ErrorContext(r.Context(), "Readiness database check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/transactions/all/", http.StatusFound)
}
