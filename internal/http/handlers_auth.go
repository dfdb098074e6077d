package http

import (
	"errors"
	"log/slog"
	"net/http"

	"bilancio/internal/auth"
	"bilancio/internal/core"
	"bilancio/internal/forms"
)

// authPage is the view model shared by the sign-up and sign-in templates.
type authPage struct {
	Flash  *Flash
	Form   any
	Errors forms.Errors
	Notice string
}

func (s *Server) handleSignUpForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", authPage{
		Flash:  popFlash(w, r),
		Form:   forms.RegistrationForm{},
		Errors: forms.Errors{},
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		s.render(w, r, http.StatusBadRequest, "register.html", authPage{
			Form:   forms.RegistrationForm{},
			Errors: forms.Errors{},
			Notice: "Invalid form submission",
		})
		return
	}

	form := forms.ParseRegistration(r.PostForm)
	fieldErrs := form.Validate()
	if len(fieldErrs) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "register.html", authPage{
			Form:   form,
			Errors: fieldErrs,
		})
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		s.renderServerError(w, r, err)
		return
	}

	if _, err := s.repo.CreateAccount(r.Context(), form.Username, form.Email, hash); err != nil {
		if errors.Is(err, core.ErrDuplicateUsername) {
			fieldErrs["username"] = "This username is already taken"
			s.render(w, r, http.StatusUnprocessableEntity, "register.html", authPage{
				Form:   form,
				Errors: fieldErrs,
			})
			return
		}
		s.renderServerError(w, r, err)
		return
	}

	setFlash(w, flashSuccess, "Account created, please sign in")
	http.Redirect(w, r, "/signin/", http.StatusSeeOther)
}

func (s *Server) handleSignInForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "signin.html", authPage{
		Flash:  popFlash(w, r),
		Form:   forms.LoginForm{},
		Errors: forms.Errors{},
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		s.render(w, r, http.StatusBadRequest, "signin.html", authPage{
			Form:   forms.LoginForm{},
			Errors: forms.Errors{},
			Notice: "Invalid form submission",
		})
		return
	}

	form := forms.ParseLogin(r.PostForm)
	fieldErrs := form.Validate()
	if len(fieldErrs) > 0 {
		s.render(w, r, http.StatusOK, "signin.html", authPage{
			Form:   form,
			Errors: fieldErrs,
		})
		return
	}

	token, err := s.sessions.SignIn(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			// Deliberately vague towards the browser; the detail stays in the log.
			slog.InfoContext(r.Context(), "Invalid sign in", "username", form.Username)
			s.render(w, r, http.StatusOK, "signin.html", authPage{
				Form:   forms.LoginForm{Username: form.Username},
				Errors: forms.Errors{},
				Notice: "Invalid username or password",
			})
			return
		}
		s.renderServerError(w, r, err)
		return
	}

	setSessionCookie(w, token, s.sessions.TTL())
	http.Redirect(w, r, "/transactions/all/", http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SignOut(r.Context(), sessionToken(r)); err != nil {
		slog.ErrorContext(r.Context(), "Sign out failed", "error", err)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/signin/", http.StatusFound)
}
