package http

import (
	"net/http"
	"net/url"
	"strings"
)

// Flash notices replace the framework-level messages of a classic web stack:
// a short-lived cookie set before a redirect and consumed on the next render.

const flashCookieName = "bilancio_flash"

const (
	flashSuccess = "success"
	flashError   = "error"
)

// Flash is a one-shot notice rendered at the top of the next page.
type Flash struct {
	Level   string
	Message string
}

func setFlash(w http.ResponseWriter, level, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(level + "|" + message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending notice, if any.
func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	level, message, found := strings.Cut(raw, "|")
	if !found || message == "" {
		return nil
	}
	switch level {
	case flashSuccess, flashError:
		return &Flash{Level: level, Message: message}
	}
	return nil
}
