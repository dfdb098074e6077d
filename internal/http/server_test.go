package http

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/auth"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	sessions := auth.NewSessionManager(repo, time.Hour)
	txService := services.NewTransactionService(repo, nil)

	srv := NewServer(":0", repo, txService, sessions)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// newClient returns a cookie-aware client that does not follow redirects, so
// tests can assert on the redirect responses themselves.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, client *http.Client, target string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.Post(target, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, client *http.Client, target string) *http.Response {
	t.Helper()
	resp, err := client.Get(target)
	require.NoError(t, err)
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func signUp(t *testing.T, client *http.Client, base, username, password string) {
	t.Helper()
	resp := postForm(t, client, base+"/signup/", url.Values{
		"username": {username},
		"email":    {username + "@example.com"},
		"password": {password},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/signin/", resp.Header.Get("Location"))
}

func signIn(t *testing.T, client *http.Client, base, username, password string) {
	t.Helper()
	resp := postForm(t, client, base+"/signin/", url.Values{
		"username": {username},
		"password": {password},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/transactions/all/", resp.Header.Get("Location"))
}

func addTransaction(t *testing.T, client *http.Client, base, title, amount, txType, category string) {
	t.Helper()
	resp := postForm(t, client, base+"/transactions/add/", url.Values{
		"title":    {title},
		"amount":   {amount},
		"type":     {txType},
		"category": {category},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	resp := get(t, client, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body(t, resp))

	resp = get(t, client, ts.URL+"/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body(t, resp))
}

func TestUnauthenticatedRedirectsToSignIn(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	for _, path := range []string{"/", "/transactions/all/", "/transactions/add/", "/transactions/1/", "/signout/"} {
		resp := get(t, client, ts.URL+path)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/signin/", resp.Header.Get("Location"), path)
	}
}

func TestSignUpValidation(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	resp := postForm(t, client, ts.URL+"/signup/", url.Values{
		"username": {"alice"},
		"email":    {"not-an-email"},
		"password": {"short"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "valid email")
	assert.Contains(t, page, "at least 8 characters")
}

func TestSignUpDuplicateUsername(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "alice", "password123")

	resp := postForm(t, client, ts.URL+"/signup/", url.Values{
		"username": {"alice"},
		"email":    {"second@example.com"},
		"password": {"password123"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body(t, resp), "already taken")
}

func TestSignInWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "alice", "password123")

	resp := postForm(t, client, ts.URL+"/signin/", url.Values{
		"username": {"alice"},
		"password": {"wrong-password"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Invalid username or password")
}

func TestSignInUnknownUser(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	resp := postForm(t, client, ts.URL+"/signin/", url.Values{
		"username": {"nobody"},
		"password": {"password123"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Invalid username or password")
}

func TestTransactionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "alice", "password123")
	signIn(t, client, ts.URL, "alice", "password123")

	addTransaction(t, client, ts.URL, "Groceries", "42,50", "expense", "food")
	addTransaction(t, client, ts.URL, "Salary", "2500", "income", "salary")

	resp := get(t, client, ts.URL+"/transactions/all/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "Groceries")
	assert.Contains(t, page, "42.50")
	assert.Contains(t, page, "Salary")
	assert.Contains(t, page, "2500.00")
	assert.Contains(t, page, "alice")

	resp = get(t, client, ts.URL+"/transactions/1/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Groceries")

	resp = postForm(t, client, ts.URL+"/transactions/1/update/", url.Values{
		"title":    {"Groceries and cleaning"},
		"amount":   {"55.00"},
		"type":     {"expense"},
		"category": {"food"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = get(t, client, ts.URL+"/transactions/all/")
	page = body(t, resp)
	assert.Contains(t, page, "Groceries and cleaning")
	assert.Contains(t, page, "55.00")
	assert.NotContains(t, page, "42.50")

	resp = get(t, client, ts.URL+"/transactions/1/delete/")
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	resp = get(t, client, ts.URL+"/transactions/all/")
	page = body(t, resp)
	assert.NotContains(t, page, "Groceries and cleaning")
	assert.Contains(t, page, "Salary")
}

func TestTransactionCreateValidation(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "alice", "password123")
	signIn(t, client, ts.URL, "alice", "password123")

	resp := postForm(t, client, ts.URL+"/transactions/add/", url.Values{
		"title":    {""},
		"amount":   {"-5"},
		"type":     {"transfer"},
		"category": {"misc"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "Failed to add transaction")
}

func TestTransactionOwnership(t *testing.T) {
	ts := newTestServer(t)

	alice := newClient(t)
	signUp(t, alice, ts.URL, "alice", "password123")
	signIn(t, alice, ts.URL, "alice", "password123")
	addTransaction(t, alice, ts.URL, "Private", "10", "expense", "other")

	bob := newClient(t)
	signUp(t, bob, ts.URL, "bob", "password123")
	signIn(t, bob, ts.URL, "bob", "password123")

	resp := get(t, bob, ts.URL+"/transactions/1/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = postForm(t, bob, ts.URL+"/transactions/1/update/", url.Values{
		"title":    {"Hijacked"},
		"amount":   {"1"},
		"type":     {"expense"},
		"category": {"other"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Alice's row is untouched.
	resp = get(t, alice, ts.URL+"/transactions/1/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Private")
}

func TestTransactionDeleteIdempotent(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "alice", "password123")
	signIn(t, client, ts.URL, "alice", "password123")
	addTransaction(t, client, ts.URL, "Once", "10", "expense", "other")

	for range 2 {
		resp := get(t, client, ts.URL+"/transactions/1/delete/")
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/transactions/all/", resp.Header.Get("Location"))
	}
}

func TestSignOutInvalidatesSession(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "alice", "password123")
	signIn(t, client, ts.URL, "alice", "password123")

	resp := get(t, client, ts.URL+"/signout/")
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/signin/", resp.Header.Get("Location"))

	resp = get(t, client, ts.URL+"/transactions/all/")
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/signin/", resp.Header.Get("Location"))
}

func TestAuthenticatedPagesAreNotCacheable(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "alice", "password123")
	signIn(t, client, ts.URL, "alice", "password123")

	resp := get(t, client, ts.URL+"/transactions/all/")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	resp := get(t, client, ts.URL+"/signin/")
	resp.Body.Close()
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestUnknownPageIs404(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	resp := get(t, client, ts.URL+"/no-such-page/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Page not found")
}
