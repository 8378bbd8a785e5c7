package google

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// FakeProvider is an in-process OAuth authorization server used by the tests in
// this package and by google_test.
type FakeProvider struct {
	srv *httptest.Server

	mu            sync.Mutex
	validRefresh  string
	scope         string
	challenge     string
	refreshCalls  int
	exchangeCalls int
	issued        int
}

// NewFakeProvider starts a provider that accepts the code "good-code" and the
// refresh token "refresh-ok".
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()
	p := &FakeProvider{
		validRefresh: "refresh-ok",
		scope:        RequiredScopes[0],
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", p.handleToken)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

// TokenURL is the provider's token endpoint.
func (p *FakeProvider) TokenURL() string {
	return p.srv.URL + "/token"
}

// SetScope changes the scope string returned with issued tokens.
func (p *FakeProvider) SetScope(scope string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scope = scope
}

// RefreshCalls returns how many refresh_token grants were received.
func (p *FakeProvider) RefreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

// ExchangeCalls returns how many authorization_code grants were received.
func (p *FakeProvider) ExchangeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCalls
}

// ClientSecretFile writes an "installed" client file pointing at the provider.
func (p *FakeProvider) ClientSecretFile(t *testing.T) string {
	t.Helper()
	doc := map[string]any{
		"installed": map[string]any{
			"client_id":     "test-client.apps.googleusercontent.com",
			"client_secret": "test-secret",
			"auth_uri":      p.srv.URL + "/auth",
			"token_uri":     p.TokenURL(),
			"redirect_uris": []string{"http://localhost"},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// Browser returns a browser stand-in that grants consent by calling the redirect
// URI with the given code.
func (p *FakeProvider) Browser(code string) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		p.mu.Lock()
		p.challenge = q.Get("code_challenge")
		p.mu.Unlock()

		redirect := q.Get("redirect_uri") + "?code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(q.Get("state"))
		resp, err := http.Get(redirect)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

// DenyingBrowser returns a browser stand-in where the user declines consent.
func (p *FakeProvider) DenyingBrowser() func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		resp, err := http.Get(q.Get("redirect_uri") + "?error=access_denied&state=" + url.QueryEscape(q.Get("state")))
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

func (p *FakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, "invalid_request")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	resp := map[string]any{
		"token_type": "Bearer",
		"expires_in": 3599,
		"scope":      p.scope,
	}

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		p.exchangeCalls++
		if r.Form.Get("code") != "good-code" {
			writeTokenError(w, "invalid_grant")
			return
		}
		sum := sha256.Sum256([]byte(r.Form.Get("code_verifier")))
		if p.challenge != "" && base64.RawURLEncoding.EncodeToString(sum[:]) != p.challenge {
			writeTokenError(w, "invalid_grant")
			return
		}
		p.issued++
		resp["access_token"] = fmt.Sprintf("access-%d", p.issued)
		resp["refresh_token"] = p.validRefresh

	case "refresh_token":
		p.refreshCalls++
		if r.Form.Get("refresh_token") != p.validRefresh {
			writeTokenError(w, "invalid_grant")
			return
		}
		p.issued++
		resp["access_token"] = fmt.Sprintf("refreshed-%d", p.issued)

	default:
		writeTokenError(w, "unsupported_grant_type")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeTokenError(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": "rejected by test provider",
	})
}
