package google

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestLocalServerAuthorizer_Authorize(t *testing.T) {
	p := NewFakeProvider(t)
	var out bytes.Buffer

	a := NewLocalServerAuthorizer(FileClientConfig(p.ClientSecretFile(t)),
		WithBrowser(p.Browser("good-code")),
		WithPromptWriter(&out),
		WithTimeout(5*time.Second),
	)

	cred, err := a.Authorize(context.Background(), RequiredScopes)
	require.NoError(t, err)

	assert.Equal(t, "access-1", cred.AccessToken())
	assert.Equal(t, "refresh-ok", cred.RefreshToken())
	assert.True(t, cred.Valid(RequiredScopes))
	assert.Equal(t, p.TokenURL(), cred.TokenURI)
	assert.Equal(t, "test-client.apps.googleusercontent.com", cred.ClientID)
	assert.Equal(t, "test-secret", cred.ClientSecret)
	assert.Equal(t, 1, p.ExchangeCalls())

	assert.Contains(t, out.String(), "Please visit this URL to authorize this application:")
}

func TestLocalServerAuthorizer_AuthURL(t *testing.T) {
	p := NewFakeProvider(t)
	var out bytes.Buffer

	var authURL string
	browser := p.Browser("good-code")
	a := NewLocalServerAuthorizer(FileClientConfig(p.ClientSecretFile(t)),
		WithBrowser(func(u string) error {
			authURL = u
			return browser(u)
		}),
		WithPromptWriter(&out),
	)

	_, err := a.Authorize(context.Background(), RequiredScopes)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEmpty(t, q.Get("state"))
	assert.Equal(t, RequiredScopes[0], q.Get("scope"))
	assert.True(t, strings.HasPrefix(q.Get("redirect_uri"), "http://127.0.0.1:"))

	// The URL is printed even when a browser was opened
	assert.Contains(t, out.String(), authURL)
}

func TestLocalServerAuthorizer_BrowserFailureStillWaits(t *testing.T) {
	p := NewFakeProvider(t)
	var out bytes.Buffer

	a := NewLocalServerAuthorizer(FileClientConfig(p.ClientSecretFile(t)),
		WithBrowser(func(string) error { return errors.New("no display") }),
		WithPromptWriter(&out),
		WithTimeout(50*time.Millisecond),
	)

	_, err := a.Authorize(context.Background(), RequiredScopes)
	assert.ErrorIs(t, err, ErrAuthorizationTimeout)
	assert.Contains(t, out.String(), "code_challenge=")
	assert.Zero(t, p.ExchangeCalls())
}

func TestLocalServerAuthorizer_ConsentDenied(t *testing.T) {
	p := NewFakeProvider(t)

	a := NewLocalServerAuthorizer(FileClientConfig(p.ClientSecretFile(t)),
		WithBrowser(p.DenyingBrowser()),
		WithPromptWriter(&bytes.Buffer{}),
	)

	_, err := a.Authorize(context.Background(), RequiredScopes)
	assert.ErrorIs(t, err, ErrConsentDenied)
	assert.Zero(t, p.ExchangeCalls())
}

func TestLocalServerAuthorizer_BadCode(t *testing.T) {
	p := NewFakeProvider(t)

	a := NewLocalServerAuthorizer(FileClientConfig(p.ClientSecretFile(t)),
		WithBrowser(p.Browser("bad-code")),
		WithPromptWriter(&bytes.Buffer{}),
	)

	_, err := a.Authorize(context.Background(), RequiredScopes)
	require.Error(t, err)

	var rerr *oauth2.RetrieveError
	assert.True(t, errors.As(err, &rerr))
}

func TestLocalServerAuthorizer_MissingClientSecret(t *testing.T) {
	a := NewLocalServerAuthorizer(FileClientConfig("/nonexistent/credentials.json"),
		WithBrowser(nil),
		WithPromptWriter(&bytes.Buffer{}),
	)

	_, err := a.Authorize(context.Background(), RequiredScopes)
	assert.ErrorIs(t, err, ErrClientSecret)

	_, err = NewLocalServerAuthorizer(nil).Authorize(context.Background(), RequiredScopes)
	assert.ErrorIs(t, err, ErrClientSecret)
}

func TestLocalServerAuthorizer_PortInUse(t *testing.T) {
	p := NewFakeProvider(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	a := NewLocalServerAuthorizer(FileClientConfig(p.ClientSecretFile(t)),
		WithPort(l.Addr().(*net.TCPAddr).Port),
		WithBrowser(p.Browser("good-code")),
		WithPromptWriter(&bytes.Buffer{}),
	)

	_, err = a.Authorize(context.Background(), RequiredScopes)
	assert.ErrorIs(t, err, ErrListen)
	assert.Zero(t, p.ExchangeCalls())
}
