package google

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const appName = "gmailauth"

// DefaultClientSecretPath is where the OAuth client file downloaded from the
// Google Cloud Console is looked up when no path is configured.
const DefaultClientSecretPath = "credentials.json"

// DefaultTokenPath returns the XDG data location of the token file.
func DefaultTokenPath() string {
	return filepath.Join(xdg.DataHome, appName, "token.json")
}

// ClientConfigLoader returns the OAuth client configuration for scopes.
type ClientConfigLoader func(scopes []string) (*oauth2.Config, error)

// FileClientConfig returns a loader reading the client secret file at path.
// The file is read on every call, so a cache hit never touches it.
func FileClientConfig(path string) ClientConfigLoader {
	return func(scopes []string) (*oauth2.Config, error) {
		return LoadClientConfig(path, scopes)
	}
}

// LoadClientConfig reads an "installed" or "web" OAuth client JSON file.
func LoadClientConfig(path string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrClientSecret, path, err)
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrClientSecret, path, err)
	}
	if conf.ClientID == "" {
		return nil, fmt.Errorf("%w: %s has no client_id", ErrClientSecret, path)
	}
	// Google expects client credentials in the form body; pinning the style avoids
	// a second token request when the first one is rejected.
	conf.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	return conf, nil
}

// Refresher exchanges a credential's refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, cred *Credential) (*Credential, error)
}

// OAuthRefresher refreshes against the token endpoint recorded in the credential,
// or the one from the client secret file when the credential has none.
type OAuthRefresher struct {
	loadConfig ClientConfigLoader
}

// NewOAuthRefresher creates a refresher. loadConfig may be nil when every stored
// credential carries its own client id and token URI.
func NewOAuthRefresher(loadConfig ClientConfigLoader) *OAuthRefresher {
	return &OAuthRefresher{loadConfig: loadConfig}
}

// Refresh performs exactly one refresh call. The returned credential keeps the
// previous refresh token if the endpoint does not rotate it, and keeps the granted scopes.
func (r *OAuthRefresher) Refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	if !cred.Refreshable() {
		return nil, errors.New("credential has no refresh token")
	}

	conf, err := r.configFor(cred)
	if err != nil {
		return nil, err
	}

	// Force the token source to treat the token as expired so it refreshes once.
	stale := &oauth2.Token{
		RefreshToken: cred.RefreshToken(),
		Expiry:       time.Unix(1, 0),
	}
	tok, err := conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = cred.RefreshToken()
	}

	out := cred.Clone()
	out.Token = tok
	out.Scopes = grantedScopes(tok, cred.Scopes)
	out.TokenURI = conf.Endpoint.TokenURL
	out.ClientID = conf.ClientID
	out.ClientSecret = conf.ClientSecret
	return out, nil
}

func (r *OAuthRefresher) configFor(cred *Credential) (*oauth2.Config, error) {
	if cred.ClientID != "" && cred.TokenURI != "" {
		return &oauth2.Config{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   google.Endpoint.AuthURL,
				TokenURL:  cred.TokenURI,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: copyScopes(cred.Scopes),
		}, nil
	}
	if r.loadConfig == nil {
		return nil, fmt.Errorf("%w: stored credential has no client id and no client secret file is configured", ErrClientSecret)
	}
	return r.loadConfig(cred.Scopes)
}

// HTTPClient returns an HTTP client that authenticates with the credential's
// current access token. The token is used as-is; it is not refreshed or re-validated.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func HTTPClient(ctx context.Context, cred *Credential) *http.Client {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(cred.Token))

	// Keep a transport supplied through the context (tests); otherwise force HTTP/1.1.
	if transport, ok := client.Transport.(*oauth2.Transport); ok && transport.Base == nil {
		if dt, ok := http.DefaultTransport.(*http.Transport); ok {
			base := dt.Clone()
			base.ForceAttemptHTTP2 = false
			base.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
			transport.Base = base
		}
	}

	return client
}
