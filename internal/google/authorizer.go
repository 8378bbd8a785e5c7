package google

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/gmailauth/internal/logging"
)

// DefaultAuthorizationTimeout bounds how long the interactive flow waits for consent.
const DefaultAuthorizationTimeout = 5 * time.Minute

// Authorizer obtains a brand-new credential from the user.
type Authorizer interface {
	Authorize(ctx context.Context, scopes []string) (*Credential, error)
}

// LocalServerAuthorizer runs the installed-application flow: it listens for the
// redirect on a loopback port, sends the user to the consent page and exchanges the
// returned code (with PKCE) for a token.
type LocalServerAuthorizer struct {
	loadConfig  ClientConfigLoader
	port        int
	timeout     time.Duration
	openBrowser func(url string) error
	out         io.Writer
	logger      logging.Logger
}

// AuthorizerOption configures a LocalServerAuthorizer.
type AuthorizerOption func(*LocalServerAuthorizer)

// WithPort sets the loopback port. 0 picks a free port.
func WithPort(port int) AuthorizerOption {
	return func(a *LocalServerAuthorizer) { a.port = port }
}

// WithTimeout sets how long to wait for the redirect.
func WithTimeout(timeout time.Duration) AuthorizerOption {
	return func(a *LocalServerAuthorizer) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// WithBrowser sets the function used to open the consent page. nil disables
// opening a browser; the URL is still printed.
func WithBrowser(open func(url string) error) AuthorizerOption {
	return func(a *LocalServerAuthorizer) { a.openBrowser = open }
}

// WithPromptWriter sets where the consent URL is printed (default stderr).
func WithPromptWriter(w io.Writer) AuthorizerOption {
	return func(a *LocalServerAuthorizer) { a.out = w }
}

// WithAuthorizerLogger sets the logger.
func WithAuthorizerLogger(l logging.Logger) AuthorizerOption {
	return func(a *LocalServerAuthorizer) { a.logger = l }
}

// NewLocalServerAuthorizer creates an authorizer using the client configuration from loadConfig.
func NewLocalServerAuthorizer(loadConfig ClientConfigLoader, opts ...AuthorizerOption) *LocalServerAuthorizer {
	a := &LocalServerAuthorizer{
		loadConfig:  loadConfig,
		timeout:     DefaultAuthorizationTimeout,
		openBrowser: OpenBrowser,
		out:         os.Stderr,
		logger:      logging.NewSlogAdapter(nil),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize blocks until the user completes consent, the timeout elapses or ctx is done.
func (a *LocalServerAuthorizer) Authorize(ctx context.Context, scopes []string) (*Credential, error) {
	if a.loadConfig == nil {
		return nil, fmt.Errorf("%w: no client secret file configured", ErrClientSecret)
	}
	conf, err := a.loadConfig(scopes)
	if err != nil {
		return nil, err
	}
	conf.Scopes = copyScopes(scopes)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	srv, err := startCallbackServer(a.port, state)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := srv.close(); err != nil {
			a.logger.Debug("failed to stop redirect listener", logging.Err(err))
		}
	}()

	conf.RedirectURL = srv.redirectURL()
	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	_, _ = fmt.Fprintf(a.out, "Please visit this URL to authorize this application:\n%s\n", authURL)
	if a.openBrowser != nil {
		if err := a.openBrowser(authURL); err != nil {
			a.logger.Warn("could not open browser, open the URL manually", logging.Err(err))
		}
	}
	a.logger.Debug("waiting for authorization callback", "redirect_url", conf.RedirectURL, "timeout", a.timeout)

	code, err := srv.wait(ctx, a.timeout)
	if err != nil {
		return nil, err
	}

	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	return &Credential{
		Token:        tok,
		Scopes:       grantedScopes(tok, scopes),
		TokenURI:     conf.Endpoint.TokenURL,
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
	}, nil
}
