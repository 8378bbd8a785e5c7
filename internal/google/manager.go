package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/teemow/gmailauth/internal/instrumentation"
	"github.com/teemow/gmailauth/internal/logging"
)

// Outcome describes how Acquire obtained the returned credential.
type Outcome int

const (
	// OutcomeNone is reported together with an error.
	OutcomeNone Outcome = iota
	// OutcomeCacheHit means the stored credential was already valid.
	OutcomeCacheHit
	// OutcomeRefreshed means the stored credential was refreshed.
	OutcomeRefreshed
	// OutcomeAuthorized means the user went through interactive authorization.
	OutcomeAuthorized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCacheHit:
		return "cache_hit"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeAuthorized:
		return "authorized"
	default:
		return "none"
	}
}

// ClientFactory builds an API client handle from a valid credential.
type ClientFactory[T any] interface {
	NewClient(ctx context.Context, cred *Credential) (T, error)
}

// Manager resolves a valid credential for a fixed scope set.
type Manager struct {
	store      TokenStore
	refresher  Refresher
	authorizer Authorizer
	scopes     []string
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a Manager for RequiredScopes.
func NewManager(store TokenStore, refresher Refresher, authorizer Authorizer, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		refresher:  refresher,
		authorizer: authorizer,
		scopes:     copyScopes(RequiredScopes),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.WithOperation(m.logger, "credential.acquire")
	return m
}

// Acquire returns a credential that is valid for the required scopes at the moment
// of return. The token store is only written when a new or refreshed credential
// was obtained.
func (m *Manager) Acquire(ctx context.Context) (*Credential, Outcome, error) {
	ctx, span := instrumentation.StartSpan(ctx, "credential.acquire")
	defer span.End()

	start := time.Now()
	cred, outcome, err := m.acquire(ctx)
	m.metrics.RecordCredentialAcquire(ctx, outcome.String(), instrumentation.StatusFromError(err), time.Since(start))

	span.SetAttributes(attribute.String(instrumentation.SpanAttrOutcome, outcome.String()))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, OutcomeNone, err
	}
	instrumentation.SetSpanSuccess(span)
	m.logger.Debug("credential acquired", logging.Outcome(outcome.String()))
	return cred, outcome, nil
}

func (m *Manager) acquire(ctx context.Context) (*Credential, Outcome, error) {
	start := time.Now()
	cred := m.load(ctx)
	if cred.Valid(m.scopes) {
		return cred, OutcomeCacheHit, nil
	}

	var (
		fresh   *Credential
		outcome Outcome
	)

	if cred != nil && cred.Refreshable() && cred.HasScopes(m.scopes) {
		refreshed, ok, err := m.refresh(ctx, cred)
		if err != nil {
			return nil, OutcomeNone, err
		}
		if ok {
			fresh, outcome = refreshed, OutcomeRefreshed
		}
	} else if cred != nil && !cred.HasScopes(m.scopes) {
		if len(cred.Scopes) == 0 {
			m.logger.Info("stored credential records no granted scopes, re-authorizing",
				logging.Step("load"), "required", m.scopes)
		} else {
			m.logger.Info("stored credential lacks required scopes, re-authorizing",
				logging.Step("load"), "granted", cred.Scopes, "required", m.scopes)
		}
	}

	if fresh == nil {
		authorized, err := m.authorize(ctx)
		if err != nil {
			return nil, OutcomeNone, err
		}
		fresh, outcome = authorized, OutcomeAuthorized
	}

	if !fresh.Valid(m.scopes) {
		return nil, OutcomeNone, fmt.Errorf("%s: %w (granted scopes %v)", outcome, ErrInvalidCredential, fresh.Scopes)
	}

	err := m.store.Save(ctx, fresh)
	m.metrics.RecordTokenStoreWrite(ctx, instrumentation.StatusFromError(err))
	if err != nil {
		return nil, OutcomeNone, fmt.Errorf("save: %w", err)
	}

	m.logger.Info("stored new credential",
		logging.Outcome(outcome.String()),
		"expiry", fresh.Expiry().Format(time.RFC3339),
		"access_token", logging.SanitizeToken(fresh.AccessToken()),
		logging.Duration(time.Since(start)))
	return fresh, outcome, nil
}

// load reads the stored credential. Every failure is treated as "no credential yet".
func (m *Manager) load(ctx context.Context) *Credential {
	cred, err := m.store.Load(ctx)
	switch {
	case err == nil:
		m.assumeScopes(cred)
		return cred
	case errors.Is(err, ErrNoToken):
		m.logger.Debug("no stored credential", logging.Step("load"))
	case errors.Is(err, ErrCorruptToken):
		m.logger.Warn("ignoring corrupt stored credential", logging.Step("load"), logging.Err(err))
	default:
		m.logger.Warn("failed to read stored credential", logging.Step("load"), logging.Err(err))
	}
	return nil
}

// refresh returns the refreshed credential. ok is false when the provider rejected
// the refresh token or the result is unusable, and the caller should re-authorize.
// Other failures are returned as errors.
func (m *Manager) refresh(ctx context.Context, cred *Credential) (refreshed *Credential, ok bool, err error) {
	ctx, span := instrumentation.StartSpan(ctx, "credential.refresh",
		attribute.String(instrumentation.SpanAttrStep, "refresh"))
	defer span.End()

	refreshed, err = m.refresher.Refresh(ctx, cred)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultRejected)
			instrumentation.AddSpanEvent(span, "refresh_rejected",
				attribute.String("oauth.error", rerr.ErrorCode))
			m.logger.Warn("refresh token rejected, re-authorizing", logging.Step("refresh"), logging.Err(err))
			return nil, false, nil
		}
		m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		instrumentation.SetSpanError(span, err)
		return nil, false, fmt.Errorf("refresh: %w", err)
	}

	m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	if !refreshed.Valid(m.scopes) {
		instrumentation.AddSpanEvent(span, "refresh_invalid")
		m.logger.Warn("refreshed credential is not valid, re-authorizing", logging.Step("refresh"))
		return nil, false, nil
	}
	instrumentation.SetSpanSuccess(span)
	return refreshed, true, nil
}

// authorize runs the interactive flow for the manager's scopes.
func (m *Manager) authorize(ctx context.Context) (*Credential, error) {
	ctx, span := instrumentation.StartSpan(ctx, "credential.authorize",
		attribute.String(instrumentation.SpanAttrStep, "authorize"))
	defer span.End()

	cred, err := m.authorizer.Authorize(ctx, m.scopes)
	if err != nil {
		m.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("authorize: %w", err)
	}
	m.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	instrumentation.SetSpanSuccess(span)
	return cred, nil
}

// AcquireClient acquires a credential and builds a client handle from it.
func AcquireClient[T any](ctx context.Context, m *Manager, factory ClientFactory[T]) (T, Outcome, error) {
	var zero T

	cred, outcome, err := m.Acquire(ctx)
	if err != nil {
		return zero, OutcomeNone, err
	}

	client, err := factory.NewClient(ctx, cred)
	if err != nil {
		return zero, OutcomeNone, fmt.Errorf("client: %w", err)
	}
	return client, outcome, nil
}

// assumeScopes fills in the required scopes for a credential whose token file has
// no scopes key, as written by other Google tooling. An explicit empty list is kept.
func (m *Manager) assumeScopes(cred *Credential) {
	if cred.Scopes != nil {
		return
	}
	m.logger.Info("stored credential does not record its scopes, assuming the required scopes",
		logging.Step("load"), "required", m.scopes)
	cred.Scopes = copyScopes(m.scopes)
}

// Stored returns the stored credential without validating, refreshing or writing it.
func (m *Manager) Stored(ctx context.Context) (*Credential, error) {
	cred, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	m.assumeScopes(cred)
	return cred, nil
}

// Forget removes the stored credential.
func (m *Manager) Forget(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// Scopes returns the scope set the manager requires.
func (m *Manager) Scopes() []string {
	return copyScopes(m.scopes)
}
