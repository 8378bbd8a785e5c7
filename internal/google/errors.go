package google

import "errors"

var (
	// ErrNoToken is returned by a TokenStore when nothing has been persisted yet.
	ErrNoToken = errors.New("no stored Google OAuth token")

	// ErrCorruptToken is returned by a TokenStore when the stored data cannot be parsed.
	ErrCorruptToken = errors.New("stored Google OAuth token is corrupt")

	// ErrClientSecret means the OAuth client configuration is missing or malformed.
	ErrClientSecret = errors.New("invalid OAuth client secret configuration")

	// ErrListen means the loopback redirect listener could not be started.
	ErrListen = errors.New("failed to start OAuth redirect listener")

	// ErrConsentDenied means the provider redirected back with an error instead of a code.
	ErrConsentDenied = errors.New("authorization was not granted")

	// ErrAuthorizationTimeout means the user did not complete consent in time.
	ErrAuthorizationTimeout = errors.New("timed out waiting for authorization callback")

	// ErrInvalidCredential means a freshly obtained credential still failed validation.
	ErrInvalidCredential = errors.New("obtained credential is not valid for the required scopes")
)
