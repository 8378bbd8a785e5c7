package google

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getCallback(t *testing.T, s *callbackServer, query url.Values) *http.Response {
	t.Helper()
	resp, err := http.Get(s.redirectURL() + "?" + query.Encode())
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	return resp
}

func TestCallbackServer_Code(t *testing.T) {
	s, err := startCallbackServer(0, "state-1")
	require.NoError(t, err)
	defer func() { _ = s.close() }()

	assert.NotZero(t, s.port())
	assert.Contains(t, s.redirectURL(), "http://127.0.0.1:")

	resp := getCallback(t, s, url.Values{"state": {"state-1"}, "code": {"abc"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	code, err := s.wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "abc", code)
}

func TestCallbackServer_IgnoresForeignState(t *testing.T) {
	s, err := startCallbackServer(0, "state-1")
	require.NoError(t, err)
	defer func() { _ = s.close() }()

	resp := getCallback(t, s, url.Values{"state": {"forged"}, "code": {"evil"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	getCallback(t, s, url.Values{"state": {"state-1"}, "code": {"real"}})

	code, err := s.wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "real", code)
}

func TestCallbackServer_ConsentDenied(t *testing.T) {
	s, err := startCallbackServer(0, "state-1")
	require.NoError(t, err)
	defer func() { _ = s.close() }()

	getCallback(t, s, url.Values{"state": {"state-1"}, "error": {"access_denied"}})

	_, err = s.wait(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrConsentDenied)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestCallbackServer_MissingCode(t *testing.T) {
	s, err := startCallbackServer(0, "state-1")
	require.NoError(t, err)
	defer func() { _ = s.close() }()

	resp := getCallback(t, s, url.Values{"state": {"state-1"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err = s.wait(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrConsentDenied)
}

func TestCallbackServer_FirstResultWins(t *testing.T) {
	s, err := startCallbackServer(0, "state-1")
	require.NoError(t, err)
	defer func() { _ = s.close() }()

	getCallback(t, s, url.Values{"state": {"state-1"}, "code": {"first"}})
	getCallback(t, s, url.Values{"state": {"state-1"}, "code": {"second"}})

	code, err := s.wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", code)
}

func TestCallbackServer_Timeout(t *testing.T) {
	s, err := startCallbackServer(0, "state-1")
	require.NoError(t, err)
	defer func() { _ = s.close() }()

	_, err = s.wait(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrAuthorizationTimeout)
}

func TestCallbackServer_ContextCanceled(t *testing.T) {
	s, err := startCallbackServer(0, "state-1")
	require.NoError(t, err)
	defer func() { _ = s.close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallbackServer_PortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	port := l.Addr().(*net.TCPAddr).Port
	_, err = startCallbackServer(port, "state-1")
	assert.ErrorIs(t, err, ErrListen)
}

func TestCallbackServer_CloseStopsListening(t *testing.T) {
	s, err := startCallbackServer(0, "state-1")
	require.NoError(t, err)
	redirect := s.redirectURL()
	require.NoError(t, s.close())

	_, err = http.Get(redirect)
	assert.Error(t, err)
}
