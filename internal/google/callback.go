package google

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"
)

const callbackPath = "/callback"

// callbackResult is the outcome of the single redirect the server waits for.
type callbackResult struct {
	code string
	err  error
}

// callbackServer receives the OAuth redirect on a loopback address.
type callbackServer struct {
	expectedState string
	result        chan callbackResult
	once          sync.Once
	server        *http.Server
	listener      net.Listener
}

// startCallbackServer listens on 127.0.0.1:port. A port of 0 picks a free port.
// A port that is already taken is reported as ErrListen.
func startCallbackServer(port int, expectedState string) (*callbackServer, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w on %s: %v", ErrListen, addr, err)
	}

	s := &callbackServer{
		expectedState: expectedState,
		result:        make(chan callbackResult, 1),
		listener:      listener,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, s.handleCallback)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deliver(callbackResult{err: fmt.Errorf("redirect listener stopped: %w", err)})
		}
	}()

	return s, nil
}

// deliver records the first result only; later redirects are ignored.
func (s *callbackServer) deliver(r callbackResult) bool {
	delivered := false
	s.once.Do(func() {
		s.result <- r
		delivered = true
	})
	return delivered
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if state := q.Get("state"); state != s.expectedState {
		// Not ours; keep waiting for the real redirect.
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, resultPage("Authorization failed", "Invalid state parameter."))
		return
	}

	if errParam := q.Get("error"); errParam != "" {
		desc := q.Get("error_description")
		s.deliver(callbackResult{err: fmt.Errorf("%w: %s %s", ErrConsentDenied, errParam, desc)})
		_, _ = fmt.Fprint(w, resultPage("Authorization failed", html.EscapeString(errParam+" "+desc)))
		return
	}

	code := q.Get("code")
	if code == "" {
		s.deliver(callbackResult{err: fmt.Errorf("%w: no authorization code received", ErrConsentDenied)})
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, resultPage("Authorization failed", "No authorization code received."))
		return
	}

	s.deliver(callbackResult{code: code})
	_, _ = fmt.Fprint(w, resultPage("Authorization successful", "You can close this window and return to the terminal."))
}

// wait blocks until a redirect arrives, the timeout elapses or ctx is done.
func (s *callbackServer) wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-s.result:
		return r.code, r.err
	case <-timer.C:
		return "", fmt.Errorf("%w after %s", ErrAuthorizationTimeout, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// close shuts the listener down.
func (s *callbackServer) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// port returns the port the server is bound to.
func (s *callbackServer) port() int {
	if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}

// redirectURL is the redirect URI registered with the authorization request.
func (s *callbackServer) redirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", s.port(), callbackPath)
}

func resultPage(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>gmailauth</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
<h1>%s</h1>
<p>%s</p>
</body>
</html>`, html.EscapeString(title), message)
}
