package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// CallbackServer receives a single OAuth redirect on localhost. Any path is
// accepted so each platform may use its own redirect path.
type CallbackServer struct {
	port int
}

func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{port: port}
}

// Origin is the redirect origin adapters should derive their redirect URI from.
func (s *CallbackServer) Origin() string {
	return "http://localhost:" + strconv.Itoa(s.port)
}

type callbackResult struct {
	code string
	err  error
}

// WaitForCallback serves until one callback arrives, the timeout elapses or
// ctx is done. A callback whose state differs from expectedState fails with
// ErrInvalidState.
func (s *CallbackServer) WaitForCallback(ctx context.Context, expectedState string, timeout time.Duration) (string, error) {
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s %s", q.Get("error"), q.Get("error_description"))
			http.Error(w, "Authorization failed. You can close this window.", http.StatusBadRequest)
		case q.Get("state") != expectedState:
			res.err = ErrInvalidState
			http.Error(w, "Invalid state parameter.", http.StatusBadRequest)
		case q.Get("code") == "":
			res.err = errors.New("callback did not include an authorization code")
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
		default:
			res.code = q.Get("code")
			_, _ = fmt.Fprintln(w, "Authorization complete. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})

	listener, err := net.Listen("tcp", "localhost:"+strconv.Itoa(s.port))
	if err != nil {
		return "", fmt.Errorf("failed to start callback server: %w", err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res.code, res.err
	case <-timer.C:
		return "", errors.New("timed out waiting for authorization callback")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
