package msauth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"altarik/core"

	"github.com/gorilla/mux"
)

// ReceivedRedirect is the (code, state) pair captured from the browser
// redirect. At most one is delivered per login attempt.
type ReceivedRedirect struct {
	Code  string
	State string
}

// bindPort probes the configured range until a local port binds, or
// fails with ErrNoPortAvailable once the range is exhausted.
func bindPort(cfg *Config) (net.Listener, int, error) {
	for port := cfg.PortRangeStart; port <= cfg.PortRangeEnd; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return l, port, nil
		}
	}
	return nil, 0, core.ErrNoPortAvailable
}

// receiver is the ephemeral single-use redirect endpoint. It serves
// exactly one valid (code, state) query, replies with a localized
// confirmation page and rejects everything after that.
type receiver struct {
	listener net.Listener
	server   *http.Server

	mu        sync.Mutex
	delivered bool
	codeCh    chan ReceivedRedirect
	errCh     chan error
}

func newReceiver(listener net.Listener) *receiver {
	r := &receiver{
		listener: listener,
		codeCh:   make(chan ReceivedRedirect, 1),
		errCh:    make(chan error, 1),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/auth/redirect", r.handleRedirect).Methods(http.MethodGet)

	r.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return r
}

// start serves in the background. A serve failure surfaces on errCh and
// loses the await race.
func (r *receiver) start() {
	go func() {
		if err := r.server.Serve(r.listener); err != nil && err != http.ErrServerClosed {
			r.errCh <- err
		}
	}()
}

// await races server failure, a valid redirect and the timeout;
// whichever resolves first wins. The caller shuts the receiver down in
// every case, which cancels the losing paths and frees the port.
func (r *receiver) await(ctx context.Context, timeout time.Duration) (ReceivedRedirect, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rc := <-r.codeCh:
		return rc, nil
	case err := <-r.errCh:
		return ReceivedRedirect{}, fmt.Errorf("redirect receiver failed: %w", err)
	case <-timer.C:
		return ReceivedRedirect{}, core.ErrRedirectTimeout
	case <-ctx.Done():
		return ReceivedRedirect{}, ctx.Err()
	}
}

// shutdown closes the server and its listener immediately.
func (r *receiver) shutdown() {
	r.server.Close()
}

func (r *receiver) handleRedirect(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	rc := ReceivedRedirect{
		Code:  query.Get("code"),
		State: query.Get("state"),
	}
	if rc.Code == "" || rc.State == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	if r.delivered {
		r.mu.Unlock()
		http.Error(w, "authorization code already received", http.StatusConflict)
		return
	}
	r.delivered = true
	r.mu.Unlock()

	r.codeCh <- rc

	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.Header().Set("Connection", "close")
	fmt.Fprintf(w, "<h1>%s</h1>", confirmationMessage(req.Header.Get("Accept-Language")))
}

// confirmationMessage picks the page language from Accept-Language,
// falling back to English.
func confirmationMessage(acceptLanguage string) string {
	for _, lang := range strings.Split(acceptLanguage, ",") {
		lang = strings.TrimSpace(strings.SplitN(lang, ";", 2)[0])
		if strings.HasPrefix(lang, "fr") {
			return "Vous pouvez maintenant fermer l'onglet !"
		}
		if strings.HasPrefix(lang, "en") {
			return "You can close this tab now!"
		}
	}
	return "You can close this tab now!"
}
