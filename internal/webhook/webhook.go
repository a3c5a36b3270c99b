// Package webhook runs the serve-mode HTTP endpoint: a forge push webhook
// that triggers a debounced, single-flight sync run.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/yakshave/yak/internal/activation"
	"github.com/yakshave/yak/internal/config"
)

// Runner is the sync entry point the server drives, implemented by
// *sync.Engine.
type Runner interface {
	Run(ctx context.Context) error
}

// PushEvent carries the fields of a forge push payload the server inspects.
type PushEvent struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Server exposes the webhook endpoint and serializes sync runs behind it.
type Server struct {
	cfg    *config.Config
	runner Runner
	logger *slog.Logger
	secret []byte

	syncMu      sync.Mutex // guards syncRunning and syncPending
	syncRunning bool
	syncPending bool
	debounce    *debouncer
}

// debouncer coalesces bursts of webhook deliveries into one sync run.
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	callback func()
}

// NewServer creates a webhook server. The shared secret is read from the
// configured file; serve mode refuses to start without one.
func NewServer(cfg *config.Config, runner Runner, logger *slog.Logger) (*Server, error) {
	secret, err := os.ReadFile(cfg.Serve.WebhookSecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook secret: %w", err)
	}
	secret = []byte(strings.TrimSpace(string(secret)))

	return &Server{
		cfg:    cfg,
		runner: runner,
		logger: logger,
		secret: secret,
		debounce: &debouncer{
			delay: 2 * time.Second,
		},
	}, nil
}

// Start performs an initial sync, then serves webhook requests until the
// context is cancelled. A socket-activated listener is preferred when one
// was handed to the process.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("performing initial sync before accepting webhooks")
	s.performSync(ctx)

	listener, err := s.listen()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebhook)

	server := &http.Server{
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) listen() (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, err
	}
	if len(listeners) > 0 {
		s.logger.Info("using socket-activated listener")
		return listeners[0], nil
	}
	return net.Listen("tcp", s.cfg.Serve.ListenAddr)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.logger.Warn("rejecting non-POST request", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if contentType := r.Header.Get("Content-Type"); contentType != "application/json" {
		s.logger.Warn("rejecting request with invalid content type", "content_type", contentType)
		http.Error(w, "Invalid content type", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.logger.Error("failed to read request body", "error", err)
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	signature := r.Header.Get("X-Hub-Signature-256")
	if !s.verifySignature(body, signature) {
		s.logger.Warn("rejecting request with invalid signature")
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	s.logger.Info("received webhook", "event", eventType)
	if eventType != "push" {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "Event type not configured for sync\n")
		return
	}

	var event PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Error("failed to parse webhook payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if !s.isRefAllowed(event.Ref) {
		s.logger.Info("ignoring disallowed ref", "ref", event.Ref)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "Ref not configured for sync\n")
		return
	}

	s.logger.Info("webhook accepted",
		"ref", event.Ref,
		"commit", event.After,
		"repo", event.Repository.FullName)

	s.debounce.trigger(func() {
		s.performSync(context.Background())
	})

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Sync triggered\n")
}

// verifySignature checks the sha256 HMAC the forge computed over the body.
func (s *Server) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// isRefAllowed checks the pushed ref against the configured filter. An
// empty filter accepts every ref.
func (s *Server) isRefAllowed(ref string) bool {
	if len(s.cfg.Serve.AllowedRefs) == 0 {
		return true
	}
	for _, allowed := range s.cfg.Serve.AllowedRefs {
		if ref == allowed {
			return true
		}
	}
	return false
}

// performSync runs the engine with single-flight semantics. While a run is
// in progress at most one re-run is queued; further concurrent requests are
// dropped so webhook floods cannot pile up goroutines.
func (s *Server) performSync(ctx context.Context) {
	s.syncMu.Lock()
	if s.syncRunning {
		s.syncPending = true
		s.syncMu.Unlock()
		s.logger.Info("sync already in progress, queuing pending re-run")
		return
	}
	s.syncRunning = true
	s.syncMu.Unlock()

	for {
		s.logger.Info("starting sync run")
		if err := s.runner.Run(ctx); err != nil {
			s.logger.Error("sync failed", "error", err)
		}

		s.syncMu.Lock()
		if !s.syncPending {
			s.syncRunning = false
			s.syncMu.Unlock()
			return
		}
		s.syncPending = false
		s.syncMu.Unlock()

		s.logger.Info("re-running sync due to pending request")
	}
}

// trigger schedules the callback after the debounce delay, resetting the
// timer on every call.
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
}
