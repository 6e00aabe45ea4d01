// Package relay is the local HTTP relay between the browser UI and the
// vendor API.
//
// It exposes:
//   - GET  /test            – liveness probe
//   - GET  /metrics         – relay counters (JSON)
//   - POST /api             – generic passthrough to the vendor base URL
//   - POST /upload          – signed DIY image upload (multipart)
//   - POST /auth/sms/send   – request an SMS verification code
//   - POST /auth/sms/login  – log in with an SMS verification code
//
// Every route sits behind an Origin allow-list. Requests without an Origin
// header (curl, the bundled CLI) are always allowed.
package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/firasghr/HeyteaDIY/config"
	"github.com/firasghr/HeyteaDIY/logger"
	"github.com/firasghr/HeyteaDIY/metrics"
	"github.com/firasghr/HeyteaDIY/payload"
	"github.com/firasghr/HeyteaDIY/upstream"
)

// defaultMaxBody caps JSON and multipart request bodies when the config
// leaves max_upload_bytes unset.
const defaultMaxBody = 10 << 20 // 10 MiB

// Error labels used in the "error" field of failure envelopes.
const (
	LabelAPI      = "API Proxy Error"
	LabelUpload   = "Upload Proxy Error"
	LabelSMSSend  = "SMS Send Error"
	LabelSMSLogin = "SMS Login Error"
)

// ─── Server ───────────────────────────────────────────────────────────────────

// Server serves the relay routes. All fields are set in New and only read
// afterwards, so handlers share them without locking.
type Server struct {
	up      *upstream.Client
	log     *logger.Logger
	metrics *metrics.Metrics
	watcher *payload.Watcher
	cors    corsPolicy
	maxBody int64
	handler http.Handler
}

// New wires a Server. m and w may be nil, in which case fresh instances are
// created.
func New(cfg *config.Config, up *upstream.Client, log *logger.Logger, m *metrics.Metrics, w *payload.Watcher) *Server {
	if log == nil {
		log = logger.Discard()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	if w == nil {
		w = payload.NewWatcher(log)
	}
	s := &Server{
		up:      up,
		log:     log,
		metrics: m,
		watcher: w,
		cors:    newCORSPolicy(cfg.AllowedOrigins),
		maxBody: cfg.MaxUploadBytes,
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBody
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = withRequestID(s.withCORS(mux))
	return s
}

// Handler returns the root handler, including CORS and request IDs.
func (s *Server) Handler() http.Handler { return s.handler }

// Metrics returns the counters the server records into.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests up to five seconds to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAndServe binds addr (e.g. ":5969") and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Infof("relay: listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// ─── Route registration ───────────────────────────────────────────────────────

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /test", s.handleTest)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /api", s.handleAPI)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /auth/sms/send", s.handleSMSSend)
	mux.HandleFunc("POST /auth/sms/login", s.handleSMSLogin)
}

// ─── /test, /metrics ─────────────────────────────────────────────────────────

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "HeyTea proxy running",
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
