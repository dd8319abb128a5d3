package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/readlater/internal/config"
	"github.com/hpungsan/readlater/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewHandlers builds the route handlers over a shared ops environment.
func NewHandlers(env *ops.Env, cfg *config.Config, version string) *Handlers {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic("web: template sub-FS: " + err.Error())
	}

	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handlers{
		env:      env,
		cfg:      cfg,
		renderer: NewRenderer(templateSub, version, logger),
		logger:   logger,
	}
}

// Routes returns the full handler chain: logging, security headers,
// session resolution, then the mux.
func (h *Handlers) Routes() http.Handler {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: static sub-FS: " + err.Error())
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/items", http.StatusFound)
	})

	mux.HandleFunc("GET /login", h.HandleLoginPage)
	mux.HandleFunc("POST /login", h.HandleLogin)
	mux.HandleFunc("GET /register", h.HandleRegisterPage)
	mux.HandleFunc("POST /register", h.HandleRegister)
	mux.HandleFunc("POST /logout", h.HandleLogout)

	mux.HandleFunc("GET /items", h.requireAuth(h.HandleList))
	mux.HandleFunc("GET /items/{id}", h.requireAuth(h.HandleDetail))
	mux.HandleFunc("POST /items/{id}/summary", h.requireAuth(h.HandleSaveSummary))

	mux.HandleFunc("GET /import", h.requireAuth(h.HandleImportPage))
	mux.HandleFunc("POST /import", h.requireAuth(h.HandleImport))
	mux.HandleFunc("POST /import/bulk", h.requireAuth(h.HandleBulkImport))
	mux.HandleFunc("POST /import/map", h.requireAuth(h.HandleMap))

	mux.HandleFunc("POST /api/ai/summary", h.requireAuth(h.HandleStreamSummary))

	mux.HandleFunc("GET /healthz", h.HandleHealth)
	if h.env.Metrics != nil {
		mux.Handle("GET /metrics", h.env.Metrics.Handler())
	}

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return requestLogger(h.logger, securityHeaders(h.loadSession(mux)))
}

// NewServer creates and configures the HTTP server for the readlater web UI.
func NewServer(env *ops.Env, cfg *config.Config, version string) *http.Server {
	h := NewHandlers(env, cfg, version)
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("readlater UI running", "url", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
