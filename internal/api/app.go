// Package api serves the notepad HTTP surface and upgrades websocket
// connections into the notepad server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-notepad/internal/auth"
	"github.com/npezzotti/go-notepad/internal/collab"
	"github.com/npezzotti/go-notepad/internal/config"
	"github.com/npezzotti/go-notepad/internal/database"
	"github.com/npezzotti/go-notepad/internal/ratelimit"
	"github.com/npezzotti/go-notepad/internal/server"
	"github.com/npezzotti/go-notepad/internal/stats"
	"github.com/npezzotti/go-notepad/internal/storage"
	"github.com/teris-io/shortid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

var defaultJwtExpiration = 24 * time.Hour

type NotepadApp struct {
	log            *zap.SugaredLogger
	db             database.NotepadRepository
	srv            *http.Server
	ns             *server.NotepadServer
	core           *collab.Core
	verifier       *auth.Verifier
	tokens         *auth.Tokens
	limiter        ratelimit.Limiter
	files          storage.FileStore
	stats          stats.StatsProvider
	validate       *validator.Validate
	allowedOrigins []string
	maxUploadBytes int64
	trustedProxies []netip.Prefix

	generateShortId func() (string, error)
	newFileId       func() string
}

// NewNotepadApp registers every route on mux. files may be nil, in which case
// attachment routes answer 503.
func NewNotepadApp(
	mux *http.ServeMux,
	logger *zap.SugaredLogger,
	ns *server.NotepadServer,
	core *collab.Core,
	db database.NotepadRepository,
	limiter ratelimit.Limiter,
	files storage.FileStore,
	su stats.StatsProvider,
	cfg *config.Config,
) *NotepadApp {
	su.RegisterMetric(stats.LoginAllowed)
	su.RegisterMetric(stats.LoginRejected)

	s := &NotepadApp{
		log:             logger,
		db:              db,
		ns:              ns,
		core:            core,
		verifier:        auth.NewVerifier(db),
		tokens:          auth.NewTokens(cfg.SigningKey, defaultJwtExpiration),
		limiter:         limiter,
		files:           files,
		stats:           su,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		allowedOrigins:  cfg.AllowedOrigins,
		maxUploadBytes:  cfg.MaxUploadBytes,
		trustedProxies:  cfg.TrustedProxies,
		generateShortId: shortid.Generate,
		newFileId:       func() string { return uuid.NewString() },
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/notepads", s.createNotepad)
	mux.HandleFunc("POST /api/notepads/{id}/login", s.rateLimit(s.login))
	mux.HandleFunc("GET /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/notepads/{id}", s.authMiddleware(s.notepadAccess(s.getNotepad)))
	mux.HandleFunc("PUT /api/notepads/{id}/content", s.authMiddleware(s.notepadAccess(s.updateContent)))
	mux.HandleFunc("GET /api/notepads/{id}/feedback", s.authMiddleware(s.notepadAccess(s.listFeedback)))
	mux.HandleFunc("POST /api/notepads/{id}/feedback", s.authMiddleware(s.notepadAccess(s.createFeedback)))
	mux.HandleFunc("GET /api/notepads/{id}/files", s.authMiddleware(s.notepadAccess(s.listFiles)))
	mux.HandleFunc("POST /api/notepads/{id}/files", s.authMiddleware(s.notepadAccess(s.uploadFile)))
	mux.HandleFunc("GET /api/notepads/{id}/files/{fileId}", s.authMiddleware(s.notepadAccess(s.downloadFile)))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = handlers.CombinedLoggingHandler(&zapio.Writer{Log: logger.Desugar(), Level: zap.InfoLevel}, h)
	h = s.trustedProxyHeaders(h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *NotepadApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *NotepadApp) Start() error {
	s.log.Infof("starting server on %s", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *NotepadApp) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *NotepadApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Errorf("health check: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
