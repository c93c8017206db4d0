package api

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/rs/zerolog"
)

// Files is the storage surface behind the upload and download endpoints.
type Files interface {
	Store(dir, name string, r io.Reader) (string, int64, error)
	StoreWithUniqueID(dir, name string, r io.Reader, maxLen int) (string, int64, error)
	Open(dir, name string) (*os.File, os.FileInfo, error)
	Delete(dir, name string) (bool, error)
}

// Engine is the part of the engine exposed over HTTP.
type Engine interface {
	Metrics() engine.Snapshot
	Refresh(ctx context.Context) error
}

// Server wraps the HTTP API and its config/state
type Server struct {
	Files  Files
	Engine Engine
	Addr   string
	Logger zerolog.Logger
	Config *Config
	server *http.Server
}

type Config struct {
	ListenAddr    string   `mapstructure:"listen_addr"`
	AuthTokens    []string `mapstructure:"auth_tokens"`
	MaxUploadMB   int64    `mapstructure:"max_upload_mb"`
	UniqueNameLen int      `mapstructure:"unique_name_len"`
}

func NewServer(files Files, eng Engine, config Config, logger zerolog.Logger) *Server {
	return &Server{
		Files:  files,
		Engine: eng,
		Addr:   config.ListenAddr,
		Config: &config,
		Logger: logger,
	}
}

// Handler returns the full route tree: /healthz in the clear, /api/ behind
// bearer-token auth.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// Health endpoint
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	protected := http.NewServeMux()
	RegisterFileHandlers(protected, s.Files, *s.Config, s.Logger)
	RegisterEngineHandlers(protected, s.Engine)

	mux.Handle("/api/", TokenAuthMiddleware(s.Config.AuthTokens, protected))
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.Logger.Info().Str("addr", s.Addr).Msg("API server listening")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
