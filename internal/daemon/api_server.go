package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"crewbe/internal/analysis"
	"crewbe/internal/api"
	"crewbe/internal/config"
	"crewbe/internal/logging"
	"crewbe/internal/services/awscloud"
	"crewbe/internal/upload"
)

const (
	multipartMemory = 32 << 20
	maxJSONBody     = 1 << 20
)

// ObjectStore writes and inspects recordings.
type ObjectStore interface {
	Bucket() string
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Head(ctx context.Context, key string) (awscloud.ObjectInfo, error)
}

type apiServer struct {
	bind      string
	token     string
	logger    *slog.Logger
	storage   ObjectStore
	providers analysis.Providers
	keys      *upload.KeyGenerator

	prefix       string
	region       string
	outputBucket string
	language     string
	credTTL      time.Duration
	maxUpload    int64
	maxFaces     int
	maxSegments  int
	version      string

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, storage ObjectStore, providers analysis.Providers, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:         strings.TrimSpace(cfg.Paths.APIBind),
		token:        strings.TrimSpace(cfg.Paths.APIToken),
		logger:       logging.NewComponentLogger(logger, "api-server"),
		storage:      storage,
		providers:    providers,
		keys:         upload.NewKeyGenerator(cfg.Storage.KeyPrefix),
		prefix:       cfg.Storage.KeyPrefix,
		region:       cfg.Storage.Region,
		outputBucket: cfg.Analysis.OutputBucket,
		language:     analysis.NormalizeLanguage(cfg.Analysis.Language),
		credTTL:      cfg.CredentialTTL(),
		maxUpload:    cfg.MaxUploadBytes(),
		maxFaces:     cfg.Analysis.MaxFaces,
		maxSegments:  cfg.Analysis.MaxSegments,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	protect := func(h http.HandlerFunc) http.HandlerFunc { return s.authMiddleware(s.token, h) }

	mux.HandleFunc("POST /api/upload/presigned-url", protect(s.handlePresign))
	mux.HandleFunc("POST /api/upload/direct", protect(s.handleDirectUpload))
	mux.HandleFunc("GET /api/upload/status/{key...}", protect(s.handleUploadStatus))
	mux.HandleFunc("POST /api/analysis/start", protect(s.handleStartAnalysis))
	mux.HandleFunc("POST /api/analysis/start/{type}", protect(s.handleStartJob))
	mux.HandleFunc("GET /api/analysis/status/{type}/{id}", protect(s.handleJobStatus))
	mux.HandleFunc("POST /api/analysis/status-all", protect(s.handleStatusAll))
	mux.HandleFunc("GET /health", s.handleHealth)
	return requestIDMiddleware(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that api_bind is free and restart crewbed"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:       "healthy",
		Region:       s.region,
		Bucket:       s.storage.Bucket(),
		OutputBucket: s.outputBucket,
		Version:      s.version,
		Timestamp:    api.Now(),
	})
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, api.ErrorResponse{
		Success:   false,
		Error:     code,
		Message:   message,
		Timestamp: api.Now(),
	})
}

func (s *apiServer) requestLogger(r *http.Request) *slog.Logger {
	return logging.WithContext(r.Context(), s.logger)
}
