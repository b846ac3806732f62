// Package server is the HTTP front-end: it frames inbound requests into
// internal/handler.Request, writes handler.Result back onto the wire
// (including streaming bodies), and carries the ambient concerns a
// transport layer owns — auth, CORS, request logging, body-size limits,
// health, metrics exposition, and API documentation.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/handler"
)

// Server wraps the request handler with an HTTP transport.
type Server struct {
	cfg        *config.RuntimeConfig
	handler    *handler.Handler
	httpServer *http.Server
	logger     *logrus.Logger
	openapiDoc *openapi3.T
}

// New builds a Server. It does not start listening until Start is called.
func New(cfg *config.RuntimeConfig, h *handler.Handler, logger *logrus.Logger) (*Server, error) {
	doc, err := loadOpenAPIDoc()
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, handler: h, logger: logger, openapiDoc: doc}, nil
}

// Start runs the HTTP server until it errors or Stop is called.
func (s *Server) Start() error {
	port := s.cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	s.httpServer = &http.Server{
		Addr:           ":" + port,
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}
	s.logger.WithField("port", port).Info("llm-router HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("llm-router HTTP server stopping")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.contentTypeMiddleware)
	r.Use(s.authMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleAutoRoute).Methods(http.MethodPost)
	r.HandleFunc("/route", s.handleAutoRoute).Methods(http.MethodPost)

	r.HandleFunc("/v1/chat/completions", s.handleOpenAIRoute).Methods(http.MethodPost)
	r.HandleFunc("/openai/v1/chat/completions", s.handleOpenAIRoute).Methods(http.MethodPost)
	r.HandleFunc("/v1/messages", s.handleClaudeRoute).Methods(http.MethodPost)
	r.HandleFunc("/anthropic/v1/messages", s.handleClaudeRoute).Methods(http.MethodPost)

	r.HandleFunc("/v1/models", s.handleModels(config.FormatOpenAI)).Methods(http.MethodGet)
	r.HandleFunc("/openai/v1/models", s.handleModels(config.FormatOpenAI)).Methods(http.MethodGet)
	r.HandleFunc("/anthropic/v1/models", s.handleModels(config.FormatClaude)).Methods(http.MethodGet)

	r.HandleFunc("/openapi.json", s.handleOpenAPISpec).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleDocs).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			s.writeCORSPreflight(w, r)
			return
		}
		writeErrorText(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			s.writeCORSPreflight(w, r)
			return
		}
		writeErrorText(w, http.StatusNotFound, "not found")
	})

	return r
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("x-request-id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("x-request-id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
			"request_id":  r.Context().Value(requestIDKey{}),
		}).Info("http request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeCORSPreflight(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w, r)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	cors := s.cfg.Server.CORS
	origin := "*"
	if len(cors.AllowedOrigins) > 0 {
		origin = ""
		requested := r.Header.Get("Origin")
		for _, o := range cors.AllowedOrigins {
			if o == "*" || o == requested {
				origin = o
				break
			}
		}
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	methods := "GET, POST, OPTIONS"
	if len(cors.AllowedMethods) > 0 {
		methods = joinComma(cors.AllowedMethods)
	}
	headers := "Content-Type, Authorization, x-api-key"
	if len(cors.AllowedHeaders) > 0 {
		headers = joinComma(cors.AllowedHeaders)
	}
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", headers)
}

func joinComma(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ct := r.Header.Get("Content-Type")
			if ct != "" && ct != "application/json" {
				writeErrorText(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
			limit := s.cfg.Server.MaxRequestBodyBytes
			if limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"providers": len(s.cfg.Providers),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "llm-router",
		"endpoints": []string{
			"/health",
			"/v1/chat/completions",
			"/openai/v1/chat/completions",
			"/v1/messages",
			"/anthropic/v1/messages",
			"/route",
			"/v1/models",
			"/openapi.json",
			"/docs",
			"/metrics",
		},
	})
}

func writeErrorText(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
