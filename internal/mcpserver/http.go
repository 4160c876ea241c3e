package mcpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
)

// SSE returns the MCP SSE transport of s. baseURL is the public address
// clients use to reach the message endpoint, e.g. http://127.0.0.1:8000.
func (s *Server) SSE(baseURL string) *server.SSEServer {
	return server.NewSSEServer(s.mcp, server.WithBaseURL(baseURL))
}

// RouterOptions configure the HTTP surface of the SSE transport.
type RouterOptions struct {
	// Token enables Bearer authentication on every non-health route.
	Token string
	// Events is mounted at GET /events when set.
	Events http.Handler
	Logger *slog.Logger
}

// NewRouter mounts the MCP SSE transport (/sse, /message), the optional
// export event stream and the health checks on a chi router.
func NewRouter(transport *server.SSEServer, o RouterOptions) chi.Router {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(o.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(o.Token != "", o.Token))
		r.Handle("/sse", transport.SSEHandler())
		r.Handle("/message", transport.MessageHandler())
		if o.Events != nil {
			r.Get("/events", o.Events.ServeHTTP)
		}
	})
	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request. Streams are logged when they close.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
