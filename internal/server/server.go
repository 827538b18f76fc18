package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/observer/chatwave/docs" // registers the OpenAPI document
	"github.com/observer/chatwave/internal/api"
	"github.com/observer/chatwave/internal/auth"
	"github.com/observer/chatwave/internal/config"
	"github.com/observer/chatwave/internal/middleware"
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Health(ctx context.Context) error
}

// Dependencies holds all service dependencies for the server
type Dependencies struct {
	DB             Pinger
	Authenticator  auth.Authenticator
	RateLimiter    *middleware.RateLimiter
	AuthHandler    *api.AuthHandler
	UserHandler    *api.UserHandler
	MessageHandler *api.MessageHandler
	GroupHandler   *api.GroupHandler
	UploadHandler  *api.UploadHandler // nil when object storage is not configured
	CallHandler    *api.CallHandler
	WSHandler      http.Handler
	Metrics        http.Handler
	StaticDir      string
	Logger         *slog.Logger
}

// New creates an HTTP server with all routes configured.
func New(cfg *config.Config, deps *Dependencies) *http.Server {
	return &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     NewHandler(cfg, deps),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would cut long-lived WebSocket connections
		IdleTimeout: 60 * time.Second,
	}
}

// NewHandler builds the routed and wrapped handler
func NewHandler(cfg *config.Config, deps *Dependencies) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	return chainMiddleware(mux,
		requestIDMiddleware,
		corsMiddleware(cfg),
		loggingMiddleware(deps.Logger),
		recoverMiddleware(deps.Logger),
	)
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check - essential for docker, k8s, load balancers
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, `{"status":"ok"}`)
	})

	// Ready check - verifies DB connectivity
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.Health(r.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, `{"status":"not ready","error":"database unavailable"}`)
				return
			}
		}
		writeStatus(w, http.StatusOK, `{"status":"ready"}`)
	})

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// =========================================================================
	// Auth routes (public)
	// =========================================================================
	mux.HandleFunc("POST /auth/register", deps.AuthHandler.Register)
	mux.HandleFunc("POST /auth/login", deps.AuthHandler.Login)
	mux.HandleFunc("POST /auth/refresh", deps.AuthHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", deps.AuthHandler.Logout)

	// =========================================================================
	// Protected routes (require auth, rate limited per user)
	// =========================================================================
	protected := func(h http.HandlerFunc) http.Handler {
		var next http.Handler = h
		if deps.RateLimiter != nil {
			next = deps.RateLimiter.Middleware(next)
		}
		return auth.Middleware(deps.Authenticator)(next)
	}

	mux.Handle("GET /auth/me", protected(deps.AuthHandler.Me))
	mux.Handle("POST /auth/logout-all", protected(deps.AuthHandler.LogoutAll))

	// =========================================================================
	// User routes
	// =========================================================================
	mux.Handle("GET /users/search", protected(deps.UserHandler.Search))
	mux.Handle("GET /users/me", protected(deps.AuthHandler.Me))
	mux.Handle("PUT /users/me", protected(deps.UserHandler.UpdateProfile))
	mux.Handle("GET /users/{id}", protected(deps.UserHandler.GetByID))

	// =========================================================================
	// Direct message routes
	// =========================================================================
	mux.Handle("POST /messages", protected(deps.MessageHandler.Send))
	mux.Handle("DELETE /messages/{id}", protected(deps.MessageHandler.Delete))
	mux.Handle("POST /messages/{id}/forward", protected(deps.MessageHandler.Forward))
	mux.Handle("GET /conversations/{peerID}/messages", protected(deps.MessageHandler.History))

	// =========================================================================
	// Group routes
	// =========================================================================
	mux.Handle("POST /groups", protected(deps.GroupHandler.Create))
	mux.Handle("GET /groups", protected(deps.GroupHandler.List))
	mux.Handle("GET /groups/{id}", protected(deps.GroupHandler.Get))
	mux.Handle("POST /groups/{id}/members", protected(deps.GroupHandler.AddMember))
	mux.Handle("DELETE /groups/{id}/members/{userID}", protected(deps.GroupHandler.RemoveMember))
	mux.Handle("GET /groups/{id}/messages", protected(deps.GroupHandler.Messages))
	mux.Handle("POST /groups/{id}/messages", protected(deps.GroupHandler.SendMessage))

	// =========================================================================
	// Upload routes
	// =========================================================================
	if deps.UploadHandler != nil {
		mux.Handle("POST /uploads/init", protected(deps.UploadHandler.InitUpload))
		mux.Handle("POST /uploads/complete", protected(deps.UploadHandler.CompleteUpload))
		mux.Handle("GET /attachments/{id}/url", protected(deps.UploadHandler.GetAttachmentURL))
	}

	mux.Handle("GET /calls/ice-servers", protected(deps.CallHandler.ICEServers))

	// =========================================================================
	// WebSocket route (authenticates its own handshake)
	// =========================================================================
	mux.Handle("GET /ws", deps.WSHandler)

	// =========================================================================
	// Static files (frontend) - serve at root
	// =========================================================================
	if deps.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(deps.StaticDir)))
	}
}

func writeStatus(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
