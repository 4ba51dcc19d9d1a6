/*
Package handler provides the HTTP handlers and routing setup for the AgriChat server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (REST API
and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"agrichat/internal/pkg/auth/jwt"
	"agrichat/internal/pkg/limiter"
	"agrichat/internal/pkg/logx"
	"agrichat/internal/pkg/resp"
)

const (
	AuthRate     = 0.2
	AuthBurst    = 5
	ConnectRate  = 0.2
	ConnectBurst = 5
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and
// per-route middleware.
func Router(deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "AgriChat Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
			auth.Post("/change-password", HandleChangePassword(deps))
		})

		api.Get("/user/profile", HandleGetUserProfile(deps))

		api.Route("/conversations", func(conv chi.Router) {
			conv.Get("/", HandleListConversations(deps))
			conv.Get("/{id}/messages", HandleListMessages(deps))
			conv.Post("/{id}/messages", HandleCreateMessage(deps))
		})

		api.Post("/file/presign-upload", HandlePresignUploadURL(deps))
		api.Get("/file/presign-download", HandlePresignDownloadURL(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
