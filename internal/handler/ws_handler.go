/*
Package handler provides the HTTP handler function for WebSocket connection upgrading
and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
authenticating the connecting client, upgrading the HTTP connection to WebSocket, and
initiating the client lifecycle.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"agrichat/internal/app/chat"
	"agrichat/internal/pkg/auth/jwt"
	"agrichat/internal/pkg/errs"
	"agrichat/internal/pkg/limiter"
	"agrichat/internal/pkg/logx"
	"agrichat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
//
// The token travels in a query parameter because browsers cannot set headers on
// WebSocket handshakes. The claimed identity is re-verified against the user
// store before the upgrade; a connection never acquires an identity any other way.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			logx.Warn("WebSocket request rejected: Missing token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: Invalid token", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		currentUser, err := deps.Users.GetUserByID(r.Context(), payload.ID)
		if err != nil {
			logx.Warn("WebSocket request rejected: Unknown account", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		logx.Info("Attempting to upgrade connection", "user_id", currentUser.ID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Hub, deps.ChatStore, conn, currentUser)

		go client.WritePump()

		deps.Hub.Register(client)

		logx.Info("WebSocket connection established", "user_id", currentUser.ID)

		client.ReadPump()
	}
}
