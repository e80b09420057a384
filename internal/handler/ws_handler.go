/*
Package handler provides the HTTP handlers and routing for the talkroom
server.

This file upgrades WebSocket connections and runs authentication before any
registry is touched. The transport accepts the upgrade unconditionally; an
invalid token is answered with an application close frame (4001) on the
already-upgraded socket.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"talkroom/internal/app/chat"
	"talkroom/internal/pkg/auth/jwt"
	"talkroom/internal/pkg/errs"
	"talkroom/internal/pkg/limiter"
	"talkroom/internal/pkg/logx"
	"talkroom/internal/pkg/resp"
)

const closeWriteWait = 10 * time.Second

// HandleWebSocket upgrades the connection, authenticates the token query
// parameter, and hands the connection to the hub.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: rate limit exceeded", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		// Authentication happens strictly before registration: a bad token
		// never touches a registry.
		token := r.URL.Query().Get("token")

		claims, err := jwt.VerifyToken(token, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket connection rejected: authentication failed", "ip", ip, "error", err.Error())

			closeMessage := websocket.FormatCloseMessage(
				chat.CloseCodeUnauthenticated,
				chat.CloseReasonUnauthenticated,
			)
			_ = sock.SetWriteDeadline(time.Now().Add(closeWriteWait))
			_ = sock.WriteMessage(websocket.CloseMessage, closeMessage)
			_ = sock.Close()
			return
		}

		identity := chat.Identity{
			UserID:   claims.UserID,
			Username: claims.Username,
		}

		conn := chat.NewConn(sock, identity)

		deps.Hub.Register(conn)

		if err := conn.SendFrame(chat.TypeWelcome, chat.WelcomePayload{User: identity}); err != nil {
			logx.Warn("Failed to queue WELCOME frame", "user_id", identity.UserID)
		}

		logx.Info("WebSocket connection established", "user_id", identity.UserID)

		deps.Hub.Serve(conn)
	}
}
