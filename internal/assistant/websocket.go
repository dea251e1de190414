package assistant

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/skincare-assistant/internal/identity"
	"github.com/ashureev/skincare-assistant/internal/metrics"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// wsError is the frame sent for a failed turn.
type wsError struct {
	Error string `json:"error"`
}

// HandleWebSocket answers each text frame {message, image?} with one
// {response, products} or {error} frame.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	// Base64 inflates the image by a third.
	ws.SetReadLimit(h.maxBodyBytes*4/3 + 4096)

	slog.Info("Chat websocket connected", "user_id", userID, "session_id", sessionID)
	ctx := r.Context()
	ip := identity.IPFromRequest(r)
	turn := turnLog{channel: "chat_ws", userID: userID, sessionID: sessionID}

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Chat websocket closed by client", "user_id", userID)
			} else {
				slog.Warn("Chat websocket read error", "error", err, "user_id", userID)
			}
			return
		}

		if err := h.serveFrame(ctx, ws, data, ip, turn); err != nil {
			slog.Debug("Failed to write websocket frame", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *Handler) serveFrame(ctx context.Context, ws *websocket.Conn, data []byte, ip string, turn turnLog) error {
	if !h.rateLimiter.Allow(ip) {
		metrics.RateLimited.Inc()
		metrics.Turns.WithLabelValues("websocket", "rate_limited").Inc()
		return wsjson.Write(ctx, ws, wsError{Error: "rate limit exceeded"})
	}

	var body wireTurn
	if err := json.Unmarshal(data, &body); err != nil {
		metrics.Turns.WithLabelValues("websocket", "invalid").Inc()
		return wsjson.Write(ctx, ws, wsError{Error: errBadBody.Error()})
	}
	req, err := body.toRequest()
	if err != nil {
		metrics.Turns.WithLabelValues("websocket", "invalid").Inc()
		return wsjson.Write(ctx, ws, wsError{Error: err.Error()})
	}

	h.logUserMessage(turn, req)
	resp, err := h.backend.Ask(ctx, req)
	if err != nil {
		status, msg := classify(err)
		h.logFailure(turn, status, err)
		return wsjson.Write(ctx, ws, wsError{Error: msg})
	}

	metrics.Turns.WithLabelValues("websocket", "ok").Inc()
	h.logAssistantMessage(turn, resp)
	return wsjson.Write(ctx, ws, resp)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin)
	return false
}
