package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/ashureev/skincare-assistant/internal/api"
	"github.com/ashureev/skincare-assistant/internal/chat"
	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/ashureev/skincare-assistant/internal/identity"
	"github.com/ashureev/skincare-assistant/internal/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size.
const defaultMaxRequestBodySize = 6 << 20

// failedToRespond is the only upstream failure detail shown to callers.
const failedToRespond = "assistant failed to respond"

var (
	errBodyTooLarge = errors.New("request body too large")
	errBadBody      = errors.New("invalid request body")
)

// Options configures a Handler.
type Options struct {
	MaxRequestBodyBytes int64
	AllowedOrigins      []string
	IsDev               bool
}

// Handler serves the assistant endpoint over HTTP and websocket.
type Handler struct {
	backend        chat.Backend
	rateLimiter    *RateLimiter
	log            ConversationLogger
	maxBodyBytes   int64
	allowedOrigins []string
	isDev          bool
}

// NewHandler creates an assistant handler. rateLimiter and convLog may be nil.
func NewHandler(backend chat.Backend, rateLimiter *RateLimiter, convLog ConversationLogger, opts Options) *Handler {
	if convLog == nil {
		convLog = noopConversationLogger{}
	}
	if rateLimiter == nil {
		rateLimiter = NewRateLimiter(0, 0)
	}
	if opts.MaxRequestBodyBytes <= 0 {
		opts.MaxRequestBodyBytes = defaultMaxRequestBodySize
	}
	return &Handler{
		backend:        backend,
		rateLimiter:    rateLimiter,
		log:            convLog,
		maxBodyBytes:   opts.MaxRequestBodyBytes,
		allowedOrigins: opts.AllowedOrigins,
		isDev:          opts.IsDev,
	}
}

// RegisterRoutes registers the assistant routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
	r.Post("/functions/v1/skincare-assistant", h.HandleChat)
	r.Get("/ws/chat", h.HandleWebSocket)
}

// HandleChat answers one turn sent as JSON or multipart/form-data.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	// Rate-limit by client address so clients cannot bypass throttling by
	// dropping the identity cookie.
	if !h.rateLimiter.Allow(identity.IPFromRequest(r)) {
		metrics.RateLimited.Inc()
		metrics.Turns.WithLabelValues("http", "rate_limited").Inc()
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	req, err := h.decodeTurn(w, r)
	if err != nil {
		status, msg := classify(err)
		metrics.Turns.WithLabelValues("http", "invalid").Inc()
		api.Error(w, status, msg)
		return
	}

	turn := turnLog{
		channel:   "chat_http",
		userID:    userID,
		sessionID: sessionID,
		requestID: chiMiddleware.GetReqID(r.Context()),
	}
	h.logUserMessage(turn, req)

	resp, err := h.backend.Ask(r.Context(), req)
	if err != nil {
		status, msg := classify(err)
		h.logFailure(turn, status, err)
		api.Error(w, status, msg)
		return
	}

	metrics.Turns.WithLabelValues("http", "ok").Inc()
	h.logAssistantMessage(turn, resp)
	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) decodeTurn(w http.ResponseWriter, r *http.Request) (domain.ChatRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return decodeMultipart(r, h.maxBodyBytes)
	}

	var body wireTurn
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return domain.ChatRequest{}, bodyError(err)
	}
	return body.toRequest()
}

func decodeMultipart(r *http.Request, maxMemory int64) (domain.ChatRequest, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return domain.ChatRequest{}, bodyError(err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := domain.ChatRequest{Message: r.FormValue("message")}

	file, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return domain.ChatRequest{}, bodyError(err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.ChatRequest{}, bodyError(err)
	}
	req.Image = &domain.Image{
		Data:     data,
		MIMEType: hdr.Header.Get("Content-Type"),
		Filename: hdr.Filename,
	}
	return req, nil
}

// wireTurn is the JSON form of a turn. Image is an optional base64 data URL.
type wireTurn struct {
	Message string `json:"message"`
	Image   string `json:"image,omitempty"`
}

func (t wireTurn) toRequest() (domain.ChatRequest, error) {
	req := domain.ChatRequest{Message: t.Message}
	if t.Image == "" {
		return req, nil
	}
	img, err := domain.ParseDataURL(t.Image)
	if err != nil {
		return domain.ChatRequest{}, fmt.Errorf("%w: image must be a base64 data URL", errBadBody)
	}
	req.Image = img
	return req, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errBodyTooLarge
	}
	return errBadBody
}

// classify maps a turn error to a status code and a caller-safe message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, errBodyTooLarge.Error()
	case errors.Is(err, errBadBody),
		errors.Is(err, chat.ErrEmptyTurn),
		errors.Is(err, chat.ErrImageTooLarge),
		errors.Is(err, chat.ErrUnsupportedImageType):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, failedToRespond
	}
}

type turnLog struct {
	channel   string
	userID    string
	sessionID string
	requestID string
}

func (h *Handler) logUserMessage(t turnLog, req domain.ChatRequest) {
	slog.Info("Assistant chat request",
		"channel", t.channel,
		"user_id", t.userID,
		"session_id", t.sessionID,
		"message_length", len(req.Message),
		"has_image", req.Image != nil)
	meta := map[string]any{"request_id": t.requestID, "has_image": req.Image != nil}
	if req.Image != nil {
		meta["image_bytes"] = len(req.Image.Data)
		meta["image_type"] = req.Image.MIMEType
	}
	h.log.Log(ConversationLogEvent{
		UserID:     t.userID,
		SessionID:  t.sessionID,
		Channel:    t.channel,
		Direction:  "inbound",
		EventType:  "chat_user_message",
		ContentRaw: req.Message,
		Meta:       meta,
	})
}

func (h *Handler) logAssistantMessage(t turnLog, resp *domain.ChatResponse) {
	h.log.Log(ConversationLogEvent{
		UserID:     t.userID,
		SessionID:  t.sessionID,
		Channel:    t.channel,
		Direction:  "outbound",
		EventType:  "chat_assistant_message",
		ContentRaw: resp.Response,
		Meta: map[string]any{
			"request_id":  t.requestID,
			"product_ids": domain.ProductIDs(resp.Products),
		},
	})
}

func (h *Handler) logFailure(t turnLog, status int, err error) {
	outcome := "error"
	if status == http.StatusBadRequest {
		outcome = "invalid"
	} else {
		slog.Error("Assistant turn failed",
			"channel", t.channel,
			"user_id", t.userID,
			"session_id", t.sessionID,
			"error", err)
	}
	metrics.Turns.WithLabelValues(transportOf(t.channel), outcome).Inc()
	h.log.Log(ConversationLogEvent{
		UserID:     t.userID,
		SessionID:  t.sessionID,
		Channel:    t.channel,
		Direction:  "outbound",
		EventType:  "chat_error",
		ContentRaw: err.Error(),
		Meta:       map[string]any{"request_id": t.requestID, "status": status},
	})
}

func transportOf(channel string) string {
	switch channel {
	case "chat_ws":
		return "websocket"
	case "chat_ui":
		return "ui"
	default:
		return "http"
	}
}
