// Package ui serves the server-rendered chat page. Each visitor tab gets its
// own session from the chat registry; turns posted from the page run through
// the same session logic as the terminal client.
package ui

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ashureev/skincare-assistant/internal/assistant"
	"github.com/ashureev/skincare-assistant/internal/chat"
	"github.com/ashureev/skincare-assistant/internal/config"
	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/ashureev/skincare-assistant/internal/identity"
	"github.com/ashureev/skincare-assistant/internal/metrics"
	"github.com/ashureev/skincare-assistant/internal/render"
	"github.com/ashureev/skincare-assistant/web"
	"github.com/go-chi/chi/v5"
)

const (
	flashCookieName = "glow_flash"
	failedToRespond = "Failed to get response. Please try again."
	rateLimited     = "rate limit exceeded"
	defaultMaxBody  = 6 << 20
)

// Handler renders the chat page and accepts form posts.
type Handler struct {
	registry      *chat.Registry
	pages         *template.Template
	log           assistant.ConversationLogger
	rateLimiter   *assistant.RateLimiter
	maxBodyBytes  int64
	maxImageBytes int64
	isDev         bool
}

// Options configures a Handler.
type Options struct {
	MaxRequestBodyBytes int64
	MaxImageBytes       int64
	IsDev               bool
	// RateLimiter is shared with the API routes so form posts draw on the
	// same per-client budget. Nil disables throttling.
	RateLimiter         *assistant.RateLimiter
}

// NewHandler parses the embedded templates and returns a UI handler.
// convLog may be nil.
func NewHandler(registry *chat.Registry, convLog assistant.ConversationLogger, opts Options) (*Handler, error) {
	pages, err := template.New("index.html").ParseFS(web.Templates(), "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if convLog == nil {
		convLog, _ = assistant.NewConversationLogger(config.ConversationLogConfig{}, nil)
	}
	if opts.MaxRequestBodyBytes <= 0 {
		opts.MaxRequestBodyBytes = defaultMaxBody
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = chat.DefaultMaxImageBytes
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = assistant.NewRateLimiter(0, 0)
	}
	return &Handler{
		registry:      registry,
		pages:         pages,
		log:           convLog,
		rateLimiter:   opts.RateLimiter,
		maxBodyBytes:  opts.MaxRequestBodyBytes,
		maxImageBytes: opts.MaxImageBytes,
		isDev:         opts.IsDev,
	}, nil
}

// RegisterRoutes registers the page routes and static assets.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleIndex)
	r.Post("/chat", h.HandleChat)
	r.Post("/reset", h.HandleReset)
	r.Handle("/static/*", web.StaticHandler())
}

type messageView struct {
	domain.Message
	Body     template.HTML
	Layout   render.Layout
	ImageSrc template.URL
}

type pageData struct {
	SessionID  string
	Messages   []messageView
	Flash      string
	MaxImageMB int64
}

// HandleIndex renders the transcript of the caller's session.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	session := h.registry.GetOrCreate(userID, sessionID)

	msgs := session.Transcript.Messages()
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView{
			Message:  m,
			Body:     render.Markup(m.Text),
			Layout:   render.LayoutFor(m.Products),
			ImageSrc: imageSrc(m.ImageURL),
		})
	}

	data := pageData{
		SessionID:  sessionID,
		Messages:   views,
		Flash:      h.takeFlash(w, r),
		MaxImageMB: h.maxImageBytes >> 20,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.pages.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("Failed to render chat page", "error", err, "user_id", userID)
	}
}

// HandleChat runs one turn posted from the page and redirects back to it.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if !h.rateLimiter.Allow(identity.IPFromRequest(r)) {
		metrics.RateLimited.Inc()
		metrics.Turns.WithLabelValues("ui", "rate_limited").Inc()
		h.setFlash(w, rateLimited)
		h.redirect(w, r, sessionID)
		return
	}
	session := h.registry.GetOrCreate(userID, sessionID)

	text, img, err := h.readForm(w, r)
	if err != nil {
		metrics.Turns.WithLabelValues("ui", "invalid").Inc()
		h.setFlash(w, err.Error())
		h.redirect(w, r, sessionID)
		return
	}

	h.log.Log(assistant.ConversationLogEvent{
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    "chat_ui",
		Direction:  "inbound",
		EventType:  "chat_user_message",
		ContentRaw: text,
		Meta:       map[string]any{"has_image": img != nil},
	})

	resp, err := session.Send(r.Context(), text, img)
	switch {
	case err == nil:
		metrics.Turns.WithLabelValues("ui", "ok").Inc()
		h.log.Log(assistant.ConversationLogEvent{
			UserID:     userID,
			SessionID:  sessionID,
			Channel:    "chat_ui",
			Direction:  "outbound",
			EventType:  "chat_assistant_message",
			ContentRaw: resp.Response,
			Meta:       map[string]any{"product_ids": domain.ProductIDs(resp.Products)},
		})
	case isValidation(err):
		metrics.Turns.WithLabelValues("ui", "invalid").Inc()
		h.setFlash(w, err.Error())
	default:
		slog.Error("Chat page turn failed", "error", err, "user_id", userID, "session_id", sessionID)
		metrics.Turns.WithLabelValues("ui", "error").Inc()
		h.log.Log(assistant.ConversationLogEvent{
			UserID:     userID,
			SessionID:  sessionID,
			Channel:    "chat_ui",
			Direction:  "outbound",
			EventType:  "chat_error",
			ContentRaw: err.Error(),
		})
		h.setFlash(w, failedToRespond)
	}

	h.redirect(w, r, sessionID)
}

// HandleReset clears the caller's transcript back to the greeting.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if session := h.registry.Get(userID, sessionID); session != nil {
		session.Reset()
		slog.Info("Chat session reset", "user_id", userID, "session_id", sessionID)
	}
	h.redirect(w, r, sessionID)
}

func (h *Handler) readForm(w http.ResponseWriter, r *http.Request) (string, *domain.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, chat.ErrImageTooLarge
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return "", nil, errors.New("invalid form submission")
		}
		// Plain urlencoded forms carry text only.
		if err := r.ParseForm(); err != nil {
			return "", nil, errors.New("invalid form submission")
		}
		return r.PostFormValue("message"), nil, nil
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	text := r.FormValue("message")
	file, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return text, nil, nil
	}
	if err != nil {
		return "", nil, errors.New("invalid image upload")
	}
	defer func() { _ = file.Close() }()

	// Browsers send an empty part when no file is picked.
	if hdr.Size == 0 && hdr.Filename == "" {
		return text, nil, nil
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, errors.New("invalid image upload")
	}
	return text, &domain.Image{
		Data:     data,
		MIMEType: hdr.Header.Get("Content-Type"),
		Filename: hdr.Filename,
	}, nil
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, sessionID string) {
	target := "/"
	if sessionID != identity.DefaultSessionIDValue {
		target += "?session_id=" + url.QueryEscape(sessionID)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Flash messages survive one redirect in a short-lived cookie.
func (h *Handler) setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !h.isDev,
	})
}

func (h *Handler) takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", MaxAge: -1})
	msg, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(msg)
}

func isValidation(err error) bool {
	return errors.Is(err, chat.ErrEmptyTurn) ||
		errors.Is(err, chat.ErrImageTooLarge) ||
		errors.Is(err, chat.ErrUnsupportedImageType)
}

// imageSrc trusts only inline image data URLs produced by the transcript.
func imageSrc(raw string) template.URL {
	if !strings.HasPrefix(raw, "data:image/") {
		return ""
	}
	return template.URL(raw) //nolint:gosec // data URL built from a validated upload
}
