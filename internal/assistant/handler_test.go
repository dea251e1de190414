package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/ashureev/skincare-assistant/internal/llm"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T, model *fakeLLM, limit int) http.Handler {
	t.Helper()
	svc := NewService(model, &fakeRecommender{products: []domain.Product{{ID: "nia", Name: "Niacinamide"}}}, 400, 4<<20, nil)
	rl := NewRateLimiter(limit, time.Minute)
	t.Cleanup(rl.Stop)
	h := NewHandler(svc, rl, nil, Options{MaxRequestBodyBytes: 6 << 20, IsDev: true})

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, message string, image []byte, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("message", message); err != nil {
		t.Fatal(err)
	}
	if image != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="skin.jpg"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleChatJSON(t *testing.T) {
	model := &fakeLLM{reply: "Use **Niacinamide**."}
	h := newTestRouter(t, model, 10)

	w := postJSON(h, "/api/chat", `{"message":"oily skin"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp domain.ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Response != "Use **Niacinamide**." || len(resp.Products) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleChatFunctionAlias(t *testing.T) {
	h := newTestRouter(t, &fakeLLM{reply: "ok"}, 10)
	if w := postJSON(h, "/functions/v1/skincare-assistant", `{"message":"hi"}`); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
}

func TestHandleChatMultipartImage(t *testing.T) {
	model := &fakeLLM{reply: "Looks dry."}
	h := newTestRouter(t, model, 10)

	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 3<<20)...)
	body, ct := multipartBody(t, "", jpeg, "image/jpeg")
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if model.last.Image == nil || len(model.last.Image.Data) != len(jpeg) {
		t.Fatal("expected image to be forwarded to the model")
	}
	if model.last.UserText != DefaultImageQuestion {
		t.Errorf("expected default question, got %q", model.last.UserText)
	}
}

func TestHandleChatRejectsInvalidInput(t *testing.T) {
	model := &fakeLLM{reply: "ok"}
	h := newTestRouter(t, model, 100)

	tests := []struct {
		name string
		req  func() *http.Request
		want int
	}{
		{
			name: "empty message",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"   "}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			want: http.StatusBadRequest,
		},
		{
			name: "malformed json",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":`))
			},
			want: http.StatusBadRequest,
		},
		{
			name: "bad data url",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"x","image":"nope"}`))
			},
			want: http.StatusBadRequest,
		},
		{
			name: "five megabyte image",
			req: func() *http.Request {
				body, ct := multipartBody(t, "look", make([]byte, 5<<20), "image/jpeg")
				r := httptest.NewRequest(http.MethodPost, "/api/chat", body)
				r.Header.Set("Content-Type", ct)
				return r
			},
			want: http.StatusBadRequest,
		},
		{
			name: "pdf upload",
			req: func() *http.Request {
				body, ct := multipartBody(t, "look", []byte("%PDF-1.4"), "application/pdf")
				r := httptest.NewRequest(http.MethodPost, "/api/chat", body)
				r.Header.Set("Content-Type", ct)
				return r
			},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, tt.req())
			if w.Code != tt.want {
				t.Fatalf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
	if model.callCount() != 0 {
		t.Fatalf("expected no model calls for invalid input, got %d", model.callCount())
	}
}

func TestHandleChatUpstreamFailure(t *testing.T) {
	h := newTestRouter(t, &fakeLLM{err: llm.ErrUpstream}, 10)

	w := postJSON(h, "/api/chat", `{"message":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body["error"] != failedToRespond {
		t.Errorf("expected generic error, got %q", body["error"])
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	h := newTestRouter(t, &fakeLLM{reply: "ok"}, 2)

	for i := 0; i < 2; i++ {
		if w := postJSON(h, "/api/chat", `{"message":"hi"}`); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	if w := postJSON(h, "/api/chat", `{"message":"hi"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", w.Code)
	}
}

func TestHandleWebSocket(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, &fakeLLM{reply: "Use **Niacinamide**."}, 10))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/chat", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	if err := wsjson.Write(ctx, conn, map[string]string{"message": "oily skin"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var resp domain.ChatResponse
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if resp.Response != "Use **Niacinamide**." || len(resp.Products) != 1 {
		t.Errorf("unexpected frame %+v", resp)
	}

	if err := wsjson.Write(ctx, conn, map[string]string{"message": ""}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var failure map[string]string
	if err := wsjson.Read(ctx, conn, &failure); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if failure["error"] == "" {
		t.Errorf("expected error frame, got %v", failure)
	}
}
