package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

const maxResponseBytes = 1 << 20

var (
	// ErrUpstreamStatus is returned when the assistant endpoint answers with a non-2xx status.
	ErrUpstreamStatus = errors.New("assistant endpoint returned an error status")
	// ErrMissingField is returned when a successful payload has no response text.
	ErrMissingField = errors.New("assistant payload is missing the response field")
)

// Backend answers one chat turn.
type Backend interface {
	Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// Dispatcher sends turns to a remote assistant endpoint.
type Dispatcher struct {
	endpoint      string
	apiKey        string
	maxImageBytes int64
	httpClient    *http.Client
}

// NewDispatcher creates a dispatcher for the given endpoint URL. apiKey is
// optional and sent both as a bearer token and as an apikey header.
func NewDispatcher(endpoint, apiKey string, timeout time.Duration, maxImageBytes int64) *Dispatcher {
	return &Dispatcher{
		endpoint:      endpoint,
		apiKey:        apiKey,
		maxImageBytes: maxImageBytes,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// Ask validates and sends one turn. Text-only turns are sent as JSON; turns
// with an image are sent as multipart/form-data.
func (d *Dispatcher) Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := ValidateTurn(req, d.maxImageBytes); err != nil {
		return nil, err
	}

	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
		httpReq.Header.Set("apikey", d.apiKey)
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("%w: %d: %s", ErrUpstreamStatus, resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	var payload struct {
		Response *string         `json:"response"`
		Products []domain.Product `json:"products"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Response == nil {
		return nil, ErrMissingField
	}
	if payload.Products == nil {
		payload.Products = []domain.Product{}
	}
	return &domain.ChatResponse{Response: *payload.Response, Products: payload.Products}, nil
}

func encodeRequest(req domain.ChatRequest) (io.Reader, string, error) {
	if req.Image == nil {
		data, err := json.Marshal(req)
		if err != nil {
			return nil, "", fmt.Errorf("encode request: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("message", req.Message); err != nil {
		return nil, "", fmt.Errorf("write message field: %w", err)
	}

	filename := req.Image.Filename
	if filename == "" {
		filename = "image"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", req.Image.MIMEType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(req.Image.Data); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
