// Package chat holds the client side of a conversation: input validation,
// the request dispatcher and the ordered message transcript.
package chat

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/skincare-assistant/internal/domain"
)

// DefaultMaxImageBytes is the image size limit when none is configured.
const DefaultMaxImageBytes = 4 << 20

var (
	// ErrImageTooLarge is returned for images above the size limit.
	ErrImageTooLarge = errors.New("image is too large")
	// ErrUnsupportedImageType is returned for attachments that are not images.
	ErrUnsupportedImageType = errors.New("file must be an image")
	// ErrEmptyTurn is returned when a turn has neither text nor an image.
	ErrEmptyTurn = errors.New("message or image is required")
)

// ValidateImage checks the size and media type of an attachment. A missing or
// generic declared type is replaced by the sniffed one. A nil image is valid.
func ValidateImage(img *domain.Image, maxBytes int64) error {
	if img == nil {
		return nil
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if int64(len(img.Data)) > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrImageTooLarge, len(img.Data), maxBytes)
	}

	declared := strings.TrimSpace(img.MIMEType)
	if declared == "" || declared == "application/octet-stream" {
		declared = http.DetectContentType(img.Data)
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: %s", ErrUnsupportedImageType, declared)
	}
	img.MIMEType = mediaType
	return nil
}

// ValidateTurn rejects empty turns and invalid attachments.
func ValidateTurn(req domain.ChatRequest, maxImageBytes int64) error {
	if strings.TrimSpace(req.Message) == "" && req.Image == nil {
		return ErrEmptyTurn
	}
	return ValidateImage(req.Image, maxImageBytes)
}

// ReadImageFile loads an attachment from disk. Oversized files are rejected
// from their size alone, without being read.
func ReadImageFile(path string, maxBytes int64) (*domain.Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrImageTooLarge, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	img := &domain.Image{
		Data:     data,
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Filename: filepath.Base(path),
	}
	if err := ValidateImage(img, maxBytes); err != nil {
		return nil, err
	}
	return img, nil
}
