package domain

import (
	"encoding/base64"
	"errors"
	"strings"
)

// MaxProducts is the most products a single response may carry.
const MaxProducts = 3

var errInvalidDataURL = errors.New("invalid image data url")

// Image is an image attached to a user turn.
type Image struct {
	Data     []byte
	MIMEType string
	Filename string
}

// DataURL encodes the image as a base64 data URL.
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ParseDataURL decodes a base64 data URL into an Image.
func ParseDataURL(raw string) (*Image, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, errInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errInvalidDataURL
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, errInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errInvalidDataURL
	}
	return &Image{Data: data, MIMEType: mimeType}, nil
}

// ChatRequest is one user turn sent to the assistant.
type ChatRequest struct {
	Message string `json:"message"`
	Image   *Image `json:"-"`
}

// ChatResponse is the assistant's answer to a turn.
type ChatResponse struct {
	Response string    `json:"response"`
	Products []Product `json:"products"`
}
