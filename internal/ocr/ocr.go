// Package ocr turns a plan image into markdown text through a vision chat
// model.
package ocr

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/villageroaster/bakeboard/internal/config"
)

// Prompt is the fixed instruction sent alongside every image.
const Prompt = "Extract all text from this image and return it in markdown format. " +
	"Include any lists, tables, or structured content you see."

// ErrNotConfigured is returned when the selected provider has no API key.
var ErrNotConfigured = eris.New("ocr: provider not configured")

// Extractor extracts text content from an image.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// NewExtractor creates an Extractor based on config. A missing key is not an
// error here; ExtractText reports ErrNotConfigured on each call instead.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Provider {
	case "mistral", "":
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel, cfg.MistralEndpoint, timeout), nil
	case "anthropic":
		return NewAnthropicOCR(cfg.AnthropicKey, cfg.AnthropicModel, cfg.MaxTokens, timeout), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// mediaType sniffs the image type, falling back to JPEG.
func mediaType(image []byte) string {
	ct := http.DetectContentType(image)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
