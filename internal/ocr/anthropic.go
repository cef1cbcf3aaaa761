package ocr

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/villageroaster/bakeboard/internal/resilience"
	"github.com/villageroaster/bakeboard/pkg/anthropic"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultMaxTokens      = 2048
)

// AnthropicOCR extracts text through the Anthropic Messages API.
type AnthropicOCR struct {
	configured bool
	model      string
	maxTokens  int64
	client     anthropic.Client
}

// NewAnthropicOCR creates an AnthropicOCR extractor.
func NewAnthropicOCR(apiKey, model string, maxTokens int64, timeout time.Duration) *AnthropicOCR {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return newAnthropicOCR(apiKey != "", model, maxTokens,
		anthropic.NewClient(apiKey, option.WithRequestTimeout(timeout)))
}

func newAnthropicOCR(configured bool, model string, maxTokens int64, client anthropic.Client) *AnthropicOCR {
	if model == "" {
		model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicOCR{configured: configured, model: model, maxTokens: maxTokens, client: client}
}

// ExtractText sends the image as a base64 block followed by the prompt and
// returns the joined text blocks.
func (a *AnthropicOCR) ExtractText(ctx context.Context, image []byte) (string, error) {
	if !a.configured {
		return "", ErrNotConfigured
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: Prompt,
			Images:  []anthropic.Image{{MediaType: mediaType(image), Data: image}},
		}},
	})
	if err != nil {
		code := anthropic.StatusCode(err)
		if code == 0 || resilience.IsTransientHTTPStatus(code) {
			return "", resilience.NewTransientError(eris.Wrap(err, "ocr: anthropic call"), code)
		}
		return "", eris.Wrap(err, "ocr: anthropic call")
	}

	resp.Usage.LogCost(a.model, "ocr")
	return resp.Text(), nil
}
