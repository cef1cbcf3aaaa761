package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/villageroaster/bakeboard/internal/resilience"
)

const (
	mistralChatEndpoint = "https://api.mistral.ai/v1/chat/completions"
	defaultMistralModel = "pixtral-large-latest"
	defaultTimeout      = 90 * time.Second
)

// MistralOCR extracts text through the Mistral chat completions API using a
// vision model.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewMistralOCR creates a MistralOCR extractor. Empty model, endpoint or
// timeout fall back to defaults.
func NewMistralOCR(apiKey, model, endpoint string, timeout time.Duration) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	if endpoint == "" {
		endpoint = mistralChatEndpoint
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type mistralChatRequest struct {
	Model    string           `json:"model"`
	Messages []mistralMessage `json:"messages"`
}

type mistralMessage struct {
	Role    string         `json:"role"`
	Content []mistralChunk `json:"content"`
}

type mistralChunk struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type mistralChatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractText sends the image as a data URI and returns the first choice's
// text. A response with no choices yields "".
func (m *MistralOCR) ExtractText(ctx context.Context, image []byte) (string, error) {
	if m.apiKey == "" {
		return "", ErrNotConfigured
	}

	dataURI := "data:" + mediaType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
	reqBody := mistralChatRequest{
		Model: m.model,
		Messages: []mistralMessage{{
			Role: "user",
			Content: []mistralChunk{
				{Type: "text", Text: Prompt},
				{Type: "image_url", ImageURL: dataURI},
			},
		}},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", eris.Wrap(err, "ocr: marshal mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "ocr: mistral API call"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "ocr: read mistral response"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, truncate(string(respBody), 300))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", err
	}

	var chatResp mistralChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", eris.Wrap(err, "ocr: unmarshal mistral response")
	}
	if len(chatResp.Choices) == 0 {
		zap.L().Warn("ocr: mistral returned no choices", zap.String("model", m.model))
		return "", nil
	}

	text, err := contentText(chatResp.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}
	zap.L().Debug("ocr: mistral extracted text",
		zap.String("model", m.model),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

// contentText accepts either a plain string or an array of chunks, joining
// the text chunks.
func contentText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var chunks []mistralChunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return "", eris.Wrap(err, "ocr: decode mistral content")
	}
	var sb strings.Builder
	for _, c := range chunks {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
