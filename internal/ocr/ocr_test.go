package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/villageroaster/bakeboard/internal/config"
	"github.com/villageroaster/bakeboard/internal/resilience"
	"github.com/villageroaster/bakeboard/pkg/anthropic"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewExtractor_MistralDefault(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "", TimeoutSecs: 5})
	require.NoError(t, err)
	m, ok := ext.(*MistralOCR)
	require.True(t, ok)
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralChatEndpoint, m.endpoint)
	assert.Equal(t, 5*time.Second, m.client.Timeout)
}

func TestNewExtractor_Anthropic(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "anthropic", AnthropicKey: "k"})
	require.NoError(t, err)
	a, ok := ext.(*AnthropicOCR)
	require.True(t, ok)
	assert.True(t, a.configured)
	assert.Equal(t, defaultAnthropicModel, a.model)
	assert.Equal(t, int64(defaultMaxTokens), a.maxTokens)
}

func TestNewExtractor_UnknownProvider(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "tesseract"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "tesseract"`)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "image/png", mediaType(pngHeader))
	assert.Equal(t, "image/jpeg", mediaType([]byte{0xff, 0xd8, 0xff, 0xe0}))
	assert.Equal(t, "image/jpeg", mediaType([]byte("not an image")))
}

func TestMistralOCR_MissingKeyMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	m := NewMistralOCR("", "", srv.URL, 0)
	_, err := m.ExtractText(context.Background(), pngHeader)
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, calls.Load())
}

func TestMistralOCR_RequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req mistralChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pixtral-large-latest", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		require.Len(t, req.Messages[0].Content, 2)
		assert.Equal(t, Prompt, req.Messages[0].Content[0].Text)
		assert.Equal(t, "image_url", req.Messages[0].Content[1].Type)
		assert.True(t, strings.HasPrefix(req.Messages[0].Content[1].ImageURL, "data:image/png;base64,"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"# Bake\n- Croissant"}}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	m := NewMistralOCR("test-key", "", srv.URL, time.Second)
	text, err := m.ExtractText(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "# Bake\n- Croissant", text)
}

func TestMistralOCR_ChunkArrayContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"Scone\n"},{"type":"reference","reference_ids":[1]},{"type":"text","text":"Muffin"}]}}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	text, err := NewMistralOCR("k", "", srv.URL, 0).ExtractText(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "Scone\nMuffin", text)
}

func TestMistralOCR_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	text, err := NewMistralOCR("k", "", srv.URL, 0).ExtractText(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestMistralOCR_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewMistralOCR("k", "", srv.URL, 0).ExtractText(context.Background(), pngHeader)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "mistral API returned 500")
}

func TestMistralOCR_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewMistralOCR("k", "", srv.URL, 0).ExtractText(context.Background(), pngHeader)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestMistralOCR_TransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewMistralOCR("k", "", url, time.Second).ExtractText(context.Background(), pngHeader)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestContentText(t *testing.T) {
	s, err := contentText(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = contentText(json.RawMessage(`{"x":1}`))
	require.Error(t, err)
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*anthropic.MessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestAnthropicOCR_MissingKeyMakesNoCall(t *testing.T) {
	client := &mockClient{}
	a := newAnthropicOCR(false, "", 0, client)

	_, err := a.ExtractText(context.Background(), pngHeader)
	require.ErrorIs(t, err, ErrNotConfigured)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestAnthropicOCR_ExtractText(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 &&
			req.Messages[0].Content == Prompt &&
			len(req.Messages[0].Images) == 1 &&
			req.Messages[0].Images[0].MediaType == "image/png"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "- Baguette"}},
		Usage:   anthropic.TokenUsage{InputTokens: 900, OutputTokens: 4},
	}, nil)

	text, err := newAnthropicOCR(true, "", 0, client).ExtractText(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "- Baguette", text)
	client.AssertExpectations(t)
}

func TestAnthropicOCR_NoTextBlocks(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{}, nil)

	text, err := newAnthropicOCR(true, "", 0, client).ExtractText(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestAnthropicOCR_TransportErrorIsTransient(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("connection reset"))

	_, err := newAnthropicOCR(true, "", 0, client).ExtractText(context.Background(), pngHeader)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
