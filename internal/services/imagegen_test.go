package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiService_GenerateImage(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantImage string
		wantErr   error
	}{
		{
			name:      "first image part wins",
			status:    http.StatusOK,
			body:      `{"candidates":[{"content":{"parts":[{"text":"Here you go"},{"inlineData":{"mimeType":"image/png","data":"AAAA"}},{"inlineData":{"mimeType":"image/jpeg","data":"BBBB"}}]}}]}`,
			wantImage: "data:image/png;base64,AAAA",
		},
		{
			name:    "text only",
			status:  http.StatusOK,
			body:    `{"candidates":[{"content":{"parts":[{"text":"I cannot draw that"}]}}]}`,
			wantErr: ErrNoImage,
		},
		{
			name:    "non-image inline data",
			status:  http.StatusOK,
			body:    `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"text/plain","data":"AAAA"}}]}}]}`,
			wantErr: ErrNoImage,
		},
		{
			name:    "blocked prompt",
			status:  http.StatusOK,
			body:    `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantErr: ErrNoImage,
		},
		{
			name:   "http error",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"code":429,"message":"quota"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq GeminiGenerateRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
				assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
				_ = json.NewDecoder(r.Body).Decode(&gotReq)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc := NewGeminiService("secret", "test-model", server.Client()).WithBaseURL(server.URL)
			image, err := svc.GenerateImage(context.Background(), "a cave")

			require.Len(t, gotReq.Contents, 1)
			assert.Equal(t, "a cave", gotReq.Contents[0].Parts[0].Text)
			assert.Contains(t, gotReq.GenerationConfig.ResponseModalities, "IMAGE")

			if tt.wantImage != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantImage, image)
				return
			}
			require.Error(t, err)
			var genErr *GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, "gemini", genErr.Provider)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestProviders_EmptyPrompt(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	providers := map[string]ImageGenerator{
		"gemini":  NewGeminiService("k", "m", server.Client()).WithBaseURL(server.URL),
		"venice":  NewVeniceService("k", "m", true, server.Client()).WithBaseURL(server.URL),
		"openai":  NewOpenAIService("k", "m", server.Client()).WithBaseURL(server.URL),
		"gateway": NewGatewayClient(server.URL, server.Client()),
		"mock":    NewMockImageGenerator(),
	}
	for name, gen := range providers {
		t.Run(name, func(t *testing.T) {
			_, err := gen.GenerateImage(context.Background(), "   ")
			assert.ErrorIs(t, err, ErrEmptyPrompt)
		})
	}
	assert.False(t, called, "no request should be sent for an empty prompt")
}

func TestVeniceService_GenerateImage(t *testing.T) {
	var gotReq VeniceImageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/image/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"id":"gen-1","images":["UklGRg=="]}`))
	}))
	defer server.Close()

	svc := NewVeniceService("secret", "venice-sd35", true, server.Client()).WithBaseURL(server.URL)
	image, err := svc.GenerateImage(context.Background(), "a cave")
	require.NoError(t, err)

	assert.Equal(t, "data:image/webp;base64,UklGRg==", image)
	assert.Equal(t, "venice-sd35", gotReq.Model)
	assert.Equal(t, 1280, gotReq.Width)
	assert.Equal(t, 720, gotReq.Height)
	assert.True(t, gotReq.SafeMode)
	assert.False(t, gotReq.ReturnBinary)
}

func TestVeniceService_NoImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"gen-1","images":[]}`))
	}))
	defer server.Close()

	_, err := NewVeniceService("k", "", false, server.Client()).WithBaseURL(server.URL).
		GenerateImage(context.Background(), "a cave")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestOpenAIService_GenerateImage(t *testing.T) {
	tests := []struct {
		name       string
		model      string
		body       string
		wantImage  string
		wantFormat string
		wantErr    bool
	}{
		{
			name:      "gpt-image inline",
			model:     "gpt-image-1",
			body:      `{"data":[{"b64_json":"iVBOR"}]}`,
			wantImage: "data:image/png;base64,iVBOR",
		},
		{
			name:       "dall-e asks for base64",
			model:      "dall-e-3",
			body:       `{"data":[{"b64_json":"iVBOR"}]}`,
			wantImage:  "data:image/png;base64,iVBOR",
			wantFormat: "b64_json",
		},
		{
			name:      "hosted url",
			model:     "gpt-image-1",
			body:      `{"data":[{"url":"https://cdn.example.com/a.png"}]}`,
			wantImage: "https://cdn.example.com/a.png",
		},
		{
			name:    "api error",
			model:   "gpt-image-1",
			body:    `{"error":{"message":"content policy"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq OpenAIImageRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/images/generations", r.URL.Path)
				_ = json.NewDecoder(r.Body).Decode(&gotReq)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			image, err := NewOpenAIService("k", tt.model, server.Client()).WithBaseURL(server.URL).
				GenerateImage(context.Background(), "a cave")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantImage, image)
			assert.Equal(t, tt.wantFormat, gotReq.ResponseFormat)
			assert.Equal(t, 1, gotReq.N)
		})
	}
}

func TestGatewayClient_GenerateImage(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantImage string
		wantErr   string
	}{
		{name: "ok", status: http.StatusOK, body: `{"image":"data:image/png;base64,AA"}`, wantImage: "data:image/png;base64,AA"},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"No image in response"}`, wantErr: "No image in response"},
		{name: "missing image", status: http.StatusOK, body: `{}`, wantErr: ErrNoImage.Error()},
		{name: "not json", status: http.StatusBadGateway, body: `upstream down`, wantErr: "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/scene", r.URL.Path)
				var req SceneRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				assert.Equal(t, "a cave", req.Prompt)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			image, err := NewGatewayClient(server.URL+"/", server.Client()).GenerateImage(context.Background(), "a cave")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantImage, image)
		})
	}
}

func TestGenerationError(t *testing.T) {
	err := generationError("venice", ErrNoImage)
	assert.Equal(t, "image generation failed (venice): no image in response", err.Error())
	assert.True(t, errors.Is(err, ErrNoImage))
}

func TestWithTracing_PassesThrough(t *testing.T) {
	mock := NewMockImageGenerator()
	mock.SetResponse("img://cave")
	traced := WithTracing(mock, "mock", "")

	ref, err := traced.GenerateImage(context.Background(), "a cave")
	require.NoError(t, err)
	assert.Equal(t, "img://cave", ref)

	boom := errors.New("boom")
	mock.SetError(boom)
	_, err = traced.GenerateImage(context.Background(), "a cave")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, mock.CallCount())
}

func TestMockImageGenerator_Default(t *testing.T) {
	mock := NewMockImageGenerator()
	a, err := mock.GenerateImage(context.Background(), "prompt a")
	require.NoError(t, err)
	again, _ := mock.GenerateImage(context.Background(), "prompt a")
	b, _ := mock.GenerateImage(context.Background(), "prompt b")

	assert.True(t, strings.HasPrefix(a, "img://mock-"))
	assert.Equal(t, a, again)
	assert.NotEqual(t, a, b)
	assert.Equal(t, []string{"prompt a", "prompt a", "prompt b"}, mock.Calls())

	mock.Reset()
	assert.Equal(t, 0, mock.CallCount())
}
