package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var testJPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestOpenAIVision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected Bearer test-key, got %s", auth)
		}

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}

		if body.Model != "gpt-4o" {
			t.Errorf("Expected model gpt-4o, got %s", body.Model)
		}
		if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
			t.Fatalf("Expected one message with two parts, got %+v", body.Messages)
		}
		parts := body.Messages[0].Content
		if parts[0].Type != "text" || parts[0].Text != "name it" {
			t.Errorf("Unexpected text part: %+v", parts[0])
		}
		if parts[1].Type != "image_url" || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
			t.Errorf("Unexpected image part: %+v", parts[1])
		}
		if body.MaxTokens != 64 {
			t.Errorf("Expected default max_tokens 64, got %d", body.MaxTokens)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","model":"gpt-4o-2024","choices":[{"message":{"role":"assistant","content":"cardboard box"},"finish_reason":"stop"}],"usage":{"prompt_tokens":90,"completion_tokens":3,"total_tokens":93}}`))
	}))
	defer server.Close()

	client, err := NewOpenAI(
		WithBaseURL(server.URL),
		WithAPIKey("test-key"),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	resp, err := client.Vision(context.Background(), &VisionRequest{
		Prompt:    "name it",
		ImageData: testJPEG,
		MIMEType:  "image/png",
		Model:     "gpt-4o",
	})
	if err != nil {
		t.Fatalf("Vision failed: %v", err)
	}

	if resp.Content != "cardboard box" {
		t.Errorf("Expected 'cardboard box', got %q", resp.Content)
	}
	if resp.Model != "gpt-4o-2024" {
		t.Errorf("Expected model from response, got %q", resp.Model)
	}
	if resp.Usage.TotalTokens != 93 {
		t.Errorf("Expected 93 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestOpenAIRequiresKeyForHostedAPI(t *testing.T) {
	_, err := NewOpenAI()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}

	// Self-hosted endpoints often run without a key.
	if _, err := NewOpenAI(WithBaseURL("http://localhost:8000/v1")); err != nil {
		t.Errorf("Expected no error for custom base URL, got %v", err)
	}
}

func TestOpenAINotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`))
	}))
	defer server.Close()

	client, _ := NewOpenAI(WithBaseURL(server.URL), WithAPIKey("k"))

	_, err := client.Vision(context.Background(), &VisionRequest{Prompt: "p", ImageData: testJPEG})
	if err == nil {
		t.Fatal("Expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if !apiErr.IsNotFound() {
		t.Errorf("Expected 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Code != "model_not_found" {
		t.Errorf("Expected code model_not_found, got %q", apiErr.Code)
	}
	if calls.Load() != 1 {
		t.Errorf("404 must not be retried, got %d calls", calls.Load())
	}
}

func TestOpenAIRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"glass jar"}}]}`))
	}))
	defer server.Close()

	client, _ := NewOpenAI(
		WithBaseURL(server.URL),
		WithAPIKey("k"),
		WithRetry(3, time.Millisecond),
	)

	resp, err := client.Vision(context.Background(), &VisionRequest{Prompt: "p", ImageData: testJPEG})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if resp.Content != "glass jar" {
		t.Errorf("Unexpected content %q", resp.Content)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestOpenAIRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	client, _ := NewOpenAI(WithBaseURL(server.URL), WithAPIKey("k"), WithRetry(1, time.Millisecond))

	_, err := client.Vision(context.Background(), &VisionRequest{Prompt: "p", ImageData: testJPEG})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsRateLimited() {
		t.Fatalf("Expected rate limit APIError, got %v", err)
	}
	if apiErr.Message != "slow down" {
		t.Errorf("Unexpected message %q", apiErr.Message)
	}
}

func TestOpenAIEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer server.Close()

	client, _ := NewOpenAI(WithBaseURL(server.URL), WithAPIKey("k"))

	_, err := client.Vision(context.Background(), &VisionRequest{Prompt: "p", ImageData: testJPEG})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestOpenAIRequiresImage(t *testing.T) {
	client, _ := NewOpenAI(WithBaseURL("http://127.0.0.1:1"), WithAPIKey("k"))

	_, err := client.Vision(context.Background(), &VisionRequest{Prompt: "p"})
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}

func TestOpenAIHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("Expected /models, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client, _ := NewOpenAI(WithBaseURL(server.URL+"/"), WithAPIKey("k"))
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
	if client.Name() != "openai" {
		t.Errorf("Unexpected name %q", client.Name())
	}
}
