package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestVertex(t *testing.T, handler http.HandlerFunc) *Vertex {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	v, err := NewVertex(context.Background(),
		WithProject("demo"),
		WithLocation("europe-west4"),
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewVertex: %v", err)
	}
	return v
}

func TestVertexVision(t *testing.T) {
	v := newTestVertex(t, func(w http.ResponseWriter, r *http.Request) {
		want := "/v1/projects/demo/locations/europe-west4/publishers/google/models/gemini-2.5-flash:generateContent"
		if r.URL.Path != want {
			t.Errorf("Expected %s, got %s", want, r.URL.Path)
		}

		var body struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text       string `json:"text"`
					InlineData *struct {
						MimeType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Contents) != 1 || len(body.Contents[0].Parts) != 2 {
			t.Fatalf("Unexpected contents %+v", body.Contents)
		}
		if img := body.Contents[0].Parts[1].InlineData; img == nil || img.MimeType != "image/jpeg" {
			t.Errorf("Expected inline jpeg, got %+v", img)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"metal plate"}]}}],"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":2,"totalTokenCount":9}}`))
	})

	resp, err := v.Vision(context.Background(), &VisionRequest{Prompt: "p", ImageData: testJPEG})
	if err != nil {
		t.Fatalf("Vision: %v", err)
	}
	if resp.Content != "metal plate" {
		t.Errorf("Unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 9 {
		t.Errorf("Expected 9 tokens, got %d", resp.Usage.TotalTokens)
	}
	if v.Name() != "vertex" {
		t.Errorf("Unexpected name %q", v.Name())
	}
}

func TestVertexError(t *testing.T) {
	v := newTestVertex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Publisher model not found","status":"NOT_FOUND"}}`))
	})

	_, err := v.Vision(context.Background(), &VisionRequest{Prompt: "p", ImageData: testJPEG, Model: "gemini-0"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if !apiErr.IsNotFound() {
		t.Errorf("Expected 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Publisher model not found" {
		t.Errorf("Unexpected message %q", apiErr.Message)
	}
}

func TestVertexEmpty(t *testing.T) {
	v := newTestVertex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := v.Vision(context.Background(), &VisionRequest{Prompt: "p", ImageData: testJPEG})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestVertexRequiresProject(t *testing.T) {
	_, err := NewVertex(context.Background())
	if !errors.Is(err, ErrNoProject) {
		t.Errorf("Expected ErrNoProject, got %v", err)
	}
}
