package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		var req struct {
			GenerationConfig struct {
				ResponseMimeType string          `json:"responseMimeType"`
				ResponseSchema   json.RawMessage `json:"responseSchema"`
			} `json:"generationConfig"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.GenerationConfig.ResponseMimeType != "application/json" || len(req.GenerationConfig.ResponseSchema) == 0 {
			t.Errorf("missing structured output config: %+v", req.GenerationConfig)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"answer\":"},{"text":"42}"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "k", "gemini-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Answer int `json:"answer"`
	}
	if err := c.GenerateJSON(context.Background(), "q", &Schema{Type: "OBJECT"}, &out); err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out.Answer != 42 {
		t.Fatalf("answer = %d", out.Answer)
	}
}

func TestGenerateJSONErrors(t *testing.T) {
	unset, err := NewClient(context.Background(), "", "m")
	if err != nil {
		t.Fatal(err)
	}
	if err := unset.GenerateJSON(context.Background(), "q", nil, &struct{}{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "bad", "m", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	err = c.GenerateJSON(context.Background(), "q", nil, &struct{}{})
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("err = %v", err)
	}
}
