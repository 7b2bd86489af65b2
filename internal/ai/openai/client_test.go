package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"medstudy-backend/internal/ai"
)

func captureServer(t *testing.T, respond func(call int, w http.ResponseWriter)) (*[]map[string]any, *sync.Mutex) {
	t.Helper()
	var mu sync.Mutex
	bodies := []map[string]any{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		bodies = append(bodies, payload)
		call := len(bodies)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		respond(call, w)
	}))
	t.Cleanup(server.Close)

	oldURL := apiURL
	apiURL = server.URL
	t.Cleanup(func() { apiURL = oldURL })
	return &bodies, &mu
}

func TestCompleteSendsJSONModeAndSystemMessage(t *testing.T) {
	bodies, mu := captureServer(t, func(call int, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"topics\":[]}"}}]}`))
	})
	client, err := NewClient("test-key", "gpt-4o-mini", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	out, err := client.Complete(context.Background(), ai.Request{
		SystemInstructions: "system",
		UserPrompt:         "user",
		JSONMode:           true,
		MaxTokens:          100,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"topics":[]}` {
		t.Fatalf("unexpected output %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	body := (*bodies)[0]
	format, _ := body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", body["response_format"])
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", messages)
	}
	if _, ok := body["temperature"]; !ok {
		t.Fatalf("expected temperature for non gpt-5 model")
	}
}

func TestCompleteOmitsTemperatureForGPT5(t *testing.T) {
	bodies, mu := captureServer(t, func(call int, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Resposta"}}]}`))
	})
	client, err := NewClient("test-key", "gpt-5", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Complete(context.Background(), ai.Request{UserPrompt: "hola"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := (*bodies)[0]["temperature"]; ok {
		t.Fatalf("expected temperature to be omitted for gpt-5")
	}
	if _, ok := (*bodies)[0]["response_format"]; ok {
		t.Fatalf("expected no response_format outside JSON mode")
	}
}

func TestCompleteRetriesWithoutTemperatureOnce(t *testing.T) {
	bodies, mu := captureServer(t, func(call int, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"error":{"message":"Unsupported value: 'temperature' does not support 0 with this model.","type":"invalid_request_error"}}`))
	})
	client, err := NewClient("test-key", "gpt-4o-mini", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Complete(context.Background(), ai.Request{UserPrompt: "x"}); err == nil {
		t.Fatalf("expected error on repeated temperature rejection")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(*bodies) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*bodies))
	}
	if _, ok := (*bodies)[1]["temperature"]; ok {
		t.Fatalf("expected retry without temperature")
	}
}

func TestCompleteMarksServerErrorsTransient(t *testing.T) {
	captureServer(t, func(call int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`upstream unavailable`))
	})
	client, err := NewClient("test-key", "gpt-4o-mini", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Complete(context.Background(), ai.Request{UserPrompt: "x"})
	if !errors.Is(err, ai.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient("", "gpt-4o-mini", 0); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewClient("key", " ", 0); err == nil {
		t.Fatalf("expected error without model")
	}
}
