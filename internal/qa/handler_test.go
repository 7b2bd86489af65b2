package qa

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"medstudy-backend/internal/ai"
)

func newQARouter(t *testing.T, svc *Service, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestAskHandler(t *testing.T) {
	svc, _, _ := newQAService(t, &recordingAI{answer: ai.Answer{Text: "resposta"}})
	r := newQARouter(t, svc, "u1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/qa/ask", bytes.NewBufferString(`{"question":"Què és l'asma?"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["answer"] != "resposta" || body["language"] != "ca" || body["userId"] != "u1" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["topicId"] != nil {
		t.Fatalf("expected null topicId, got %v", body["topicId"])
	}
	if ids, ok := body["contextTopicIds"].([]any); !ok || len(ids) != 0 {
		t.Fatalf("expected empty contextTopicIds, got %v", body["contextTopicIds"])
	}
}

func TestAskHandlerValidation(t *testing.T) {
	svc, _, _ := newQAService(t, &recordingAI{})
	r := newQARouter(t, svc, "u1")

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"empty question", `{"question":"  "}`},
		{"unknown language", `{"question":"asma","language":"fr"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/qa/ask", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHistoryHandlerScopesToCaller(t *testing.T) {
	svc, _, _ := newQAService(t, &recordingAI{answer: ai.Answer{Text: "x"}})
	owner := newQARouter(t, svc, "u1")
	other := newQARouter(t, svc, "u2")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/qa/ask", bytes.NewBufferString(`{"question":"asma","language":"es"}`))
	req.Header.Set("Content-Type", "application/json")
	owner.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ask failed: %d", rec.Code)
	}

	for _, tc := range []struct {
		router *gin.Engine
		want   int
	}{{owner, 1}, {other, 0}} {
		rec := httptest.NewRecorder()
		tc.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/qa/history", nil))
		var list []History
		if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(list) != tc.want {
			t.Fatalf("expected %d rows, got %d", tc.want, len(list))
		}
	}
}
