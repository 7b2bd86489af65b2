package documents

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newHandlerRouter(t *testing.T, svc *Service, userID string) *gin.Engine {
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

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadHandlerSingleFileReturnsDocument(t *testing.T) {
	svc, _, _ := newTestService(t, &recordingQueue{})
	r := newHandlerRouter(t, svc, "guest:abc")

	body, contentType := multipartBody(t, "file", map[string][]byte{"notes.csv": []byte("a,b\n1,2\n")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var got DocumentResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID == "" || got.Status != StatusPending || got.FileType != FileTypeCSV {
		t.Fatalf("unexpected response %+v", got)
	}
}

func TestUploadHandlerZipReturnsMessage(t *testing.T) {
	svc, _, _ := newTestService(t, &recordingQueue{})
	r := newHandlerRouter(t, svc, "guest:abc")
	data := buildZip(t, map[string]string{
		"a.csv": "x,y\n1,2\n",
		"b.csv": "x,y\n3,4\n",
	}, []string{"a.csv", "b.csv"})

	body, contentType := multipartBody(t, "file", map[string][]byte{"week.zip": data})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var got UploadResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Message != "ZIP file processed. Extracted 2 documents." || len(got.Documents) != 2 {
		t.Fatalf("unexpected response %+v", got)
	}
}

func TestUploadHandlerRejectsUnsupportedType(t *testing.T) {
	svc, _, _ := newTestService(t, &recordingQueue{})
	r := newHandlerRouter(t, svc, "guest:abc")

	body, contentType := multipartBody(t, "file", map[string][]byte{"photo.png": []byte("\x89PNG")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var payload map[string]map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error"]["code"] != "upload_rejected" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func TestUploadHandlerRequiresFile(t *testing.T) {
	svc, _, _ := newTestService(t, &recordingQueue{})
	r := newHandlerRouter(t, svc, "guest:abc")

	body, contentType := multipartBody(t, "other", map[string][]byte{"notes.csv": []byte("a,b\n")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetHandlerHidesOtherOwnersDocuments(t *testing.T) {
	svc, _, _ := newTestService(t, &recordingQueue{})
	owner := newHandlerRouter(t, svc, "guest:owner")
	other := newHandlerRouter(t, svc, "guest:other")

	body, contentType := multipartBody(t, "file", map[string][]byte{"notes.csv": []byte("a,b\n")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	owner.ServeHTTP(resp, req)
	var created DocumentResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp = httptest.NewRecorder()
	owner.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.ID, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("owner expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	other.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.ID, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("other owner expected 404, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	other.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "[]" {
		t.Fatalf("other owner expected empty list, got %d %s", resp.Code, resp.Body.String())
	}
}
