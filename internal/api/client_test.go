package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestHealthcheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := New(server.URL, "").Healthcheck(context.Background()); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
	if err := New(server.URL+"/missing", "").Healthcheck(context.Background()); err == nil {
		t.Error("expected error for 404 response")
	}
	if err := New("http://localhost:59999", "").Healthcheck(context.Background()); err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestUpload_Success(t *testing.T) {
	received := map[string]string{}
	var content string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != UploadPath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, k := range []string{"secret", "filename", "worldName", "missionName", "sessionId", "missionDuration", "tag"} {
			received[k] = r.FormValue(k)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("failed to get file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		content = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "cctv_Op_20260301_180000.json.gz")
	if err := os.WriteFile(path, []byte("journal"), 0644); err != nil {
		t.Fatal(err)
	}

	err := New(server.URL, "mysecret").Upload(context.Background(), path, UploadMetadata{
		WorldName:       "Altis",
		MissionName:     "Op",
		SessionID:       "abc",
		MissionDuration: 3600.5,
		Tag:             "TvT",
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	want := map[string]string{
		"secret":          "mysecret",
		"filename":        "cctv_Op_20260301_180000.json.gz",
		"worldName":       "Altis",
		"missionName":     "Op",
		"sessionId":       "abc",
		"missionDuration": "3600.500000",
		"tag":             "TvT",
	}
	for k, v := range want {
		if received[k] != v {
			t.Errorf("%s: expected %q, got %q", k, v, received[k])
		}
	}
	if content != "journal" {
		t.Errorf("expected file content 'journal', got %q", content)
	}
}

func TestUpload_FileNotFound(t *testing.T) {
	err := New("http://localhost:5000", "secret").Upload(context.Background(), "/nonexistent/file.json.gz", UploadMetadata{})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "test.json.gz")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := New(server.URL, "wrong-secret").Upload(context.Background(), path, UploadMetadata{}); err == nil {
		t.Error("expected error for 403 response")
	}
}
