package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tu "github.com/desertthunder/stemx/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.baseURL != "http://127.0.0.1:5000" {
				t.Errorf("expected default baseURL 'http://127.0.0.1:5000', got %s", srv.baseURL)
			}
		})

		t.Run("Trailing Slash Is Trimmed", func(t *testing.T) {
			srv := NewAPIService("http://example.com/", nil)

			if srv.BaseURL() != "http://example.com" {
				t.Errorf("expected trimmed baseURL, got %s", srv.BaseURL())
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Decodes JSON Bodies", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/" {
					t.Errorf("expected GET /, got %s %s", r.Method, r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Backend", "demucs")
				json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.OK() || !resp.IsJSON || resp.JSONData == nil {
				t.Errorf("expected a decoded 2xx JSON response, got %+v", resp)
			}
			if resp.Headers.Get("X-Backend") != "demucs" {
				t.Errorf("expected response headers to be kept, got %v", resp.Headers)
			}
		})

		t.Run("Keeps HTML Bodies Raw", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>upload</html>"))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON || resp.JSONData != nil {
				t.Error("expected response to not be JSON")
			}
			if string(resp.Body) != "<html>upload</html>" {
				t.Errorf("unexpected body %q", resp.Body)
			}
		})

		t.Run("Transport Failures", func(t *testing.T) {
			tests := []struct {
				name    string
				client  *http.Client
				path    string
				wantErr string
			}{
				{"invalid path", nil, "/\x00", "failed to create request"},
				{"connection error", &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}, "/", "request failed"},
				{"body read error", &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil)}, "/", "failed to read response"},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					_, err := NewAPIService("http://backend.test", tt.client).Get(context.Background(), tt.path)
					if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
						t.Errorf("expected %q error, got %v", tt.wantErr, err)
					}
				})
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := NewAPIService(server.URL, nil).Get(ctx, "/"); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		t.Run("Sends JSON", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
				}
				body, _ := io.ReadAll(r.Body)
				if string(body) != `{"tracks":[]}` {
					t.Errorf("unexpected body %q", body)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"success": true}`))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Post(context.Background(), "/process", []byte(`{"tracks":[]}`))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusCreated || !resp.IsJSON {
				t.Errorf("unexpected response %+v", resp)
			}
		})

		t.Run("Without Body", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Content-Type") != "" {
					t.Errorf("expected no Content-Type, got %s", r.Header.Get("Content-Type"))
				}
				if body, _ := io.ReadAll(r.Body); len(body) != 0 {
					t.Errorf("expected empty body, got %d bytes", len(body))
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Post(context.Background(), "/delete/abc", nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.OK() {
				t.Errorf("expected 2xx, got %d", resp.StatusCode)
			}
		})

		t.Run("Server Error Is Not A Transport Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Post(context.Background(), "/delete/abc", nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.OK() {
				t.Error("expected non-2xx response")
			}
		})
	})

	t.Run("PostMultipart", func(t *testing.T) {
		t.Run("Sends Fields And Files", func(t *testing.T) {
			audio := filepath.Join(t.TempDir(), "song.wav")
			if err := os.WriteFile(audio, []byte("RIFF-data"), 0644); err != nil {
				t.Fatalf("failed to write audio: %v", err)
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
					t.Errorf("expected multipart content type, got %s", r.Header.Get("Content-Type"))
				}
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Fatalf("failed to parse multipart form: %v", err)
				}
				if got := r.FormValue("url"); got != "https://youtu.be/x" {
					t.Errorf("expected url field, got %q", got)
				}
				if _, ok := r.MultipartForm.Value["empty"]; ok {
					t.Error("empty fields should be skipped")
				}
				f, hdr, err := r.FormFile("file")
				if err != nil {
					t.Fatalf("expected file part: %v", err)
				}
				defer f.Close()
				data, _ := io.ReadAll(f)
				if hdr.Filename != "song.wav" || string(data) != "RIFF-data" {
					t.Errorf("unexpected file part %s = %q", hdr.Filename, data)
				}
				w.Write([]byte(`{"ok": true}`))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.PostMultipart(
				context.Background(),
				"/process",
				map[string]string{"url": "https://youtu.be/x", "empty": ""},
				[]FormFile{{Field: "file", Path: audio}},
			)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.IsJSON {
				t.Error("expected JSON response")
			}
		})

		t.Run("Missing File", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)
			_, err := srv.PostMultipart(context.Background(), "/process", nil, []FormFile{{Field: "file", Path: "/does/not/exist.wav"}})
			if err == nil {
				t.Error("expected error for missing file")
			}
		})
	})

	t.Run("Open", func(t *testing.T) {
		t.Run("Streams Body", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("stem-bytes"))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Open(context.Background(), "/static/output/a/vocals.wav")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer resp.Body.Close()

			data, _ := io.ReadAll(resp.Body)
			if string(data) != "stem-bytes" {
				t.Errorf("unexpected body %q", data)
			}
		})

		t.Run("Rejects Non-2xx", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			if _, err := srv.Open(context.Background(), "/missing.wav"); err == nil {
				t.Error("expected error for 404")
			}
		})
	})

	t.Run("Resolve", func(t *testing.T) {
		srv := NewAPIService("http://example.com", nil)

		if got := srv.Resolve("/static/a.wav"); got != "http://example.com/static/a.wav" {
			t.Errorf("unexpected relative resolution %s", got)
		}
		if got := srv.Resolve("static/a.wav"); got != "http://example.com/static/a.wav" {
			t.Errorf("unexpected resolution without leading slash %s", got)
		}
		if got := srv.Resolve("https://cdn.example.com/a.wav"); got != "https://cdn.example.com/a.wav" {
			t.Errorf("absolute URL should pass through, got %s", got)
		}
	})

	t.Run("APIResponse", func(t *testing.T) {
		t.Run("JSON Detection", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"valid": "json"}`))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.IsJSON {
				t.Error("expected valid JSON to be detected")
			}

			jsonMap, ok := resp.JSONData.(map[string]any)
			if !ok {
				t.Error("expected JSONData to be map[string]interface{}")
			}
			if jsonMap["valid"] != "json" {
				t.Errorf("expected JSONData['valid'] to be 'json', got %v", jsonMap["valid"])
			}
		})

		t.Run("Invalid JSON Detection", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("not json"))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON {
				t.Error("expected invalid JSON to not be detected as JSON")
			}
			if resp.JSONData != nil {
				t.Error("expected JSONData to be nil for invalid JSON")
			}
		})
	})
}
