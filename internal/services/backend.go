package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/shared"
)

// processResponse is the JSON body of POST /process.
type processResponse struct {
	Success   bool              `json:"success"`
	Tracks    map[string]string `json:"tracks"`
	Error     string            `json:"error,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
}

// BackendService implements [Backend] over HTTP.
type BackendService struct {
	api *APIService
}

// NewBackendService creates a typed backend client for the server at baseURL.
func NewBackendService(baseURL string, client *http.Client) *BackendService {
	return &BackendService{api: NewAPIService(baseURL, client)}
}

// API exposes the underlying raw client.
func (b *BackendService) API() *APIService {
	return b.api
}

// Process submits one separation request. Exactly one HTTP request is made.
func (b *BackendService) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	var files []FormFile
	if req.File != "" {
		if _, err := os.Stat(req.File); err != nil {
			return nil, fmt.Errorf("%w: cannot read %s: %v", shared.ErrInvalidInput, req.File, err)
		}
		files = append(files, FormFile{Field: "file", Path: req.File})
	}

	resp, err := b.api.PostMultipart(ctx, "/process", map[string]string{"url": strings.TrimSpace(req.URL)}, files)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if !resp.IsJSON {
		if !resp.OK() {
			return nil, fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
		}
		return nil, fmt.Errorf("%w: /process returned non-JSON body", shared.ErrMalformedResponse)
	}

	var body processResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}

	if !body.Success {
		return &ProcessResult{Success: false, Error: body.Error}, nil
	}

	tracks, err := models.ParseTrackSet(body.Tracks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: success without tracks", shared.ErrMalformedResponse)
	}

	return &ProcessResult{
		Success:   true,
		SessionID: SessionIDFor(body.SessionID, tracks),
		Tracks:    tracks,
	}, nil
}

// Ping issues GET / and reports a transport error or a non-2xx status.
func (b *BackendService) Ping(ctx context.Context) error {
	resp, err := b.api.Get(ctx, "/")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// SessionIDFor picks the explicit identifier when given, otherwise the UUID directory found in the track URLs.
func SessionIDFor(explicit string, tracks models.TrackSet) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	for _, u := range tracks.URLs() {
		p := u
		if parsed, err := url.Parse(u); err == nil {
			p = parsed.Path
		}
		if id, ok := shared.FindUUID(p); ok {
			return id
		}
	}
	return ""
}

// Delete issues POST /delete/{sessionID}.
func (b *BackendService) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return shared.ErrNoSessionID
	}

	resp, err := b.api.Post(ctx, "/delete/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: delete %s: status %d", shared.ErrAPIRequest, sessionID, resp.StatusCode)
	}
	return nil
}

// DownloadPath builds the backend-relative ZIP download path for urls.
//
// The tracks parameter is the JSON array of URLs, query-escaped.
func DownloadPath(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(urls); err != nil {
		return "", fmt.Errorf("failed to encode track list: %w", err)
	}

	return "/download_zip?tracks=" + url.QueryEscape(strings.TrimSpace(buf.String())), nil
}

// DownloadURL returns the absolute ZIP download URL for urls.
func (b *BackendService) DownloadURL(urls []string) (string, error) {
	p, err := DownloadPath(urls)
	if err != nil {
		return "", err
	}
	return b.api.Resolve(p), nil
}

// DownloadZip streams the ZIP archive for urls into w.
func (b *BackendService) DownloadZip(ctx context.Context, urls []string, w io.Writer) (int64, error) {
	p, err := DownloadPath(urls)
	if err != nil {
		return 0, err
	}
	return b.copy(ctx, p, w)
}

// FetchStem streams one stem into w.
func (b *BackendService) FetchStem(ctx context.Context, stemURL string, w io.Writer) (int64, error) {
	return b.copy(ctx, stemURL, w)
}

func (b *BackendService) copy(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := b.api.Open(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return n, nil
}

var _ Backend = (*BackendService)(nil)
