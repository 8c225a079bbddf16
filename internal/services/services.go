// package services defines the client side of the separation backend's HTTP API
package services

import (
	"context"
	"io"

	"github.com/desertthunder/stemx/internal/models"
)

// Backend is the set of separation backend operations the client uses.
type Backend interface {
	// Process submits a local file and/or a remote URL for separation.
	// A backend-reported failure comes back as a result with Success false, not as an error.
	Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error)

	// Delete asks the backend to remove the files produced for sessionID.
	Delete(ctx context.Context, sessionID string) error

	// DownloadURL returns the absolute URL of the ZIP archive containing urls.
	DownloadURL(urls []string) (string, error)

	// DownloadZip streams the ZIP archive containing urls into w.
	DownloadZip(ctx context.Context, urls []string, w io.Writer) (int64, error)

	// FetchStem streams one stem into w.
	FetchStem(ctx context.Context, url string, w io.Writer) (int64, error)

	// Ping checks that the backend answers on its upload page.
	Ping(ctx context.Context) error
}

// ProcessRequest carries the optional inputs of one submission.
type ProcessRequest struct {
	File string // path of a local audio file
	URL  string // remote page or media URL
}

// Source describes the submission for history and logs.
func (r ProcessRequest) Source() string {
	if r.File != "" {
		return r.File
	}
	return r.URL
}

// ProcessResult is the decoded /process response.
type ProcessResult struct {
	Success   bool
	Error     string
	SessionID string
	Tracks    models.TrackSet
}
