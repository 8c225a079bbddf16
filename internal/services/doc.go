// Package services implements the HTTP client for the separation backend.
//
// # Raw client
//
// [APIService] wraps [http.Client] with base URL resolution, JSON detection and multipart uploads.
// Responses are returned as [APIResponse] values regardless of status so callers decide what a failure means.
//
// # Typed client
//
// [BackendService] implements [Backend] on top of [APIService]:
//
//	POST /process               multipart "file" and/or "url" → {success, tracks, error?, session_id?}
//	POST /delete/{sessionId}    no body, best-effort
//	GET  /download_zip?tracks=  JSON array of stem URLs, answered with a ZIP archive
//	GET  <stem URL>             the separated audio itself
//
// Track maps are parsed with [models.ParseTrackSet], so an unknown stem name makes the whole response malformed.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : transport failure or unexpected HTTP status
//   - [shared.ErrMalformedResponse] : body is not the documented JSON shape
//   - [shared.ErrNoSessionID] : deletion requested without an identifier
package services
