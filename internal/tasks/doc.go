// Package tasks runs the background work around a separation session with progress reporting.
//
// # Stem cache
//
// [StemCache] downloads the stems of a session into a local directory so they can be decoded and
// played. [StemCache.FetchStems] uses a small worker pool fed through a rate limiter, mirroring how
// the backend is polled elsewhere, and reports each finished stem as a [ProgressUpdate]. Stems are
// stored as <dir>/<session>/<kind><ext>; the session directory is the UUID found in the stem URLs,
// or a name-based UUID of the URL directory when none is present.
//
// Only the most recent cache.max_sessions directories are kept, see [StemCache.Prune].
//
// # Cleanup
//
// [SessionCleaner] asks the backend to delete a session's files and marks the session as deleted in
// history. [SessionCleaner.Sweep] retries every session still pending, one request each.
//
// # Progress Reporting
//
// Progress channels are optional and never block; updates are dropped when the channel is full.
package tasks
